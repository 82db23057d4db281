package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json").With("model", "poster")

	l.Info("Price stored",
		"asset", common.HexToAddress("0xb1"),
		"price", big.NewInt(42),
		"interval", 90*time.Second,
		"clamped", true,
		"count", 3,
		"error", errors.New("boom"),
		"dangling")

	got := decodeLine(t, &buf)
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "Price stored", got["message"])
	assert.Equal(t, "poster", got["model"])
	assert.Equal(t, common.HexToAddress("0xb1").Hex(), got["asset"])
	assert.Equal(t, "42", got["price"])
	assert.Equal(t, "1m30s", got["interval"])
	assert.Equal(t, true, got["clamped"])
	assert.Equal(t, float64(3), got["count"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, "dangling", got["!BADKEY"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "TEXT").Warn("Feed unhealthy", "feed", "pyth")
	assert.Contains(t, buf.String(), "Feed unhealthy")
	assert.Contains(t, buf.String(), "pyth")
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	l.Error("ignored", "k", "v")
	assert.NoError(t, l.Close())
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.log")
	l, err := Init("debug", "json", path)
	require.NoError(t, err)

	l.Debug("Anchor rolled", "period", 472223)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Anchor rolled"`)

	_, err = Init("info", "json", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestGlobal(t *testing.T) {
	t.Cleanup(func() { SetGlobal(nil) })

	require.NotNil(t, Global())

	var buf bytes.Buffer
	SetGlobal(New(&buf, "json"))
	Global().Info("hello")
	assert.Contains(t, buf.String(), "hello")
}
