package access

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ownable is a fixed single-owner predicate. Price models embed it; the owner
// is set at construction and never transferred.
type Ownable struct {
	owner common.Address
}

// NewOwnable returns an Ownable owned by owner.
func NewOwnable(owner common.Address) Ownable {
	return Ownable{owner: owner}
}

// Owner returns the current owner.
func (o Ownable) Owner() common.Address {
	return o.owner
}

// IsOwner reports whether caller is the owner.
func (o Ownable) IsOwner(caller common.Address) bool {
	return caller == o.owner
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (o Ownable) RequireOwner(caller common.Address) error {
	if caller != o.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Control holds the owner and poster identities of the oracle facade.
type Control struct {
	mu     sync.RWMutex
	owner  common.Address
	poster common.Address
}

// NewControl creates a Control with the given owner and poster.
func NewControl(owner, poster common.Address) *Control {
	return &Control{owner: owner, poster: poster}
}

// CurrentOwner returns the owner.
func (c *Control) CurrentOwner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// CurrentPoster returns the poster. The zero address means nobody may post.
func (c *Control) CurrentPoster() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poster
}

// IsOwnerCaller reports whether caller is the owner.
func (c *Control) IsOwnerCaller(caller common.Address) bool {
	return caller == c.CurrentOwner()
}

// IsPosterCaller reports whether caller is the poster.
// A zero poster never matches, not even a zero caller.
func (c *Control) IsPosterCaller(caller common.Address) bool {
	poster := c.CurrentPoster()
	return poster != (common.Address{}) && caller == poster
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (c *Control) RequireOwner(caller common.Address) error {
	if !c.IsOwnerCaller(caller) {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// RequirePoster returns ErrUnauthorized unless caller is the poster.
func (c *Control) RequirePoster(caller common.Address) error {
	if !c.IsPosterCaller(caller) {
		return fmt.Errorf("%w: %s is not the poster", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// SetPoster replaces the poster. Authorization is the caller's responsibility.
func (c *Control) SetPoster(poster common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poster = poster
}
