package poster

import "errors"

var (
	// ErrNotConfigured indicates that the price client or target is missing.
	ErrNotConfigured = errors.New("poster requires a price client and a target")
	// ErrNoAssets indicates that no assets were configured for posting.
	ErrNoAssets = errors.New("no assets configured for posting")
	// ErrInvalidSchedule indicates that the cron schedule could not be parsed.
	ErrInvalidSchedule = errors.New("invalid schedule")
)
