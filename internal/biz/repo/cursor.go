package repo

import "context"

// CursorRepo persists the high-water mark of emitted items per watch.
// Setters never move a cursor backwards.
type CursorRepo interface {
	// GetChannelCursor returns the cursor of a channel monitor; ok is false if none was stored
	GetChannelCursor(ctx context.Context, accountID, channel string) (id int64, ok bool, err error)

	// SetChannelCursor advances the cursor of a channel monitor
	SetChannelCursor(ctx context.Context, accountID, channel string, id int64) error

	// GetTimelineCursor returns the cursor of a home timeline watch; ok is false if none was stored
	GetTimelineCursor(ctx context.Context, accountID string) (id int64, ok bool, err error)

	// SetTimelineCursor advances the cursor of a home timeline watch
	SetTimelineCursor(ctx context.Context, accountID string, id int64) error
}
