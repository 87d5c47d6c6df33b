package scan

import "context"

// HistoryRepository defines the interface for scan result persistence
type HistoryRepository interface {
	// Save persists a completed scan result
	Save(ctx context.Context, result *Result) error

	// FindByID retrieves a scan result by its session ID
	FindByID(ctx context.Context, sessionID string) (*Result, error)

	// List returns the most recent results first, at most limit entries (0 means all)
	List(ctx context.Context, limit int) ([]*Result, error)

	// Delete removes a scan result by its session ID
	Delete(ctx context.Context, sessionID string) error
}
