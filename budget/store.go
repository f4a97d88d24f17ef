package budget

import "context"

// =============================================================================
// STORE - Persistence boundary for the budget state
// =============================================================================

// Store persists the whole State as one unit. The engine never calls a Store;
// Service loads before and saves after each operation.
type Store interface {
	// Load returns the saved state, or (nil, nil) when nothing is stored yet.
	Load(ctx context.Context) (*State, error)

	// Save replaces the stored state.
	Save(ctx context.Context, s *State) error
}

// HistoryStore is implemented by stores that keep history beyond the
// in-state window of MaxHistory entries.
type HistoryStore interface {
	// RecentHistory returns up to n entries, newest first.
	RecentHistory(ctx context.Context, n int) ([]HistoryEntry, error)
}
