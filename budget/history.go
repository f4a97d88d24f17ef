package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/budget-engine/generic"
)

// =============================================================================
// HISTORY - Append-only activity log
// =============================================================================

// MaxHistory is the number of entries retained; older ones are evicted first.
const MaxHistory = 500

// HistoryKind classifies a history entry.
type HistoryKind string

const (
	KindPaycheck    HistoryKind = "paycheck"
	KindPurchase    HistoryKind = "purchase"
	KindCapOverflow HistoryKind = "cap_overflow"
	KindDebtPayment HistoryKind = "debt_payment"
	KindBalanceEdit HistoryKind = "balance_edit"
	KindSettings    HistoryKind = "settings"
)

// HistoryEntry is one line of the activity log. The engine is the only writer.
type HistoryEntry struct {
	ID        string
	Timestamp time.Time
	Kind      HistoryKind
	Bucket    Bucket // empty when not bucket-specific
	Amount    generic.Money
	Details   string
}

// record appends an entry and evicts the oldest beyond MaxHistory.
func (s *State) record(now time.Time, kind HistoryKind, bucket Bucket, amount generic.Money, details string) HistoryEntry {
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Kind:      kind,
		Bucket:    bucket,
		Amount:    amount,
		Details:   details,
	}
	s.History = append(s.History, entry)
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]HistoryEntry(nil), s.History[over:]...)
	}
	return entry
}

// RecentHistory returns up to n entries, newest first. n <= 0 returns all.
func (s *State) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || n > len(s.History) {
		n = len(s.History)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.History[i])
	}
	return out
}
