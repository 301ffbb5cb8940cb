package domain

import (
	"fmt"
	"strconv"
)

// UserID identifies an authenticated user.
type UserID int64

func (id UserID) Valid() bool { return id > 0 }

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseUserID parses a decimal user id as found in URL params and token subjects.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid user id %q: %w", s, ErrInvalidInput)
	}
	return UserID(n), nil
}

// PairKey is the canonical key of a direct conversation. Low < High always.
type PairKey struct {
	Low  UserID
	High UserID
}

// NewPairKey sorts a and b into a canonical key.
func NewPairKey(a, b UserID) (PairKey, error) {
	if !a.Valid() || !b.Valid() {
		return PairKey{}, fmt.Errorf("pair %d/%d: %w", a, b, ErrInvalidInput)
	}
	if a == b {
		return PairKey{}, fmt.Errorf("pair with self %d: %w", a, ErrInvalidInput)
	}
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}, nil
}

func (k PairKey) Has(id UserID) bool { return id == k.Low || id == k.High }

// Other returns the participant that is not id.
func (k PairKey) Other(id UserID) UserID {
	if id == k.Low {
		return k.High
	}
	return k.Low
}

func (k PairKey) String() string { return k.Low.String() + ":" + k.High.String() }

// UnreadCounters holds the per-participant unread count of one conversation.
// Counters only change through Increment and Reset so they stay non-negative
// and keyed by the pair's participants.
type UnreadCounters struct {
	key    PairKey
	counts map[UserID]int
}

func NewUnreadCounters(key PairKey) UnreadCounters {
	return UnreadCounters{key: key, counts: map[UserID]int{key.Low: 0, key.High: 0}}
}

// RestoreUnreadCounters rebuilds counters from persisted columns.
func RestoreUnreadCounters(key PairKey, low, high int) (UnreadCounters, error) {
	if low < 0 || high < 0 {
		return UnreadCounters{}, fmt.Errorf("negative unread count for %s: %w", key, ErrInternal)
	}
	c := NewUnreadCounters(key)
	c.counts[key.Low] = low
	c.counts[key.High] = high
	return c, nil
}

func (c UnreadCounters) For(id UserID) int { return c.counts[id] }

// Increment records one more unread message for receiver.
func (c UnreadCounters) Increment(receiver UserID) error {
	if !c.key.Has(receiver) {
		return fmt.Errorf("user %d not in conversation %s: %w", receiver, c.key, ErrInvalidInput)
	}
	c.counts[receiver]++
	return nil
}

// Reset zeroes reader's counter after a mark-read.
func (c UnreadCounters) Reset(reader UserID) error {
	if !c.key.Has(reader) {
		return fmt.Errorf("user %d not in conversation %s: %w", reader, c.key, ErrInvalidInput)
	}
	c.counts[reader] = 0
	return nil
}

// Columns returns the counters in (low, high) order for storage.
func (c UnreadCounters) Columns() (low, high int) {
	return c.counts[c.key.Low], c.counts[c.key.High]
}

// MarshalJSON renders the counters as {"<user id>": n}.
func (c UnreadCounters) MarshalJSON() ([]byte, error) {
	low, high := c.Columns()
	return []byte(fmt.Sprintf(`{"%d":%d,"%d":%d}`, c.key.Low, low, c.key.High, high)), nil
}
