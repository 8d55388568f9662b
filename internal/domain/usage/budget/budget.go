// Package budget holds a snapshot of a token budget.
package budget

// Budget is a point-in-time token budget. A zero limit means unlimited.
type Budget struct {
	tokensLimit     int64
	tokensUsed      int64
	tokensRemaining int64
}

// New creates a Budget snapshot. remaining is -1 when limit is 0.
func New(limit, used, remaining int64) Budget {
	return Budget{
		tokensLimit:     limit,
		tokensUsed:      used,
		tokensRemaining: remaining,
	}
}

// TokensLimit returns the token cap, 0 for unlimited.
func (b Budget) TokensLimit() int64 { return b.tokensLimit }

// TokensUsed returns tokens consumed so far in the period.
func (b Budget) TokensUsed() int64 { return b.tokensUsed }

// TokensRemaining returns tokens left, -1 for unlimited.
func (b Budget) TokensRemaining() int64 { return b.tokensRemaining }

// Unlimited reports whether no cap is configured.
func (b Budget) Unlimited() bool { return b.tokensLimit <= 0 }

// IsExhausted reports whether a capped budget is spent.
func (b Budget) IsExhausted() bool { return !b.Unlimited() && b.tokensRemaining <= 0 }
