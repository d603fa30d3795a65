package reputation

import (
	"errors"
	"unicode/utf8"
)

// RatingValue is the closed enumeration of rating verdicts.
type RatingValue uint8

const (
	RatingPositive RatingValue = 1
	RatingNegative RatingValue = 2
)

// MaxCommentLen bounds rating comments in code points. Comments are stored
// for audit and not otherwise validated.
const MaxCommentLen = 256

// Valid reports whether the rating value is supported.
func (v RatingValue) Valid() bool {
	return v == RatingPositive || v == RatingNegative
}

// Rating is the audit record of a single submitted rating. The Subject is
// always the Rater's counterparty on the trade.
type Rating struct {
	TradeID     uint64
	Rater       [20]byte
	Subject     [20]byte
	Value       RatingValue
	Comment     string
	SubmittedAt uint64
}

// Validate ensures the rating payload is well formed before persistence.
func (r *Rating) Validate() error {
	if r == nil {
		return errors.New("reputation: rating nil")
	}
	if r.TradeID == 0 {
		return errors.New("reputation: trade id required")
	}
	if r.Rater == r.Subject {
		return errors.New("reputation: rater and subject must differ")
	}
	if !r.Value.Valid() {
		return ErrInvalidRating
	}
	if utf8.RuneCountInString(r.Comment) > MaxCommentLen {
		return errors.New("reputation: comment too long")
	}
	return nil
}

// UserRating aggregates the trade outcomes recorded against a principal.
// TotalTrades counts ratings received, not trades participated in.
type UserRating struct {
	PositiveRatings uint64
	TotalTrades     uint64
}

// Clone returns a copy of the aggregate.
func (u *UserRating) Clone() *UserRating {
	if u == nil {
		return &UserRating{}
	}
	clone := *u
	return &clone
}
