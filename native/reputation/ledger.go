package reputation

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	userRatingPrefix  = []byte("reputation/user/")
	ratingAuditPrefix = []byte("reputation/rating/")
)

func userRatingKey(subject [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", userRatingPrefix, subject))
}

func ratingAuditKey(tradeID uint64, rater [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%d/%x", ratingAuditPrefix, tradeID, rater))
}

var (
	// ErrAlreadyRated marks a second rating attempt by the same rater on
	// the same trade.
	ErrAlreadyRated = errors.New("reputation: already rated")
	// ErrInvalidRating marks a rating value outside the enumeration.
	ErrInvalidRating = errors.New("reputation: invalid rating value")
)

// Ledger persists per-principal rating aggregates and the audit trail of
// individual ratings. Aggregates are created lazily on the first rating a
// principal receives and never deleted.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// Record stores the rating audit record and folds it into the subject's
// aggregate. At most one rating is accepted per (trade, rater) pair.
func (l *Ledger) Record(rating *Rating) error {
	if l == nil || l.store == nil {
		return errors.New("reputation: storage unavailable")
	}
	if err := rating.Validate(); err != nil {
		return err
	}
	auditKey := ratingAuditKey(rating.TradeID, rating.Rater)
	exists, err := l.store.KVGet(auditKey, nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyRated
	}
	aggregate, _, err := l.Get(rating.Subject)
	if err != nil {
		return err
	}
	aggregate.TotalTrades++
	if rating.Value == RatingPositive {
		aggregate.PositiveRatings++
	}
	if err := l.store.KVPut(auditKey, rating); err != nil {
		return err
	}
	return l.store.KVPut(userRatingKey(rating.Subject), aggregate)
}

// Get fetches the subject's aggregate. The boolean reports whether the
// principal has ever received a rating; absent subjects resolve to a zero
// aggregate so callers can fold into it directly.
func (l *Ledger) Get(subject [20]byte) (*UserRating, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errors.New("reputation: storage unavailable")
	}
	aggregate := &UserRating{}
	ok, err := l.store.KVGet(userRatingKey(subject), aggregate)
	if err != nil {
		return nil, false, err
	}
	if aggregate.PositiveRatings > aggregate.TotalTrades {
		return nil, false, fmt.Errorf("reputation: corrupt aggregate for %x", subject)
	}
	return aggregate, ok, nil
}

// GetRating fetches the audit record for the (trade, rater) pair.
func (l *Ledger) GetRating(tradeID uint64, rater [20]byte) (*Rating, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errors.New("reputation: storage unavailable")
	}
	rating := &Rating{}
	ok, err := l.store.KVGet(ratingAuditKey(tradeID, rater), rating)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return rating, true, nil
}
