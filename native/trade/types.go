package trade

import (
	"fmt"
	"math/big"
	"unicode/utf8"
)

// Status represents the lifecycle phases of an escrowed trade. The numeric
// values are part of the persisted layout and must not be renumbered.
type Status uint8

const (
	StatusPending   Status = 1
	StatusDisputed  Status = 2
	StatusCompleted Status = 3
	// StatusResolved is reserved for the dispute resolution extension; no
	// lifecycle entry point assigns it.
	StatusResolved Status = 4
)

// MaxDescriptionLen bounds the trade description in code points.
const MaxDescriptionLen = 500

// Valid reports whether the status value is supported.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDisputed, StatusCompleted, StatusResolved:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDisputed:
		return "disputed"
	case StatusCompleted:
		return "completed"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Trade captures the immutable metadata and runtime status of a single
// buyer-seller exchange. Records are retained indefinitely as audit state and
// never deleted.
type Trade struct {
	ID          uint64
	Buyer       [20]byte
	Seller      [20]byte
	Amount      *big.Int
	Fee         *big.Int
	Description string
	Status      Status
	CreatedAt   uint64
	BuyerRated  bool
	SellerRated bool
}

// Clone returns a deep copy of the trade allowing callers to mutate the
// result without affecting the stored instance.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Amount != nil {
		clone.Amount = new(big.Int).Set(t.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if t.Fee != nil {
		clone.Fee = new(big.Int).Set(t.Fee)
	} else {
		clone.Fee = big.NewInt(0)
	}
	return &clone
}

// IsParty reports whether the address is the trade's buyer or seller.
func (t *Trade) IsParty(addr [20]byte) bool {
	if t == nil {
		return false
	}
	return addr == t.Buyer || addr == t.Seller
}

// Counterparty returns the other side of the trade relative to the supplied
// party. The caller must already be a party.
func (t *Trade) Counterparty(addr [20]byte) ([20]byte, error) {
	if t == nil {
		return [20]byte{}, fmt.Errorf("trade: nil trade")
	}
	switch addr {
	case t.Buyer:
		return t.Seller, nil
	case t.Seller:
		return t.Buyer, nil
	default:
		return [20]byte{}, fmt.Errorf("trade: address is not a party")
	}
}

// RatedBy reports whether the party has already submitted a rating for the
// trade. Only buyer and seller positions exist.
func (t *Trade) RatedBy(addr [20]byte) bool {
	if t == nil {
		return false
	}
	switch addr {
	case t.Buyer:
		return t.BuyerRated
	case t.Seller:
		return t.SellerRated
	default:
		return false
	}
}

// Sanitize validates the supplied trade definition, returning a cloned
// instance with non-nil amount fields. The function does not mutate the
// original value.
func Sanitize(t *Trade) (*Trade, error) {
	if t == nil {
		return nil, fmt.Errorf("trade: nil trade")
	}
	clone := t.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("trade: id must be positive")
	}
	if clone.Buyer == clone.Seller {
		return nil, fmt.Errorf("trade: buyer and seller must differ")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("trade: amount must be positive")
	}
	if clone.Fee.Sign() < 0 {
		return nil, fmt.Errorf("trade: fee must be non-negative")
	}
	if utf8.RuneCountInString(clone.Description) > MaxDescriptionLen {
		return nil, fmt.Errorf("trade: description exceeds %d code points", MaxDescriptionLen)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("trade: invalid status %d", clone.Status)
	}
	return clone, nil
}
