package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"tradesafe/core/types"
)

const (
	EventTypeEscrowLocked   = "escrow.locked"
	EventTypeEscrowReleased = "escrow.released"
	EventTypeEscrowRefunded = "escrow.refunded"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// NewLockedEvent returns the canonical payload emitted when a trade's funds
// enter custody.
func NewLockedEvent(tradeID uint64, payer [20]byte, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeEscrowLocked, Attributes: map[string]string{
		"tradeId": strconv.FormatUint(tradeID, 10),
		"payer":   hex.EncodeToString(payer[:]),
		"total":   cloneBigInt(total).String(),
	}}
}

// NewReleasedEvent returns the canonical payload emitted when custody is
// released to the recipient.
func NewReleasedEvent(tradeID uint64, recipient [20]byte, amount, fee *big.Int) *types.Event {
	return &types.Event{Type: EventTypeEscrowReleased, Attributes: map[string]string{
		"tradeId":   strconv.FormatUint(tradeID, 10),
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    cloneBigInt(amount).String(),
		"fee":       cloneBigInt(fee).String(),
	}}
}

// NewRefundedEvent returns the canonical payload emitted when custody returns
// to the payer.
func NewRefundedEvent(tradeID uint64, payer [20]byte, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeEscrowRefunded, Attributes: map[string]string{
		"tradeId": strconv.FormatUint(tradeID, 10),
		"payer":   hex.EncodeToString(payer[:]),
		"total":   cloneBigInt(total).String(),
	}}
}
