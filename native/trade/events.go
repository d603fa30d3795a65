package trade

import (
	"encoding/hex"
	"strconv"

	"tradesafe/core/types"
	"tradesafe/native/reputation"
)

const (
	EventTypeTradeCreated   = "trade.created"
	EventTypeTradeCompleted = "trade.completed"
	EventTypeTradeDisputed  = "trade.disputed"
	EventTypeTradeRated     = "trade.rated"
	EventTypeTradeResolved  = "trade.resolved"
)

type tradeEvent struct {
	evt *types.Event
}

func (e tradeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tradeEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent emits the canonical payload for a newly created trade.
func NewCreatedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeCreated, t) }

// NewCompletedEvent emits the payload for a confirmed delivery.
func NewCompletedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeCompleted, t) }

// NewDisputedEvent emits the payload when a trade enters dispute.
func NewDisputedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeDisputed, t) }

// NewRatedEvent emits the payload for a submitted rating.
func NewRatedEvent(t *Trade, r *reputation.Rating) *types.Event {
	evt := newTradeEvent(EventTypeTradeRated, t)
	if evt == nil || r == nil {
		return evt
	}
	evt.Attributes["rater"] = hex.EncodeToString(r.Rater[:])
	evt.Attributes["subject"] = hex.EncodeToString(r.Subject[:])
	evt.Attributes["value"] = strconv.FormatUint(uint64(r.Value), 10)
	return evt
}

// NewResolvedEvent emits the payload when a disputed trade is resolved.
func NewResolvedEvent(t *Trade, outcome ResolutionOutcome) *types.Event {
	evt := newTradeEvent(EventTypeTradeResolved, t)
	if evt == nil {
		return evt
	}
	evt.Attributes["outcome"] = strconv.FormatUint(uint64(outcome), 10)
	return evt
}

func newTradeEvent(eventType string, t *Trade) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(t)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["amount"] = sanitized.Amount.String()
	attrs["fee"] = sanitized.Fee.String()
	attrs["status"] = strconv.FormatUint(uint64(sanitized.Status), 10)
	attrs["createdAt"] = strconv.FormatUint(sanitized.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
