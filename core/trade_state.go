package core

import (
	"fmt"

	"tradesafe/core/state"
	"tradesafe/native/trade"
)

var (
	tradePrefix     = []byte("trade/record/")
	tradeCounterKey = []byte("trade/counter")
)

func tradeKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", tradePrefix, id))
}

// tradeState adapts the state manager to the lifecycle engine's storage
// interface. Trades are persisted under their numeric id; the head counter
// records the last assigned id.
type tradeState struct {
	manager *state.Manager
}

func (s *tradeState) TradePut(t *trade.Trade) error {
	sanitized, err := trade.Sanitize(t)
	if err != nil {
		return err
	}
	return s.manager.KVPut(tradeKey(sanitized.ID), sanitized)
}

func (s *tradeState) TradeGet(id uint64) (*trade.Trade, bool, error) {
	record := &trade.Trade{}
	ok, err := s.manager.KVGet(tradeKey(id), record)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return record, true, nil
}

func (s *tradeState) TradeHeadID() (uint64, error) {
	var head uint64
	if _, err := s.manager.KVGet(tradeCounterKey, &head); err != nil {
		return 0, err
	}
	return head, nil
}

func (s *tradeState) TradeSetHeadID(id uint64) error {
	return s.manager.KVPut(tradeCounterKey, id)
}
