package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"tradesafe/crypto"
	"tradesafe/native/trade"
)

type tradeJSON struct {
	ID          uint64   `json:"id"`
	Buyer       string   `json:"buyer"`
	Seller      string   `json:"seller"`
	Amount      string   `json:"amount"`
	Fee         string   `json:"fee"`
	Description string   `json:"description"`
	Status      uint8    `json:"status"`
	StatusLabel string   `json:"statusLabel"`
	CreatedAt   uint64   `json:"createdAt"`
	RatedBy     []string `json:"ratedBy"`
}

type userRatingJSON struct {
	Principal       string `json:"principal"`
	PositiveRatings uint64 `json:"positiveRatings"`
	TotalTrades     uint64 `json:"totalTrades"`
}

type balanceJSON struct {
	Principal string `json:"principal"`
	Balance   string `json:"balance"`
}

func toTradeJSON(t *trade.Trade) tradeJSON {
	ratedBy := []string{}
	if t.BuyerRated {
		ratedBy = append(ratedBy, crypto.MustNewAddress(bytesOf(t.Buyer)).String())
	}
	if t.SellerRated {
		ratedBy = append(ratedBy, crypto.MustNewAddress(bytesOf(t.Seller)).String())
	}
	return tradeJSON{
		ID:          t.ID,
		Buyer:       crypto.MustNewAddress(bytesOf(t.Buyer)).String(),
		Seller:      crypto.MustNewAddress(bytesOf(t.Seller)).String(),
		Amount:      t.Amount.String(),
		Fee:         t.Fee.String(),
		Description: t.Description,
		Status:      uint8(t.Status),
		StatusLabel: t.Status.String(),
		CreatedAt:   t.CreatedAt,
		RatedBy:     ratedBy,
	}
}

func bytesOf(addr [20]byte) []byte {
	return addr[:]
}

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Bytes(), nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if parsed.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return parsed, nil
}

func parseNonNegativeBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("fee must be a base-10 integer")
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("fee must be non-negative")
	}
	return parsed, nil
}
