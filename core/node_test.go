package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"tradesafe/core/state"
	"tradesafe/native/reputation"
	"tradesafe/native/trade"
	"tradesafe/storage"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	return NewNode(state.NewManager(storage.NewMemDB()))
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

// Full flow against the real state manager: create, confirm, rate both ways,
// read both aggregates back.
func TestNodeCompleteTradeFlowWithRatings(t *testing.T) {
	node := newTestNode(t)
	buyer := addr(0x01)
	seller := addr(0x02)
	require.NoError(t, node.Credit(buyer, big.NewInt(5000)))

	id, err := node.TradeCreate(buyer, seller, big.NewInt(1000), big.NewInt(100), "Test trade")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, node.TradeConfirmDelivery(id, buyer))
	require.NoError(t, node.TradeSubmitRating(id, buyer, reputation.RatingPositive, "Great seller!"))
	require.NoError(t, node.TradeSubmitRating(id, seller, reputation.RatingPositive, "Great buyer!"))

	aggregate, ok, err := node.ReputationGet(seller)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), aggregate.PositiveRatings)
	require.Equal(t, uint64(1), aggregate.TotalTrades)

	record, ok, err := node.TradeGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, trade.StatusCompleted, record.Status)

	sellerAcc, err := node.GetAccount(seller)
	require.NoError(t, err)
	require.Equal(t, int64(1000), sellerAcc.Balance.Int64())
}

func TestNodeDisputeFreezesFunds(t *testing.T) {
	node := newTestNode(t)
	buyer := addr(0x01)
	seller := addr(0x02)
	require.NoError(t, node.Credit(buyer, big.NewInt(2000)))

	id, err := node.TradeCreate(buyer, seller, big.NewInt(1000), big.NewInt(100), "Test trade")
	require.NoError(t, err)

	require.NoError(t, node.TradeDispute(id, seller))

	record, ok, err := node.TradeGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, trade.StatusDisputed, record.Status)

	locked, err := node.EscrowLockedBalance(id)
	require.NoError(t, err)
	require.Equal(t, int64(1100), locked.Int64())

	require.ErrorIs(t, node.TradeResolve(id, buyer), trade.ErrResolverNotConfigured)
}

func TestNodeUnauthorizedDisputeLeavesStatePristine(t *testing.T) {
	node := newTestNode(t)
	buyer := addr(0x01)
	seller := addr(0x02)
	outsider := addr(0x03)
	require.NoError(t, node.Credit(buyer, big.NewInt(2000)))

	id, err := node.TradeCreate(buyer, seller, big.NewInt(1000), big.NewInt(100), "Test trade")
	require.NoError(t, err)

	require.ErrorIs(t, node.TradeDispute(id, outsider), trade.ErrUnauthorized)

	record, ok, err := node.TradeGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, trade.StatusPending, record.Status)
}

func TestNodeStatePersistsAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	node := NewNode(state.NewManager(db))
	buyer := addr(0x01)
	seller := addr(0x02)
	require.NoError(t, node.Credit(buyer, big.NewInt(2000)))
	id, err := node.TradeCreate(buyer, seller, big.NewInt(1000), big.NewInt(0), "persistent")
	require.NoError(t, err)

	// A fresh node over the same database resumes where the first stopped.
	revived := NewNode(state.NewManager(db))
	record, ok, err := revived.TradeGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persistent", record.Description)

	next, err := revived.TradeCreate(buyer, seller, big.NewInt(500), big.NewInt(0), "second")
	require.NoError(t, err)
	require.Equal(t, id+1, next)
}
