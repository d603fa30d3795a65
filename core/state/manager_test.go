package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"tradesafe/core/types"
	"tradesafe/storage"
)

func TestKVRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	require.NoError(t, manager.KVPut([]byte("counter"), uint64(7)))

	var out uint64
	ok, err := manager.KVGet([]byte("counter"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), out)

	ok, err = manager.KVGet([]byte("missing"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVRejectsEmptyKey(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.Error(t, manager.KVPut(nil, uint64(1)))
	_, err := manager.KVGet(nil, nil)
	require.Error(t, err)
}

func TestKVExistenceProbe(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.NoError(t, manager.KVPut([]byte("probe"), uint64(1)))

	// nil destination reports presence without decoding.
	ok, err := manager.KVGet([]byte("probe"), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAccountsDefaultToZeroBalance(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := []byte("address-one-20-bytes")

	account, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, account.Balance)
	require.Zero(t, account.Balance.Sign())
}

func TestAccountRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := []byte("address-one-20-bytes")

	require.NoError(t, manager.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(1234)}))

	account, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), account.Nonce)
	require.Equal(t, int64(1234), account.Balance.Int64())

	require.Error(t, manager.PutAccount(addr, nil))
}
