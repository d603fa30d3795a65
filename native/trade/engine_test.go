package trade

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"tradesafe/core/events"
	"tradesafe/core/types"
	"tradesafe/native/escrow"
	"tradesafe/native/reputation"
)

// mockState backs the vault, the reputation ledger and the lifecycle engine
// with one shared in-memory store so tests observe the combined effects of a
// single entry point.
type mockState struct {
	kv       map[string][]byte
	accounts map[[20]byte]*types.Account
	trades   map[uint64]*Trade
	head     uint64
}

func newMockState() *mockState {
	return &mockState{
		kv:       make(map[string][]byte),
		accounts: make(map[[20]byte]*types.Account),
		trades:   make(map[uint64]*Trade),
	}
}

func (m *mockState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockState) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	account, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) TradePut(t *Trade) error {
	sanitized, err := Sanitize(t)
	if err != nil {
		return err
	}
	m.trades[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) TradeGet(id uint64) (*Trade, bool, error) {
	record, ok := m.trades[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) TradeHeadID() (uint64, error) { return m.head, nil }

func (m *mockState) TradeSetHeadID(id uint64) error {
	m.head = id
	return nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(t *testing.T, addr [20]byte) int64 {
	t.Helper()
	account, err := m.GetAccount(addr[:])
	require.NoError(t, err)
	return account.Balance.Int64()
}

type captureEmitter struct {
	types []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.types = append(c.types, evt.EventType())
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	buyer    = newTestAddress(0x01)
	seller   = newTestAddress(0x02)
	stranger = newTestAddress(0x03)
	treasury = newTestAddress(0x0F)
)

type fixture struct {
	state  *mockState
	vault  *escrow.Vault
	engine *Engine
	events *captureEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMockState()
	vault := escrow.NewVault()
	vault.SetState(state)
	ledger := reputation.NewLedger(state)
	engine := NewEngine(vault, ledger)
	engine.SetState(state)
	engine.SetFeeTreasury(treasury)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	state.fund(buyer, 10_000)
	return &fixture{state: state, vault: vault, engine: engine, events: emitter}
}

func (f *fixture) create(t *testing.T) uint64 {
	t.Helper()
	id, err := f.engine.Create(buyer, seller, big.NewInt(1000), big.NewInt(100), "Test trade")
	require.NoError(t, err)
	return id
}

func (f *fixture) status(t *testing.T, id uint64) Status {
	t.Helper()
	record, ok, err := f.engine.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	return record.Status
}

func (f *fixture) locked(t *testing.T, id uint64) int64 {
	t.Helper()
	locked, err := f.vault.LockedBalance(id)
	require.NoError(t, err)
	return locked.Int64()
}

func TestCreateTradeAssignsSequentialIDs(t *testing.T) {
	f := newFixture(t)
	f.state.fund(seller, 10_000)

	id, err := f.engine.Create(buyer, seller, big.NewInt(1000), big.NewInt(100), "Test trade")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	// Ids advance by one per successful create, independent of caller.
	id, err = f.engine.Create(seller, buyer, big.NewInt(500), big.NewInt(0), "return leg")
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	record, ok, err := f.engine.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusPending, record.Status)
	require.Equal(t, buyer, record.Buyer)
	require.Equal(t, seller, record.Seller)
	require.Equal(t, int64(1000), record.Amount.Int64())
	require.Equal(t, int64(100), record.Fee.Int64())
	require.Equal(t, uint64(1_700_000_000), record.CreatedAt)
}

func TestCreateTradeLocksAmountPlusFee(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	require.Equal(t, int64(8900), f.state.balance(t, buyer))
	require.Equal(t, int64(1100), f.locked(t, id))
}

func TestCreateTradeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Create(buyer, buyer, big.NewInt(1000), big.NewInt(0), "")
	require.ErrorIs(t, err, ErrInvalidParty)

	_, err = f.engine.Create(buyer, seller, big.NewInt(0), big.NewInt(0), "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.engine.Create(buyer, seller, nil, big.NewInt(0), "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.engine.Create(buyer, seller, big.NewInt(1000), big.NewInt(-1), "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	long := make([]rune, MaxDescriptionLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.engine.Create(buyer, seller, big.NewInt(1000), big.NewInt(0), string(long))
	require.ErrorIs(t, err, ErrInvalidDescription)

	// A rejected create consumes no id and leaves no record behind.
	head, err := f.state.TradeHeadID()
	require.NoError(t, err)
	require.Zero(t, head)
	_, ok, err := f.engine.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateTradeFundsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.state.fund(buyer, 500)

	_, err := f.engine.Create(buyer, seller, big.NewInt(1000), big.NewInt(100), "")
	require.ErrorIs(t, err, escrow.ErrFundsUnavailable)

	require.Equal(t, int64(500), f.state.balance(t, buyer))
	head, headErr := f.state.TradeHeadID()
	require.NoError(t, headErr)
	require.Zero(t, head)
}

func TestConfirmDeliveryCompletesTrade(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	require.NoError(t, f.engine.ConfirmDelivery(id, buyer))

	require.Equal(t, StatusCompleted, f.status(t, id))
	require.Equal(t, int64(1000), f.state.balance(t, seller))
	require.Equal(t, int64(100), f.state.balance(t, treasury))
	require.Zero(t, f.locked(t, id))
}

func TestConfirmDeliveryOnlyBuyer(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	require.ErrorIs(t, f.engine.ConfirmDelivery(id, seller), ErrUnauthorized)
	require.ErrorIs(t, f.engine.ConfirmDelivery(id, stranger), ErrUnauthorized)

	require.Equal(t, StatusPending, f.status(t, id))
	require.Equal(t, int64(1100), f.locked(t, id))
	require.Zero(t, f.state.balance(t, seller))
}

func TestConfirmDeliveryTerminalStatesAreStable(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.ConfirmDelivery(id, buyer))
	require.ErrorIs(t, f.engine.ConfirmDelivery(id, buyer), ErrInvalidState)
	require.Equal(t, int64(1000), f.state.balance(t, seller))

	disputed := f.create(t)
	require.NoError(t, f.engine.Dispute(disputed, buyer))
	require.ErrorIs(t, f.engine.ConfirmDelivery(disputed, buyer), ErrInvalidState)
	require.Equal(t, int64(1100), f.locked(t, disputed))
}

func TestConfirmDeliveryNotFound(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.ConfirmDelivery(99, buyer), ErrNotFound)
}

func TestDisputeByEitherParty(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.Dispute(id, seller))
	require.Equal(t, StatusDisputed, f.status(t, id))
	require.Equal(t, int64(1100), f.locked(t, id), "escrow stays locked pending arbitration")

	second := f.create(t)
	require.NoError(t, f.engine.Dispute(second, buyer))
	require.Equal(t, StatusDisputed, f.status(t, second))
}

func TestDisputeUnauthorized(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.ErrorIs(t, f.engine.Dispute(id, stranger), ErrUnauthorized)
	require.Equal(t, StatusPending, f.status(t, id))
}

func TestDisputeTerminalStatesAreStable(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.Dispute(id, seller))
	require.ErrorIs(t, f.engine.Dispute(id, buyer), ErrInvalidState)

	completed := f.create(t)
	require.NoError(t, f.engine.ConfirmDelivery(completed, buyer))
	require.ErrorIs(t, f.engine.Dispute(completed, seller), ErrInvalidState)
}

func TestGetAbsentTrade(t *testing.T) {
	f := newFixture(t)
	record, ok, err := f.engine.Get(42)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, record)
}

func TestRatingFlow(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.ConfirmDelivery(id, buyer))

	require.NoError(t, f.engine.SubmitRating(id, buyer, reputation.RatingPositive, "Great seller!"))
	require.NoError(t, f.engine.SubmitRating(id, seller, reputation.RatingPositive, "Great buyer!"))

	ledger := reputation.NewLedger(f.state)
	sellerAgg, ok, err := ledger.Get(seller)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), sellerAgg.PositiveRatings)
	require.Equal(t, uint64(1), sellerAgg.TotalTrades)

	buyerAgg, ok, err := ledger.Get(buyer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), buyerAgg.PositiveRatings)
	require.Equal(t, uint64(1), buyerAgg.TotalTrades)

	record, ok, err := f.engine.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, record.BuyerRated)
	require.True(t, record.SellerRated)
}

func TestRatingRequiresCompletedTrade(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.ErrorIs(t, f.engine.SubmitRating(id, buyer, reputation.RatingPositive, ""), ErrInvalidState)

	require.NoError(t, f.engine.Dispute(id, buyer))
	require.ErrorIs(t, f.engine.SubmitRating(id, buyer, reputation.RatingPositive, ""), ErrInvalidState)
}

func TestRatingGuards(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.ConfirmDelivery(id, buyer))

	require.ErrorIs(t, f.engine.SubmitRating(99, buyer, reputation.RatingPositive, ""), ErrNotFound)
	require.ErrorIs(t, f.engine.SubmitRating(id, stranger, reputation.RatingPositive, ""), ErrUnauthorized)

	require.NoError(t, f.engine.SubmitRating(id, buyer, reputation.RatingNegative, "late shipping"))
	require.ErrorIs(t, f.engine.SubmitRating(id, buyer, reputation.RatingPositive, ""), reputation.ErrAlreadyRated)

	ledger := reputation.NewLedger(f.state)
	sellerAgg, ok, err := ledger.Get(seller)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), sellerAgg.TotalTrades)
	require.Equal(t, uint64(0), sellerAgg.PositiveRatings)
}

func TestEngineEmitsLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	require.NoError(t, f.engine.ConfirmDelivery(id, buyer))
	require.NoError(t, f.engine.SubmitRating(id, buyer, reputation.RatingPositive, ""))

	require.Equal(t, []string{
		EventTypeTradeCreated,
		EventTypeTradeCompleted,
		EventTypeTradeRated,
	}, f.events.types)
}
