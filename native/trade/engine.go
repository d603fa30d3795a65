package trade

import (
	"errors"
	"math/big"
	"time"
	"unicode/utf8"

	"tradesafe/core/events"
	"tradesafe/core/types"
	"tradesafe/crypto"
	"tradesafe/native/escrow"
	"tradesafe/native/reputation"
)

var (
	errNilState = errors.New("trade engine: state not configured")
	errNilVault = errors.New("trade engine: escrow vault not configured")

	// ErrInvalidParty is returned when the buyer and seller are the same
	// principal.
	ErrInvalidParty = errors.New("trade engine: buyer and seller must differ")
	// ErrInvalidAmount is returned for a zero, negative or missing trade
	// amount, or a negative fee.
	ErrInvalidAmount = errors.New("trade engine: invalid amount")
	// ErrInvalidDescription is returned when the description exceeds the
	// length bound.
	ErrInvalidDescription = errors.New("trade engine: description too long")
	// ErrNotFound marks missing trade records.
	ErrNotFound = errors.New("trade engine: trade not found")
	// ErrUnauthorized is returned when the caller is not permitted to drive
	// the requested transition.
	ErrUnauthorized = errors.New("trade engine: unauthorized caller")
	// ErrInvalidState is returned when the trade's current status does not
	// admit the requested transition.
	ErrInvalidState = errors.New("trade engine: status transition not allowed")
)

// engineState is the subset of state manager functionality required by the
// lifecycle engine. The id counter is only ever advanced inside a successful
// create.
type engineState interface {
	TradePut(*Trade) error
	TradeGet(id uint64) (*Trade, bool, error)
	TradeHeadID() (uint64, error)
	TradeSetHeadID(id uint64) error
}

// Engine owns the trade lifecycle state machine. Mutating entry points
// validate authorization and current status before driving the escrow vault
// and the reputation ledger.
type Engine struct {
	state       engineState
	vault       *escrow.Vault
	ratings     *reputation.Ledger
	emitter     events.Emitter
	resolver    Resolver
	feeTreasury [20]byte
	nowFn       func() int64
}

// NewEngine constructs a lifecycle engine bound to the supplied vault and
// reputation ledger. Fees default to the derived treasury module address;
// override via SetFeeTreasury.
func NewEngine(vault *escrow.Vault, ratings *reputation.Ledger) *Engine {
	return &Engine{
		vault:       vault,
		ratings:     ratings,
		emitter:     events.NoopEmitter{},
		feeTreasury: crypto.ModuleAddress("fee-treasury"),
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeTreasury configures the address that receives trade fees on
// completion.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(tradeEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Create locks amount+fee from the buyer into the vault under a freshly
// allocated trade id and persists the Pending record. Ids start at 1 and
// advance by exactly one per successful create; a rejected call does not
// consume an id.
func (e *Engine) Create(buyer, seller [20]byte, amount, fee *big.Int, description string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.vault == nil {
		return 0, errNilVault
	}
	if buyer == seller {
		return 0, ErrInvalidParty
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	if fee.Sign() < 0 {
		return 0, ErrInvalidAmount
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return 0, ErrInvalidDescription
	}
	head, err := e.state.TradeHeadID()
	if err != nil {
		return 0, err
	}
	id := head + 1
	total := new(big.Int).Add(amount, fee)
	if err := e.vault.Lock(id, buyer, total); err != nil {
		return 0, err
	}
	record := &Trade{
		ID:          id,
		Buyer:       buyer,
		Seller:      seller,
		Amount:      new(big.Int).Set(amount),
		Fee:         new(big.Int).Set(fee),
		Description: description,
		Status:      StatusPending,
		CreatedAt:   uint64(e.now()),
	}
	if err := e.state.TradePut(record); err != nil {
		return 0, err
	}
	if err := e.state.TradeSetHeadID(id); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(record))
	return id, nil
}

// ConfirmDelivery releases the trade's amount to the seller and its fee to
// the treasury, then marks the trade Completed. The vault refuses a second
// release for the same id, so the transition is exactly-once.
func (e *Engine) ConfirmDelivery(id uint64, caller [20]byte) error {
	record, err := e.loadTrade(id)
	if err != nil {
		return err
	}
	if caller != record.Buyer {
		return ErrUnauthorized
	}
	if record.Status != StatusPending {
		return ErrInvalidState
	}
	if e.vault == nil {
		return errNilVault
	}
	if err := e.vault.Release(id, record.Seller, record.Amount, e.feeTreasury); err != nil {
		return err
	}
	record.Status = StatusCompleted
	if err := e.state.TradePut(record); err != nil {
		return err
	}
	e.emit(NewCompletedEvent(record))
	return nil
}

// Dispute freezes the trade pending external arbitration. Funds stay locked
// in the vault; only an installed resolver can move them afterwards.
func (e *Engine) Dispute(id uint64, caller [20]byte) error {
	record, err := e.loadTrade(id)
	if err != nil {
		return err
	}
	if !record.IsParty(caller) {
		return ErrUnauthorized
	}
	if record.Status != StatusPending {
		return ErrInvalidState
	}
	record.Status = StatusDisputed
	if err := e.state.TradePut(record); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(record))
	return nil
}

// Get returns a copy of the trade record if present. Any caller may read.
func (e *Engine) Get(id uint64) (*Trade, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	record, ok, err := e.state.TradeGet(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	sanitized, err := Sanitize(record)
	if err != nil {
		return nil, false, err
	}
	return sanitized, true, nil
}

// SubmitRating attributes a post-completion rating to the caller's
// counterparty. Each party may rate at most once per trade.
func (e *Engine) SubmitRating(id uint64, caller [20]byte, value reputation.RatingValue, comment string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ratings == nil {
		return errors.New("trade engine: reputation ledger not configured")
	}
	record, err := e.loadTrade(id)
	if err != nil {
		return err
	}
	if record.Status != StatusCompleted {
		return ErrInvalidState
	}
	if !record.IsParty(caller) {
		return ErrUnauthorized
	}
	if record.RatedBy(caller) {
		return reputation.ErrAlreadyRated
	}
	subject, err := record.Counterparty(caller)
	if err != nil {
		return ErrUnauthorized
	}
	rating := &reputation.Rating{
		TradeID:     id,
		Rater:       caller,
		Subject:     subject,
		Value:       value,
		Comment:     comment,
		SubmittedAt: uint64(e.now()),
	}
	if err := e.ratings.Record(rating); err != nil {
		return err
	}
	if caller == record.Buyer {
		record.BuyerRated = true
	} else {
		record.SellerRated = true
	}
	if err := e.state.TradePut(record); err != nil {
		return err
	}
	e.emit(NewRatedEvent(record, rating))
	return nil
}

func (e *Engine) loadTrade(id uint64) (*Trade, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.TradeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	sanitized, err := Sanitize(record)
	if err != nil {
		return nil, err
	}
	return sanitized, nil
}
