package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"tradesafe/core/events"
	"tradesafe/core/types"
	"tradesafe/crypto"
)

var (
	errNilState = errors.New("escrow vault: state not configured")

	// ErrFundsUnavailable is returned when the payer's spendable balance
	// cannot cover the requested lock.
	ErrFundsUnavailable = errors.New("escrow vault: funds unavailable")
	// ErrAlreadyLocked marks an attempt to lock funds under a trade id that
	// already holds a live lock.
	ErrAlreadyLocked = errors.New("escrow vault: trade already locked")
	// ErrAlreadyReleased marks a second disposition attempt for a trade id
	// whose locked balance has already been drained.
	ErrAlreadyReleased = errors.New("escrow vault: already released")
)

// vaultState is the subset of state manager functionality the vault needs.
type vaultState interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

var lockPrefix = []byte("escrow/lock/")

func lockKey(tradeID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", lockPrefix, tradeID))
}

// Vault holds custody of each trade's locked value under a derived module
// address and guarantees at-most-once disposition per trade id.
type Vault struct {
	state   vaultState
	emitter events.Emitter
	addr    [20]byte
}

// NewVault constructs a vault with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewVault() *Vault {
	return &Vault{
		emitter: events.NoopEmitter{},
		addr:    crypto.ModuleAddress("escrow-vault"),
	}
}

// SetState configures the state backend used by the vault.
func (v *Vault) SetState(state vaultState) { v.state = state }

// SetEmitter configures the event emitter used by the vault. Passing nil
// resets the emitter to a no-op implementation.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// Address returns the module address holding all locked funds.
func (v *Vault) Address() [20]byte { return v.addr }

func (v *Vault) emit(event *types.Event) {
	if v == nil || v.emitter == nil || event == nil {
		return
	}
	v.emitter.Emit(vaultEvent{evt: event})
}

func cloneBigInt(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (v *Vault) transfer(from, to [20]byte, amount *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("escrow vault: negative transfer amount")
	}
	fromAcc, err := v.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := v.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrFundsUnavailable
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := v.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return v.state.PutAccount(to[:], toAcc)
}

// LockedBalance reports the value currently held in custody for the trade id.
// Trades with no live lock resolve to zero.
func (v *Vault) LockedBalance(tradeID uint64) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	locked := new(big.Int)
	if _, err := v.state.KVGet(lockKey(tradeID), locked); err != nil {
		return nil, err
	}
	return locked, nil
}

// Lock debits total from the payer and records it in custody for the trade
// id. The check against the payer's spendable balance happens before any
// write, so a rejected lock leaves no mutation behind.
func (v *Vault) Lock(tradeID uint64, payer [20]byte, total *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	amt := cloneBigInt(total)
	if amt.Sign() <= 0 {
		return fmt.Errorf("escrow vault: lock amount must be positive")
	}
	existing, err := v.LockedBalance(tradeID)
	if err != nil {
		return err
	}
	if existing.Sign() > 0 {
		return ErrAlreadyLocked
	}
	payerAcc, err := v.state.GetAccount(payer[:])
	if err != nil {
		return err
	}
	payerAcc = ensureAccount(payerAcc)
	if payerAcc.Balance.Cmp(amt) < 0 {
		return ErrFundsUnavailable
	}
	if err := v.transfer(payer, v.addr, amt); err != nil {
		return err
	}
	if err := v.state.KVPut(lockKey(tradeID), amt); err != nil {
		return err
	}
	v.emit(NewLockedEvent(tradeID, payer, amt))
	return nil
}

// Release moves amount from custody to the recipient and any remainder of
// the lock (the fee) to feeTo, then zeroes the lock. A trade id whose lock is
// already zero refuses a second release regardless of caller.
func (v *Vault) Release(tradeID uint64, recipient [20]byte, amount *big.Int, feeTo [20]byte) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	locked, err := v.LockedBalance(tradeID)
	if err != nil {
		return err
	}
	if locked.Sign() == 0 {
		return ErrAlreadyReleased
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("escrow vault: release amount must be positive")
	}
	if locked.Cmp(amt) < 0 {
		return fmt.Errorf("escrow vault: release exceeds locked balance")
	}
	if err := v.transfer(v.addr, recipient, amt); err != nil {
		return err
	}
	fee := new(big.Int).Sub(locked, amt)
	if fee.Sign() > 0 {
		if err := v.transfer(v.addr, feeTo, fee); err != nil {
			return err
		}
	}
	if err := v.state.KVPut(lockKey(tradeID), big.NewInt(0)); err != nil {
		return err
	}
	v.emit(NewReleasedEvent(tradeID, recipient, amt, fee))
	return nil
}

// Payout directs part of a trade's locked balance to a recipient during
// dispute resolution.
type Payout struct {
	To     [20]byte
	Amount *big.Int
}

// Distribute drains the lock across the payouts in one step, sending any
// remainder to feeTo, then zeroes the lock. Reserved for dispute resolution;
// the lifecycle's completion path always moves the full amount via Release.
func (v *Vault) Distribute(tradeID uint64, payouts []Payout, feeTo [20]byte) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	locked, err := v.LockedBalance(tradeID)
	if err != nil {
		return err
	}
	if locked.Sign() == 0 {
		return ErrAlreadyReleased
	}
	total := new(big.Int)
	for _, payout := range payouts {
		amt := cloneBigInt(payout.Amount)
		if amt.Sign() <= 0 {
			return fmt.Errorf("escrow vault: payout amount must be positive")
		}
		total.Add(total, amt)
	}
	if locked.Cmp(total) < 0 {
		return fmt.Errorf("escrow vault: payouts exceed locked balance")
	}
	for _, payout := range payouts {
		if err := v.transfer(v.addr, payout.To, payout.Amount); err != nil {
			return err
		}
	}
	fee := new(big.Int).Sub(locked, total)
	if fee.Sign() > 0 {
		if err := v.transfer(v.addr, feeTo, fee); err != nil {
			return err
		}
	}
	if err := v.state.KVPut(lockKey(tradeID), big.NewInt(0)); err != nil {
		return err
	}
	v.emit(NewReleasedEvent(tradeID, feeTo, total, fee))
	return nil
}

// Refund returns the full locked balance to the payer and zeroes the lock.
// Reserved for dispute resolution; no lifecycle entry point reaches it.
func (v *Vault) Refund(tradeID uint64, payer [20]byte) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	locked, err := v.LockedBalance(tradeID)
	if err != nil {
		return err
	}
	if locked.Sign() == 0 {
		return ErrAlreadyReleased
	}
	if err := v.transfer(v.addr, payer, locked); err != nil {
		return err
	}
	if err := v.state.KVPut(lockKey(tradeID), big.NewInt(0)); err != nil {
		return err
	}
	v.emit(NewRefundedEvent(tradeID, payer, locked))
	return nil
}
