package trade

import (
	"errors"
	"fmt"
	"math/big"

	"tradesafe/native/escrow"
)

// ResolutionOutcome enumerates the terminal fund distributions an arbitration
// policy may produce for a disputed trade.
type ResolutionOutcome uint8

const (
	// OutcomeReleaseSeller pays the full amount to the seller, as a
	// confirmed delivery would have.
	OutcomeReleaseSeller ResolutionOutcome = iota + 1
	// OutcomeRefundBuyer returns the entire locked balance, fee included,
	// to the buyer.
	OutcomeRefundBuyer
	// OutcomeSplit divides the amount between the parties per the
	// resolution's BuyerShare.
	OutcomeSplit
)

// Resolution carries the arbitration verdict for a disputed trade.
type Resolution struct {
	Outcome ResolutionOutcome
	// BuyerShare is the portion of the trade amount returned to the buyer
	// when Outcome is OutcomeSplit. Must be positive and below the amount.
	BuyerShare *big.Int
}

// Resolver is the privileged arbitration collaborator invoked on disputed
// trades. No policy ships with the engine: which principals may arbitrate,
// how the fee is treated on the disputed path, and what verdicts are reached
// are decisions for the integration installing the resolver.
type Resolver interface {
	// Resolve inspects a disputed trade and returns the verdict to apply.
	// A non-nil error aborts resolution and leaves the trade Disputed with
	// funds frozen.
	Resolve(t *Trade, caller [20]byte) (Resolution, error)
}

// ErrResolverNotConfigured is returned by Resolve while no arbitration
// policy is installed. Disputed trades stay stable and funds stay frozen.
var ErrResolverNotConfigured = errors.New("trade engine: dispute resolver not configured")

// SetResolver installs the arbitration policy used by Resolve.
func (e *Engine) SetResolver(r Resolver) {
	if e == nil {
		return
	}
	e.resolver = r
}

// Resolve applies the installed resolver's verdict to a Disputed trade,
// moving it to Resolved. Without an installed resolver the call fails and
// the trade is untouched.
func (e *Engine) Resolve(id uint64, caller [20]byte) error {
	record, err := e.loadTrade(id)
	if err != nil {
		return err
	}
	if record.Status != StatusDisputed {
		return ErrInvalidState
	}
	if e.resolver == nil {
		return ErrResolverNotConfigured
	}
	if e.vault == nil {
		return errNilVault
	}
	verdict, err := e.resolver.Resolve(record.Clone(), caller)
	if err != nil {
		return err
	}
	switch verdict.Outcome {
	case OutcomeReleaseSeller:
		if err := e.vault.Release(id, record.Seller, record.Amount, e.feeTreasury); err != nil {
			return err
		}
	case OutcomeRefundBuyer:
		if err := e.vault.Refund(id, record.Buyer); err != nil {
			return err
		}
	case OutcomeSplit:
		share := verdict.BuyerShare
		if share == nil || share.Sign() <= 0 || share.Cmp(record.Amount) >= 0 {
			return fmt.Errorf("trade engine: invalid split share")
		}
		sellerPart := new(big.Int).Sub(record.Amount, share)
		payouts := []escrow.Payout{
			{To: record.Seller, Amount: sellerPart},
			{To: record.Buyer, Amount: share},
		}
		if err := e.vault.Distribute(id, payouts, e.feeTreasury); err != nil {
			return err
		}
	default:
		return fmt.Errorf("trade engine: invalid resolution outcome %d", verdict.Outcome)
	}
	record.Status = StatusResolved
	if err := e.state.TradePut(record); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(record, verdict.Outcome))
	return nil
}
