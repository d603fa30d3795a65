package core

import (
	"math/big"
	"sync"

	"tradesafe/core/events"
	"tradesafe/core/state"
	"tradesafe/core/types"
	"tradesafe/native/escrow"
	"tradesafe/native/reputation"
	"tradesafe/native/trade"
)

// Node hosts the engines behind a single serialized execution boundary. Every
// mutating entry point runs to completion under one mutex, mirroring the
// call-serialization guarantee the engines assume: no internal locking exists
// below this layer.
type Node struct {
	mu sync.Mutex

	state   *state.Manager
	vault   *escrow.Vault
	ratings *reputation.Ledger
	trades  *trade.Engine
}

// NewNode wires the vault, reputation ledger and lifecycle engine against the
// supplied state manager.
func NewNode(manager *state.Manager) *Node {
	vault := escrow.NewVault()
	vault.SetState(manager)
	ratings := reputation.NewLedger(manager)
	engine := trade.NewEngine(vault, ratings)
	engine.SetState(&tradeState{manager: manager})
	return &Node{
		state:   manager,
		vault:   vault,
		ratings: ratings,
		trades:  engine,
	}
}

// SetEmitter routes engine events to the supplied emitter.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vault.SetEmitter(emitter)
	n.trades.SetEmitter(emitter)
}

// SetFeeTreasury overrides the fee destination used on trade completion.
func (n *Node) SetFeeTreasury(addr [20]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades.SetFeeTreasury(addr)
}

// SetResolver installs the arbitration policy for disputed trades.
func (n *Node) SetResolver(r trade.Resolver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades.SetResolver(r)
}

// TradeEngine exposes the lifecycle engine for test harnesses.
func (n *Node) TradeEngine() *trade.Engine { return n.trades }

// TradeCreate locks amount+fee from the buyer and opens a Pending trade.
func (n *Node) TradeCreate(buyer, seller [20]byte, amount, fee *big.Int, description string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.Create(buyer, seller, amount, fee, description)
}

// TradeConfirmDelivery releases custody to the seller and completes the trade.
func (n *Node) TradeConfirmDelivery(id uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.ConfirmDelivery(id, caller)
}

// TradeDispute freezes the trade pending arbitration.
func (n *Node) TradeDispute(id uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.Dispute(id, caller)
}

// TradeGet returns the trade record if present.
func (n *Node) TradeGet(id uint64) (*trade.Trade, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.Get(id)
}

// TradeSubmitRating records a post-completion rating for the counterparty.
func (n *Node) TradeSubmitRating(id uint64, caller [20]byte, value reputation.RatingValue, comment string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.SubmitRating(id, caller, value, comment)
}

// TradeResolve applies the installed resolver to a disputed trade.
func (n *Node) TradeResolve(id uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.Resolve(id, caller)
}

// ReputationGet returns the aggregate for the principal if one exists.
func (n *Node) ReputationGet(subject [20]byte) (*reputation.UserRating, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ratings.Get(subject)
}

// EscrowLockedBalance reports the value currently in custody for the trade.
func (n *Node) EscrowLockedBalance(id uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.LockedBalance(id)
}

// GetAccount returns the account record for the address.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.GetAccount(addr[:])
}

// Credit adds value to an account balance. Exposed for genesis funding and
// test fixtures; the host ledger's deposit mechanism is a collaborator
// outside this module.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return n.state.PutAccount(addr[:], account)
}
