package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"trustrent/core/events"
	"trustrent/core/pricing"
	rentstate "trustrent/core/state"
	"trustrent/core/types"
	"trustrent/crypto"
	"trustrent/native/bank"
	"trustrent/native/certificate"
	"trustrent/native/rental"
	"trustrent/observability"
	"trustrent/storage"
)

// EscrowModule names the module account holding booking escrow.
const EscrowModule = "rental/escrow"

var (
	// ErrFaucetDisabled is returned when the faucet has not been configured.
	ErrFaucetDisabled = errors.New("faucet disabled")
	errNilDatabase    = errors.New("node: database required")
)

// Options configures a Node.
type Options struct {
	Arbiter [20]byte
	Feed    pricing.PriceFeed
	// Faucet is the amount minted per faucet call. Nil disables the faucet.
	Faucet *big.Int
	Now    func() time.Time
	Logger *slog.Logger
}

// Node executes rental, bank and certificate operations one at a time. Every
// mutating call runs inside its own overlay: either all of its writes and
// journal entries are committed, or none are.
type Node struct {
	db      storage.Database
	stateMu sync.RWMutex
	now     func() time.Time
	arbiter [20]byte
	vault   [20]byte
	feed    pricing.PriceFeed
	faucet  *big.Int
	logger  *slog.Logger

	// onTransfer runs inside the active operation after each balance movement.
	onTransfer func(x *execution, from, to [20]byte, amount *big.Int)

	streamMu     sync.Mutex
	streamSubs   map[uint64]chan types.JournalEntry
	streamNextID uint64
}

// NewNode wires a node over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var faucet *big.Int
	if opts.Faucet != nil && opts.Faucet.Sign() > 0 {
		faucet = new(big.Int).Set(opts.Faucet)
	}
	return &Node{
		db:         db,
		now:        now,
		arbiter:    opts.Arbiter,
		vault:      crypto.ModuleAddress(EscrowModule),
		feed:       opts.Feed,
		faucet:     faucet,
		logger:     logger,
		streamSubs: make(map[uint64]chan types.JournalEntry),
	}, nil
}

// Arbiter returns the configured dispute arbiter.
func (n *Node) Arbiter() [20]byte { return n.arbiter }

// VaultAddress returns the module account guests approve before booking.
func (n *Node) VaultAddress() [20]byte { return n.vault }

// FaucetEnabled reports whether Faucet may be called.
func (n *Node) FaucetEnabled() bool { return n.faucet != nil }

// execution bundles the modules bound to one operation's overlay.
type execution struct {
	now       int64
	manager   *rentstate.Manager
	ledger    *bank.Ledger
	vault     *bank.Vault
	certs     *certificate.Registry
	rental    *rental.Engine
	collector *events.Collector
}

func (n *Node) newExecution(db storage.Database, now int64) *execution {
	x := &execution{now: now, manager: rentstate.NewManager(db), collector: &events.Collector{}}
	clock := func() int64 { return now }

	x.ledger = bank.NewLedger(x.manager)
	x.ledger.SetEmitter(x.collector)
	if n.onTransfer != nil {
		x.ledger.SetTransferHook(func(from, to [20]byte, amount *big.Int) {
			n.onTransfer(x, from, to, amount)
		})
	}
	x.vault = bank.NewVault(x.ledger, n.vault)

	x.certs = certificate.NewRegistry(x.manager)
	x.certs.SetEmitter(x.collector)
	x.certs.SetNowFunc(clock)

	x.rental = rental.NewEngine()
	x.rental.SetState(x.manager)
	x.rental.SetPauses(x.manager)
	x.rental.SetLedger(x.vault)
	x.rental.SetCertificateIssuer(x.certs)
	x.rental.SetArbiter(n.arbiter)
	x.rental.SetNowFunc(clock)
	x.rental.SetEmitter(x.collector)
	return x
}

// execute runs fn atomically. The node lock gives every operation a single
// global order; the journal sequence reflects it.
func (n *Node) execute(operation string, fn func(x *execution) error) error {
	started := time.Now()
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	entries, err := n.apply(fn)
	observability.Rental().Observe(operation, time.Since(started), err)
	if err != nil {
		n.logger.Debug("operation rejected", slog.String("operation", operation), slog.Any("error", err))
		return err
	}
	n.publish(entries)
	return nil
}

func (n *Node) apply(fn func(x *execution) error) ([]types.JournalEntry, error) {
	now := n.now().Unix()
	overlay := rentstate.NewOverlay(n.db)
	x := n.newExecution(overlay, now)
	if err := fn(x); err != nil {
		overlay.Discard()
		return nil, err
	}
	collected := x.collector.Events()
	entries := make([]types.JournalEntry, 0, len(collected))
	for _, evt := range collected {
		seq, err := x.manager.AppendEvent(now, evt)
		if err != nil {
			overlay.Discard()
			return nil, fmt.Errorf("journal: %w", err)
		}
		entries = append(entries, types.JournalEntry{Sequence: seq, Timestamp: now, Event: *evt})
	}
	if err := overlay.Commit(); err != nil {
		overlay.Discard()
		return nil, fmt.Errorf("commit: %w", err)
	}
	return entries, nil
}

// view runs fn against committed state.
func (n *Node) view(fn func(x *execution) error) error {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return fn(n.newExecution(n.db, n.now().Unix()))
}

// Allocation is a genesis balance.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// ApplyGenesis mints allocs the first time it is called against a database.
// Later calls are no-ops. It reports whether the allocations were applied.
func (n *Node) ApplyGenesis(allocs []Allocation) (bool, error) {
	applied := false
	err := n.execute("genesis", func(x *execution) error {
		done, err := x.manager.GenesisApplied()
		if err != nil || done {
			return err
		}
		for _, alloc := range allocs {
			if err := x.ledger.Mint(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis allocation %s: %w", crypto.FormatAddress(alloc.Address), err)
			}
		}
		applied = true
		return x.manager.MarkGenesisApplied()
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("genesis applied", slog.Int("allocations", len(allocs)))
	}
	return applied, nil
}
