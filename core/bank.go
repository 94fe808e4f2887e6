package core

import (
	"math/big"

	"trustrent/core/pricing"
	"trustrent/core/types"
	"trustrent/native/certificate"
	"trustrent/native/rental"
)

// Transfer moves amount between accounts.
func (n *Node) Transfer(from, to [20]byte, amount *big.Int) error {
	return n.execute("transfer", func(x *execution) error {
		return x.ledger.Transfer(from, to, amount)
	})
}

// Approve sets the allowance spender may draw from owner.
func (n *Node) Approve(owner, spender [20]byte, amount *big.Int) error {
	return n.execute("approve", func(x *execution) error {
		return x.ledger.Approve(owner, spender, amount)
	})
}

// Faucet mints the configured drip to addr.
func (n *Node) Faucet(addr [20]byte) (*big.Int, error) {
	if n.faucet == nil {
		return nil, ErrFaucetDisabled
	}
	err := n.execute("faucet", func(x *execution) error {
		return x.ledger.Mint(addr, n.faucet)
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(n.faucet), nil
}

// Balance returns the committed balance of addr.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(x *execution) error {
		var err error
		balance, err = x.ledger.Balance(addr)
		return err
	})
	return balance, err
}

// Allowance returns what spender may still draw from owner.
func (n *Node) Allowance(owner, spender [20]byte) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(func(x *execution) error {
		var err error
		allowance, err = x.ledger.Allowance(owner, spender)
		return err
	})
	return allowance, err
}

// EscrowBalance returns the funds held by the escrow vault.
func (n *Node) EscrowBalance() (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(x *execution) error {
		var err error
		balance, err = x.vault.Balance()
		return err
	})
	return balance, err
}

// Certificate returns a booking certificate by id.
func (n *Node) Certificate(id uint64) (*certificate.Certificate, error) {
	var cert *certificate.Certificate
	err := n.view(func(x *execution) error {
		var err error
		cert, err = x.certs.Certificate(id)
		return err
	})
	return cert, err
}

// TransferCertificate hands a certificate to a new owner.
func (n *Node) TransferCertificate(caller, to [20]byte, id uint64) error {
	return n.execute("transferCertificate", func(x *execution) error {
		return x.certs.Transfer(caller, to, id)
	})
}

// Events returns committed journal entries after the given sequence.
func (n *Node) Events(after uint64, limit int) ([]types.JournalEntry, error) {
	var entries []types.JournalEntry
	err := n.view(func(x *execution) error {
		var err error
		entries, err = x.manager.Events(after, limit)
		return err
	})
	return entries, err
}

// JournalHead returns the latest committed journal sequence.
func (n *Node) JournalHead() (uint64, error) {
	var head uint64
	err := n.view(func(x *execution) error {
		var err error
		head, err = x.manager.JournalHead()
		return err
	})
	return head, err
}

// Quote prices months of a listing with the configured feed.
func (n *Node) Quote(listingID uint64, months uint64) (pricing.Quote, error) {
	if n.feed == nil {
		return pricing.Quote{}, pricing.ErrFeedNotConfigured
	}
	var listing *rental.Listing
	err := n.view(func(x *execution) error {
		var err error
		listing, err = x.rental.Listing(listingID)
		return err
	})
	if err != nil {
		return pricing.Quote{}, err
	}
	return n.feed.Quote(listing, months, n.now())
}
