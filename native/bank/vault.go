package bank

import "math/big"

// Vault exposes a module account as the escrow side of a ledger. Pull draws on
// the allowance the payer granted to the vault address.
type Vault struct {
	ledger  *Ledger
	address [20]byte
}

// NewVault binds the ledger to the module account at address.
func NewVault(ledger *Ledger, address [20]byte) *Vault {
	return &Vault{ledger: ledger, address: address}
}

// Address returns the vault account address.
func (v *Vault) Address() [20]byte { return v.address }

// Pull moves amount from the payer into the vault.
func (v *Vault) Pull(from [20]byte, amount *big.Int) error {
	return v.ledger.TransferFrom(v.address, from, v.address, amount)
}

// Push pays amount out of the vault.
func (v *Vault) Push(to [20]byte, amount *big.Int) error {
	return v.ledger.Transfer(v.address, to, amount)
}

// Balance returns the funds currently held by the vault.
func (v *Vault) Balance() (*big.Int, error) {
	return v.ledger.Balance(v.address)
}
