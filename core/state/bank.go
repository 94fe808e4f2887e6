package state

import (
	"math/big"
)

var (
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
	supplyKey       = []byte("bank/supply")
)

func balanceKey(addr [20]byte) []byte {
	return prefixedKey(balancePrefix, addr[:])
}

func allowanceKey(owner, spender [20]byte) []byte {
	return prefixedKey(allowancePrefix, owner[:], spender[:])
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

func (m *Manager) BankBalance(addr [20]byte) (*big.Int, error) {
	return m.loadAmount(balanceKey(addr))
}

func (m *Manager) BankSetBalance(addr [20]byte, amount *big.Int) error {
	return m.storeAmount(balanceKey(addr), amount)
}

func (m *Manager) BankAllowance(owner, spender [20]byte) (*big.Int, error) {
	return m.loadAmount(allowanceKey(owner, spender))
}

func (m *Manager) BankSetAllowance(owner, spender [20]byte, amount *big.Int) error {
	return m.storeAmount(allowanceKey(owner, spender), amount)
}

func (m *Manager) BankSupply() (*big.Int, error) {
	return m.loadAmount(supplyKey)
}

func (m *Manager) BankSetSupply(amount *big.Int) error {
	return m.storeAmount(supplyKey, amount)
}
