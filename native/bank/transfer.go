package bank

import (
	"math/big"

	"github.com/holiman/uint256"

	"trustrent/core/events"
)

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	amt, err := positiveWord(amount)
	if err != nil {
		return err
	}
	return l.move(from, to, amt)
}

func (l *Ledger) move(from, to [20]byte, amt *uint256.Int) error {
	fromBal, err := l.balanceWord(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amt) {
		return ErrInsufficientBalance
	}
	if from != to {
		toBal, err := l.balanceWord(to)
		if err != nil {
			return err
		}
		newTo, overflow := new(uint256.Int).AddOverflow(toBal, amt)
		if overflow {
			return ErrBalanceOverflow
		}
		newFrom := new(uint256.Int).Sub(fromBal, amt)
		if err := l.state.BankSetBalance(from, newFrom.ToBig()); err != nil {
			return err
		}
		if err := l.state.BankSetBalance(to, newTo.ToBig()); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: amt.ToBig()})
	if l.hook != nil {
		l.hook(from, to, amt.ToBig())
	}
	return nil
}

// Approve sets the amount spender may move out of owner's balance. A zero
// amount revokes the allowance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt, err := toWord(amount)
	if err != nil {
		return err
	}
	if err := l.state.BankSetAllowance(owner, spender, amt.ToBig()); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Owner: owner, Spender: spender, Amount: amt.ToBig()})
	return nil
}

// Allowance returns the amount spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	allowance, err := l.state.BankAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allowance), nil
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming allowance.
func (l *Ledger) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	amt, err := positiveWord(amount)
	if err != nil {
		return err
	}
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	allowed, err := toWord(allowance)
	if err != nil {
		return err
	}
	if allowed.Lt(amt) {
		return ErrInsufficientAllowance
	}
	fromBal, err := l.balanceWord(owner)
	if err != nil {
		return err
	}
	if fromBal.Lt(amt) {
		return ErrInsufficientBalance
	}
	remaining := new(uint256.Int).Sub(allowed, amt)
	if err := l.state.BankSetAllowance(owner, spender, remaining.ToBig()); err != nil {
		return err
	}
	return l.move(owner, to, amt)
}
