package bank

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"trustrent/core/events"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrBalanceOverflow       = errors.New("bank: balance overflow")
	errNilState              = errors.New("bank: state not configured")
)

type ledgerState interface {
	BankBalance(addr [20]byte) (*big.Int, error)
	BankSetBalance(addr [20]byte, amount *big.Int) error
	BankAllowance(owner, spender [20]byte) (*big.Int, error)
	BankSetAllowance(owner, spender [20]byte, amount *big.Int) error
	BankSupply() (*big.Int, error)
	BankSetSupply(amount *big.Int) error
}

// TransferHook observes committed balance movements. It runs after both
// balances have been written.
type TransferHook func(from, to [20]byte, amount *big.Int)

// Ledger holds fungible balances for the payment token. Balances are 256-bit
// words; arithmetic that would overflow is rejected.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
	hook    TransferHook
}

// NewLedger returns a ledger operating on state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil disables events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetTransferHook installs a hook invoked after every transfer.
func (l *Ledger) SetTransferHook(hook TransferHook) { l.hook = hook }

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return word, nil
}

func positiveWord(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return toWord(v)
}

func (l *Ledger) balanceWord(addr [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	bal, err := l.state.BankBalance(addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return new(uint256.Int), nil
	}
	return toWord(bal)
}

// Balance returns the balance of addr.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	word, err := l.balanceWord(addr)
	if err != nil {
		return nil, err
	}
	return word.ToBig(), nil
}

// Supply returns the total amount minted.
func (l *Ledger) Supply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	supply, err := l.state.BankSupply()
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(supply), nil
}

// Mint credits amount to addr and grows the supply.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	amt, err := positiveWord(amount)
	if err != nil {
		return err
	}
	bal, err := l.balanceWord(to)
	if err != nil {
		return err
	}
	supply, err := l.Supply()
	if err != nil {
		return err
	}
	supplyWord, err := toWord(supply)
	if err != nil {
		return err
	}
	newBal, overflow := new(uint256.Int).AddOverflow(bal, amt)
	if overflow {
		return ErrBalanceOverflow
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supplyWord, amt)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := l.state.BankSetBalance(to, newBal.ToBig()); err != nil {
		return err
	}
	if err := l.state.BankSetSupply(newSupply.ToBig()); err != nil {
		return err
	}
	l.emitter.Emit(events.Mint{To: to, Amount: amt.ToBig()})
	return nil
}
