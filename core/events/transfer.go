package events

import (
	"math/big"

	"trustrent/core/types"
	"trustrent/crypto"
)

const (
	// TypeTransfer is emitted for ledger balance movements.
	TypeTransfer = "bank.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "bank.approval"
	// TypeMint is emitted when new balance is created by genesis or the faucet.
	TypeMint = "bank.mint"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return types.NewEvent(TypeTransfer,
		"from", crypto.FormatAddress(e.From),
		"to", crypto.FormatAddress(e.To),
		"amount", formatAmount(e.Amount),
	)
}

type Approval struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return types.NewEvent(TypeApproval,
		"owner", crypto.FormatAddress(e.Owner),
		"spender", crypto.FormatAddress(e.Spender),
		"amount", formatAmount(e.Amount),
	)
}

type Mint struct {
	To     [20]byte
	Amount *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return types.NewEvent(TypeMint,
		"to", crypto.FormatAddress(e.To),
		"amount", formatAmount(e.Amount),
	)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
