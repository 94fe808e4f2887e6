package bank_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"trustrent/core/events"
	"trustrent/core/state"
	"trustrent/native/bank"
	"trustrent/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newLedger(t *testing.T) (*bank.Ledger, *events.Collector) {
	t.Helper()
	ledger := bank.NewLedger(state.NewManager(storage.NewMemDB()))
	collector := &events.Collector{}
	ledger.SetEmitter(collector)
	return ledger, collector
}

func TestMintAndTransfer(t *testing.T) {
	ledger, collector := newLedger(t)
	require.NoError(t, ledger.Mint(addr(1), big.NewInt(1000)))

	require.NoError(t, ledger.Transfer(addr(1), addr(2), big.NewInt(400)))
	bal, err := ledger.Balance(addr(1))
	require.NoError(t, err)
	require.Equal(t, "600", bal.String())
	bal, err = ledger.Balance(addr(2))
	require.NoError(t, err)
	require.Equal(t, "400", bal.String())

	supply, err := ledger.Supply()
	require.NoError(t, err)
	require.Equal(t, "1000", supply.String())

	err = ledger.Transfer(addr(2), addr(1), big.NewInt(401))
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
	require.ErrorIs(t, ledger.Transfer(addr(2), addr(1), big.NewInt(0)), bank.ErrInvalidAmount)

	evts := collector.Events()
	require.Len(t, evts, 2)
	require.Equal(t, events.TypeMint, evts[0].Type)
	require.Equal(t, events.TypeTransfer, evts[1].Type)
}

func TestMintRejectsOverflow(t *testing.T) {
	ledger, _ := newLedger(t)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, ledger.Mint(addr(1), max))
	require.ErrorIs(t, ledger.Mint(addr(1), big.NewInt(1)), bank.ErrBalanceOverflow)
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	require.ErrorIs(t, ledger.Mint(addr(2), tooBig), bank.ErrBalanceOverflow)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newLedger(t)
	owner, spender, to := addr(1), addr(2), addr(3)
	require.NoError(t, ledger.Mint(owner, big.NewInt(1000)))

	err := ledger.TransferFrom(spender, owner, to, big.NewInt(10))
	require.ErrorIs(t, err, bank.ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(owner, spender, big.NewInt(300)))
	require.NoError(t, ledger.TransferFrom(spender, owner, to, big.NewInt(200)))

	allowance, err := ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, "100", allowance.String())

	require.ErrorIs(t, ledger.TransferFrom(spender, owner, to, big.NewInt(101)), bank.ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(owner, spender, big.NewInt(5000)))
	require.ErrorIs(t, ledger.TransferFrom(spender, owner, to, big.NewInt(900)), bank.ErrInsufficientBalance)
	allowance, err = ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, "5000", allowance.String(), "failed transfer must not consume allowance")
}

func TestVaultPullAndPush(t *testing.T) {
	ledger, _ := newLedger(t)
	guest, host, vaultAddr := addr(1), addr(2), addr(9)
	vault := bank.NewVault(ledger, vaultAddr)
	require.NoError(t, ledger.Mint(guest, big.NewInt(1000)))

	err := vault.Pull(guest, big.NewInt(500))
	require.True(t, errors.Is(err, bank.ErrInsufficientAllowance))

	require.NoError(t, ledger.Approve(guest, vaultAddr, big.NewInt(500)))
	require.NoError(t, vault.Pull(guest, big.NewInt(500)))
	held, err := vault.Balance()
	require.NoError(t, err)
	require.Equal(t, "500", held.String())

	var hooked []string
	ledger.SetTransferHook(func(from, to [20]byte, amount *big.Int) {
		hooked = append(hooked, amount.String())
	})
	require.NoError(t, vault.Push(host, big.NewInt(200)))
	require.Equal(t, []string{"200"}, hooked)
	bal, err := ledger.Balance(host)
	require.NoError(t, err)
	require.Equal(t, "200", bal.String())
	require.ErrorIs(t, vault.Push(host, big.NewInt(301)), bank.ErrInsufficientBalance)
}
