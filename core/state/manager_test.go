package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"trustrent/core/types"
	"trustrent/native/certificate"
	"trustrent/native/rental"
	"trustrent/storage"
)

func TestNextIDStartsAtOne(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	for want := uint64(1); want <= 3; want++ {
		id, err := mgr.RentalNextListingID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	id, err := mgr.RentalNextBookingID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	count, err := mgr.RentalListingCount()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestRentalRecordsRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	listing := &rental.Listing{ID: 1, Host: [20]byte{1}, PricePerMonth: big.NewInt(80000), CreatedAt: 42}
	require.NoError(t, mgr.RentalListingPut(listing))
	got, ok, err := mgr.RentalListingGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing.Host, got.Host)
	require.Equal(t, "80000", got.PricePerMonth.String())
	require.Equal(t, int64(42), got.CreatedAt)

	booking := &rental.Booking{
		ID:             7,
		ListingID:      1,
		Guest:          [20]byte{2},
		Start:          1_700_172_800,
		MonthsBooked:   2,
		PerMonthAmount: big.NewInt(800_000_000),
		EscrowBalance:  big.NewInt(1_600_000_000),
		Status:         rental.BookingDisputed,
		CertificateID:  3,
		MetadataURI:    "ipfs://x",
	}
	require.NoError(t, mgr.RentalBookingPut(booking))
	stored, ok, err := mgr.RentalBookingGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, booking.Start, stored.Start)
	require.Equal(t, rental.BookingDisputed, stored.Status)
	require.Equal(t, "1600000000", stored.EscrowBalance.String())
	require.Equal(t, "ipfs://x", stored.MetadataURI)

	_, ok, err = mgr.RentalBookingGet(8)
	require.NoError(t, err)
	require.False(t, ok)

	bad := booking.Clone()
	bad.MonthsReleased = 3
	require.Error(t, mgr.RentalBookingPut(bad))
}

func TestListingBookingIndex(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	ids, err := mgr.RentalListingBookings(1)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, mgr.RentalIndexBooking(1, 4))
	require.NoError(t, mgr.RentalIndexBooking(1, 9))
	require.NoError(t, mgr.RentalIndexBooking(2, 5))
	ids, err = mgr.RentalListingBookings(1)
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 9}, ids)
}

func TestBalancesAndPauseFlags(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a := [20]byte{1}
	bal, err := mgr.BankBalance(a)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Sign())
	require.NoError(t, mgr.BankSetBalance(a, big.NewInt(55)))
	bal, err = mgr.BankBalance(a)
	require.NoError(t, err)
	require.Equal(t, "55", bal.String())
	require.NoError(t, mgr.BankSetBalance(a, big.NewInt(0)))
	bal, err = mgr.BankBalance(a)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Sign())

	require.False(t, mgr.IsPaused(rental.ModuleName))
	require.NoError(t, mgr.SetPaused(rental.ModuleName, true))
	require.True(t, mgr.IsPaused(rental.ModuleName))
}

func TestCertificateRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	id, err := mgr.CertificateNextID()
	require.NoError(t, err)
	require.NoError(t, mgr.CertificatePut(&certificate.Certificate{ID: id, Owner: [20]byte{3}, URI: "u", IssuedAt: 9}))
	cert, ok, err := mgr.CertificateGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u", cert.URI)
	require.Equal(t, int64(9), cert.IssuedAt)
}

func TestJournalOrderingAndPaging(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	for i := 0; i < 5; i++ {
		seq, err := mgr.AppendEvent(int64(100+i), types.NewEvent("e", "i", string(rune('a'+i)), "z", "last"))
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), seq)
	}
	head, err := mgr.JournalHead()
	require.NoError(t, err)
	require.Equal(t, uint64(5), head)

	page, err := mgr.Events(1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, uint64(2), page[0].Sequence)
	require.Equal(t, uint64(3), page[1].Sequence)
	require.Equal(t, []string{"i", "z"}, page[0].Event.Keys())
	require.Equal(t, int64(101), page[0].Timestamp)

	rest, err := mgr.Events(3, 0)
	require.NoError(t, err)
	require.Len(t, rest, 2)
}

func TestOverlayCommitAndDiscard(t *testing.T) {
	base := storage.NewMemDB()
	overlay := NewOverlay(base)
	mgr := NewManager(overlay)

	_, err := mgr.RentalNextListingID()
	require.NoError(t, err)
	require.NoError(t, mgr.BankSetBalance([20]byte{1}, big.NewInt(10)))
	_, err = mgr.AppendEvent(1, types.NewEvent("x"))
	require.NoError(t, err)

	committed := NewManager(base)
	count, err := committed.RentalListingCount()
	require.NoError(t, err)
	require.Zero(t, count, "writes must stay pending before commit")
	visible, err := mgr.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1, "overlay reads its own writes")

	overlay.Discard()
	count, err = mgr.RentalListingCount()
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = mgr.RentalNextListingID()
	require.NoError(t, err)
	require.NoError(t, mgr.BankSetBalance([20]byte{1}, big.NewInt(10)))
	require.NoError(t, overlay.Commit())
	require.Zero(t, overlay.Pending())
	count, err = committed.RentalListingCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
	bal, err := committed.BankBalance([20]byte{1})
	require.NoError(t, err)
	require.Equal(t, "10", bal.String())

	require.NoError(t, mgr.BankSetBalance([20]byte{1}, big.NewInt(0)))
	require.NoError(t, overlay.Commit())
	bal, err = committed.BankBalance([20]byte{1})
	require.NoError(t, err)
	require.Equal(t, 0, bal.Sign())
}

func TestGenesisMarker(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	applied, err := mgr.GenesisApplied()
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mgr.MarkGenesisApplied())
	applied, err = mgr.GenesisApplied()
	require.NoError(t, err)
	require.True(t, applied)
}
