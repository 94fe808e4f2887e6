package state

import (
	"fmt"
	"math/big"

	"trustrent/native/rental"
)

var (
	rentalListingPrefix = []byte("rental/listing/")
	rentalBookingPrefix = []byte("rental/booking/")
	rentalIndexPrefix   = []byte("rental/listing-bookings/")
	pausePrefix         = []byte("params/paused/")
)

const (
	counterListings = "rental/listings"
	counterBookings = "rental/bookings"
)

type storedListing struct {
	ID            uint64
	Host          [20]byte
	PricePerMonth *big.Int
	CreatedAt     *big.Int
}

type storedBooking struct {
	ID             uint64
	ListingID      uint64
	Guest          [20]byte
	Start          *big.Int
	MonthsBooked   uint64
	PerMonthAmount *big.Int
	EscrowBalance  *big.Int
	MonthsReleased uint64
	Status         uint8
	CertificateID  uint64
	MetadataURI    string
	CreatedAt      *big.Int
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newStoredBooking(b *rental.Booking) *storedBooking {
	return &storedBooking{
		ID:             b.ID,
		ListingID:      b.ListingID,
		Guest:          b.Guest,
		Start:          big.NewInt(b.Start),
		MonthsBooked:   b.MonthsBooked,
		PerMonthAmount: bigOrZero(b.PerMonthAmount),
		EscrowBalance:  bigOrZero(b.EscrowBalance),
		MonthsReleased: b.MonthsReleased,
		Status:         uint8(b.Status),
		CertificateID:  b.CertificateID,
		MetadataURI:    b.MetadataURI,
		CreatedAt:      big.NewInt(b.CreatedAt),
	}
}

func (s *storedBooking) toBooking() (*rental.Booking, error) {
	out := &rental.Booking{
		ID:             s.ID,
		ListingID:      s.ListingID,
		Guest:          s.Guest,
		Start:          bigOrZero(s.Start).Int64(),
		MonthsBooked:   s.MonthsBooked,
		PerMonthAmount: bigOrZero(s.PerMonthAmount),
		EscrowBalance:  bigOrZero(s.EscrowBalance),
		MonthsReleased: s.MonthsReleased,
		Status:         rental.BookingStatus(s.Status),
		CertificateID:  s.CertificateID,
		MetadataURI:    s.MetadataURI,
		CreatedAt:      bigOrZero(s.CreatedAt).Int64(),
	}
	return rental.SanitizeBooking(out)
}

func rentalListingKey(id uint64) []byte {
	return prefixedKey(rentalListingPrefix, uint64Bytes(id))
}

func rentalBookingKey(id uint64) []byte {
	return prefixedKey(rentalBookingPrefix, uint64Bytes(id))
}

func rentalIndexKey(listingID uint64) []byte {
	return prefixedKey(rentalIndexPrefix, uint64Bytes(listingID))
}

// RentalNextListingID allocates the next listing identifier.
func (m *Manager) RentalNextListingID() (uint64, error) { return m.NextID(counterListings) }

// RentalNextBookingID allocates the next booking identifier.
func (m *Manager) RentalNextBookingID() (uint64, error) { return m.NextID(counterBookings) }

// RentalListingCount returns the number of listings created so far.
func (m *Manager) RentalListingCount() (uint64, error) { return m.Counter(counterListings) }

// RentalBookingCount returns the number of bookings created so far.
func (m *Manager) RentalBookingCount() (uint64, error) { return m.Counter(counterBookings) }

func (m *Manager) RentalListingPut(l *rental.Listing) error {
	if l == nil {
		return fmt.Errorf("rental: nil listing")
	}
	if l.ID == 0 {
		return fmt.Errorf("rental: listing id must be set")
	}
	return m.KVPut(rentalListingKey(l.ID), &storedListing{
		ID:            l.ID,
		Host:          l.Host,
		PricePerMonth: bigOrZero(l.PricePerMonth),
		CreatedAt:     big.NewInt(l.CreatedAt),
	})
}

func (m *Manager) RentalListingGet(id uint64) (*rental.Listing, bool, error) {
	stored := new(storedListing)
	ok, err := m.KVGet(rentalListingKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rental.Listing{
		ID:            stored.ID,
		Host:          stored.Host,
		PricePerMonth: bigOrZero(stored.PricePerMonth),
		CreatedAt:     bigOrZero(stored.CreatedAt).Int64(),
	}, true, nil
}

func (m *Manager) RentalBookingPut(b *rental.Booking) error {
	sanitized, err := rental.SanitizeBooking(b)
	if err != nil {
		return err
	}
	if sanitized.ID == 0 {
		return fmt.Errorf("rental: booking id must be set")
	}
	return m.KVPut(rentalBookingKey(sanitized.ID), newStoredBooking(sanitized))
}

func (m *Manager) RentalBookingGet(id uint64) (*rental.Booking, bool, error) {
	stored := new(storedBooking)
	ok, err := m.KVGet(rentalBookingKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	booking, err := stored.toBooking()
	if err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

func (m *Manager) RentalIndexBooking(listingID, bookingID uint64) error {
	return m.KVAppendUint64(rentalIndexKey(listingID), bookingID)
}

func (m *Manager) RentalListingBookings(listingID uint64) ([]uint64, error) {
	return m.KVGetUint64List(rentalIndexKey(listingID))
}

// IsPaused reports whether the named module is paused. Read failures are
// treated as not paused.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	if _, err := m.KVGet(prefixedKey(pausePrefix, []byte(module)), &paused); err != nil {
		return false
	}
	return paused
}

// SetPaused stores the pause flag for the named module.
func (m *Manager) SetPaused(module string, paused bool) error {
	return m.KVPut(prefixedKey(pausePrefix, []byte(module)), paused)
}
