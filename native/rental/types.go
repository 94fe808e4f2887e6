package rental

import (
	"fmt"
	"math"
	"math/big"
)

const (
	// ModuleName identifies the rental module for pause guards and metrics.
	ModuleName = "rental"

	// SecondsPerDay is the length of a day in clock units.
	SecondsPerDay int64 = 24 * 60 * 60
	// Month is the fixed billing period used for release arithmetic.
	Month int64 = 30 * SecondsPerDay

	// LedgerDecimals is the number of decimals used by ledger amounts.
	LedgerDecimals = 6
	// PriceDecimals is the number of decimals used by listing prices.
	PriceDecimals = 2

	maxMetadataURILength = 2048
	maxTermsLength       = 1024
)

var (
	ledgerScale = big.NewInt(1_000_000)
	priceScale  = big.NewInt(100)
)

// PerMonthAmount converts a display-unit monthly price into ledger units
// (price * LEDGER_SCALE / 100).
func PerMonthAmount(pricePerMonth *big.Int) *big.Int {
	out := new(big.Int).Mul(cloneBigInt(pricePerMonth), ledgerScale)
	return out.Quo(out, priceScale)
}

// BookingStatus represents the lifecycle of a booking.
type BookingStatus uint8

const (
	BookingActive BookingStatus = iota + 1
	BookingDisputed
	BookingCancelled
	BookingCompleted
)

// Valid reports whether the status value is within the supported range.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingActive, BookingDisputed, BookingCancelled, BookingCompleted:
		return true
	default:
		return false
	}
}

func (s BookingStatus) String() string {
	switch s {
	case BookingActive:
		return "active"
	case BookingDisputed:
		return "disputed"
	case BookingCancelled:
		return "cancelled"
	case BookingCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseBookingStatus resolves the textual status form used by the RPC layer.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, s := range []BookingStatus{BookingActive, BookingDisputed, BookingCancelled, BookingCompleted} {
		if s.String() == value {
			return s, nil
		}
	}
	return 0, fmt.Errorf("rental: unknown booking status %q", value)
}

// CanTransition reports whether moving from s to next is a forward transition.
// Cancelled and Completed are terminal.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case BookingActive:
		return next == BookingDisputed || next == BookingCancelled || next == BookingCompleted
	case BookingDisputed:
		return next == BookingCompleted
	default:
		return false
	}
}

// Occupying reports whether bookings in this status block their interval.
func (s BookingStatus) Occupying() bool {
	return s == BookingActive || s == BookingDisputed
}

// Listing is a host-priced rental. Listings are immutable once created.
type Listing struct {
	ID            uint64
	Host          [20]byte
	PricePerMonth *big.Int
	CreatedAt     int64
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.PricePerMonth = cloneBigInt(l.PricePerMonth)
	return &clone
}

// Booking is a guest's reservation of a listing together with its escrow.
type Booking struct {
	ID             uint64
	ListingID      uint64
	Guest          [20]byte
	Start          int64
	MonthsBooked   uint64
	PerMonthAmount *big.Int
	EscrowBalance  *big.Int
	MonthsReleased uint64
	Status         BookingStatus
	CertificateID  uint64
	MetadataURI    string
	CreatedAt      int64
}

// Clone returns a deep copy of the booking.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	clone := *b
	clone.PerMonthAmount = cloneBigInt(b.PerMonthAmount)
	clone.EscrowBalance = cloneBigInt(b.EscrowBalance)
	return &clone
}

// End returns the exclusive end of the booked interval.
func (b *Booking) End() int64 {
	if b == nil {
		return 0
	}
	return intervalEnd(b.Start, b.MonthsBooked)
}

// Total returns the ledger amount paid into escrow at booking time.
func (b *Booking) Total() *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(cloneBigInt(b.PerMonthAmount), new(big.Int).SetUint64(b.MonthsBooked))
}

// SanitizeBooking validates the stored booking invariants and returns a
// normalised clone.
func SanitizeBooking(b *Booking) (*Booking, error) {
	if b == nil {
		return nil, fmt.Errorf("nil booking")
	}
	clone := b.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid booking status: %d", clone.Status)
	}
	if clone.MonthsBooked == 0 {
		return nil, fmt.Errorf("booking months must be positive")
	}
	if clone.MonthsReleased > clone.MonthsBooked {
		return nil, fmt.Errorf("booking released months %d exceed booked %d", clone.MonthsReleased, clone.MonthsBooked)
	}
	if clone.EscrowBalance.Sign() < 0 {
		return nil, fmt.Errorf("booking escrow balance negative")
	}
	return clone, nil
}

// BNPLRequest records a guest's intent to finance a booking.
type BNPLRequest struct {
	BookingID   uint64
	Guest       [20]byte
	Months      uint64
	TotalAmount *big.Int
	Terms       string
}

// TravelPackageRecord records a travel package purchase intent.
type TravelPackageRecord struct {
	PackageID uint64
	Guest     [20]byte
	Price     *big.Int
}

func intervalEnd(start int64, months uint64) int64 {
	return start + int64(months)*Month
}

// validInterval reports whether [start, start+months*Month) is representable.
func validInterval(start int64, months uint64) bool {
	if months == 0 || start < 0 {
		return false
	}
	if months > uint64(math.MaxInt64/Month) {
		return false
	}
	return int64(months)*Month <= math.MaxInt64-start
}

// overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect.
func overlaps(s1, e1, s2, e2 int64) bool {
	return s1 < e2 && s2 < e1
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
