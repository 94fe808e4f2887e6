package pricing

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"trustrent/native/rental"
)

// RateDecimals is the number of decimals carried by configured USD rates.
const RateDecimals = 8

var rateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(RateDecimals), nil)

// PriceStatus captures the health classification assigned to a quote.
type PriceStatus string

const (
	// PriceStatusOK indicates the rate is within its freshness window.
	PriceStatusOK PriceStatus = "ok"
	// PriceStatusStale signals the rate exceeded the configured freshness window.
	PriceStatusStale PriceStatus = "stale"
)

var (
	// ErrFeedNotConfigured is returned when no rate has been configured.
	ErrFeedNotConfigured = errors.New("pricing: feed not configured")
	// ErrInvalidMonths is returned when a quote spans zero months.
	ErrInvalidMonths = errors.New("pricing: months must be positive")
)

// Quote summarises the cost of booking a listing for a number of months.
type Quote struct {
	ListingID uint64
	Months    uint64
	// Amount is the ledger amount a booking would pull into escrow.
	Amount *big.Int
	// USDValue is Amount converted with the configured rate, in ledger units of USD.
	USDValue *big.Int
	// RateE8 is the USD-per-token rate with RateDecimals decimals.
	RateE8     *big.Int
	AgeSeconds uint32
	Status     PriceStatus
}

// PriceFeed resolves quotes for listings.
type PriceFeed interface {
	Quote(listing *rental.Listing, months uint64, now time.Time) (Quote, error)
}

// FixedFeed serves a single operator-configured rate with a staleness guard.
type FixedFeed struct {
	rate      *big.Int
	updatedAt time.Time
	maxAge    time.Duration
}

// NewFixedFeed constructs a feed. A zero maxAge disables the staleness guard.
func NewFixedFeed(rateE8 *big.Int, updatedAt time.Time, maxAge time.Duration) (*FixedFeed, error) {
	if rateE8 == nil || rateE8.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: rate must be positive")
	}
	if maxAge < 0 {
		return nil, fmt.Errorf("pricing: max age must not be negative")
	}
	return &FixedFeed{rate: new(big.Int).Set(rateE8), updatedAt: updatedAt.UTC(), maxAge: maxAge}, nil
}

// Quote returns the escrow amount for the listing together with its USD value.
func (f *FixedFeed) Quote(listing *rental.Listing, months uint64, now time.Time) (Quote, error) {
	if f == nil || f.rate == nil {
		return Quote{}, ErrFeedNotConfigured
	}
	if listing == nil {
		return Quote{}, rental.ErrListingNotFound
	}
	if months == 0 {
		return Quote{}, ErrInvalidMonths
	}
	if now.IsZero() {
		now = time.Now()
	}
	amount := rental.PerMonthAmount(listing.PricePerMonth)
	amount.Mul(amount, new(big.Int).SetUint64(months))
	usd := new(big.Int).Mul(amount, f.rate)
	usd.Quo(usd, rateScale)

	age := computeAgeSeconds(f.updatedAt, now.UTC())
	status := PriceStatusOK
	if f.maxAge > 0 && (f.updatedAt.IsZero() || time.Duration(age)*time.Second > f.maxAge) {
		status = PriceStatusStale
	}
	return Quote{
		ListingID:  listing.ID,
		Months:     months,
		Amount:     amount,
		USDValue:   usd,
		RateE8:     new(big.Int).Set(f.rate),
		AgeSeconds: age,
		Status:     status,
	}, nil
}

func computeAgeSeconds(observed, now time.Time) uint32 {
	if observed.IsZero() || now.IsZero() {
		return math.MaxUint32
	}
	if observed.After(now) {
		return 0
	}
	seconds := now.Sub(observed) / time.Second
	if seconds > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(seconds)
}
