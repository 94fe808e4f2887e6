package rpc

import (
	"math/big"

	"trustrent/core/pricing"
	"trustrent/crypto"
	"trustrent/native/certificate"
	"trustrent/native/rental"
)

type ListingResult struct {
	ID            uint64 `json:"id"`
	Host          string `json:"host"`
	PricePerMonth string `json:"pricePerMonth"`
	PerMonth      string `json:"perMonthAmount"`
	CreatedAt     int64  `json:"createdAt"`
}

type BookingResult struct {
	ID             uint64 `json:"id"`
	ListingID      uint64 `json:"listingId"`
	Guest          string `json:"guest"`
	Start          int64  `json:"start"`
	End            int64  `json:"end"`
	MonthsBooked   uint64 `json:"monthsBooked"`
	MonthsReleased uint64 `json:"monthsReleased"`
	PerMonthAmount string `json:"perMonthAmount"`
	EscrowBalance  string `json:"escrowBalance"`
	Status         string `json:"status"`
	CertificateID  uint64 `json:"certificateId"`
	MetadataURI    string `json:"metadataUri,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

type BNPLResult struct {
	BookingID   uint64 `json:"bookingId"`
	Guest       string `json:"guest"`
	Months      uint64 `json:"months"`
	TotalAmount string `json:"totalAmount"`
	Terms       string `json:"terms"`
}

type TravelPackageResult struct {
	PackageID uint64 `json:"packageId"`
	Guest     string `json:"guest"`
	Price     string `json:"price"`
}

type CertificateResult struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadataUri"`
	MintedAt    int64  `json:"mintedAt"`
}

type QuoteResult struct {
	ListingID  uint64 `json:"listingId"`
	Months     uint64 `json:"months"`
	Amount     string `json:"amount"`
	USDValue   string `json:"usdValue"`
	RateE8     string `json:"rateE8"`
	AgeSeconds uint32 `json:"ageSeconds"`
	Status     string `json:"status"`
}

type AmountResult struct {
	Amount string `json:"amount"`
}

type SuccessResult struct {
	Success bool `json:"success"`
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func listingResult(l *rental.Listing) ListingResult {
	return ListingResult{
		ID:            l.ID,
		Host:          crypto.FormatAddress(l.Host),
		PricePerMonth: formatBig(l.PricePerMonth),
		PerMonth:      formatBig(rental.PerMonthAmount(l.PricePerMonth)),
		CreatedAt:     l.CreatedAt,
	}
}

func bookingResult(b *rental.Booking) BookingResult {
	return BookingResult{
		ID:             b.ID,
		ListingID:      b.ListingID,
		Guest:          crypto.FormatAddress(b.Guest),
		Start:          b.Start,
		End:            b.End(),
		MonthsBooked:   b.MonthsBooked,
		MonthsReleased: b.MonthsReleased,
		PerMonthAmount: formatBig(b.PerMonthAmount),
		EscrowBalance:  formatBig(b.EscrowBalance),
		Status:         b.Status.String(),
		CertificateID:  b.CertificateID,
		MetadataURI:    b.MetadataURI,
		CreatedAt:      b.CreatedAt,
	}
}

func certificateResult(c *certificate.Certificate) CertificateResult {
	return CertificateResult{
		ID:          c.ID,
		Owner:       crypto.FormatAddress(c.Owner),
		MetadataURI: c.URI,
		MintedAt:    c.IssuedAt,
	}
}

func quoteResult(q pricing.Quote) QuoteResult {
	return QuoteResult{
		ListingID:  q.ListingID,
		Months:     q.Months,
		Amount:     formatBig(q.Amount),
		USDValue:   formatBig(q.USDValue),
		RateE8:     formatBig(q.RateE8),
		AgeSeconds: q.AgeSeconds,
		Status:     string(q.Status),
	}
}
