package rental

import (
	"math/big"
	"strconv"

	"trustrent/core/types"
	"trustrent/crypto"
)

const (
	EventTypeListingAdded        = "rental.listing_added"
	EventTypeBooked              = "rental.booked"
	EventTypeReleased            = "rental.released"
	EventTypeCancelled           = "rental.cancelled"
	EventTypeDisputeRaised       = "rental.dispute_raised"
	EventTypeDisputeResolved     = "rental.dispute_resolved"
	EventTypeBNPLRequested       = "rental.bnpl_requested"
	EventTypeTravelPackageBooked = "rental.travel_package_booked"
	EventTypePauseUpdated        = "rental.pause_updated"
)

// Attribute keys shared by rental events and their consumers.
const (
	AttrListingID     = "listingId"
	AttrBookingID     = "bookingId"
	AttrHost          = "host"
	AttrGuest         = "guest"
	AttrPricePerMonth = "pricePerMonth"
	AttrStart         = "start"
	AttrMonths        = "months"
	AttrMetadataURI   = "metadataURI"
	AttrAmount        = "amount"
	AttrRefundAmount  = "refundAmount"
	AttrHostAmount    = "hostAmount"
	AttrGuestAmount   = "guestAmount"
	AttrTotalAmount   = "totalAmount"
	AttrTerms         = "terms"
	AttrPackageID     = "packageId"
	AttrPrice         = "price"
	AttrPaused        = "paused"
	AttrBy            = "by"
)

// NewListingAddedEvent returns ListingAdded(listingId, host, pricePerMonth).
func NewListingAddedEvent(l *Listing) *types.Event {
	if l == nil {
		return types.NewEvent(EventTypeListingAdded)
	}
	return types.NewEvent(EventTypeListingAdded,
		AttrListingID, formatID(l.ID),
		AttrHost, crypto.FormatAddress(l.Host),
		AttrPricePerMonth, formatAmount(l.PricePerMonth),
	)
}

// NewBookedEvent returns Booked(bookingId, listingId, guest, start, months,
// metadataURI).
func NewBookedEvent(b *Booking) *types.Event {
	if b == nil {
		return types.NewEvent(EventTypeBooked)
	}
	return types.NewEvent(EventTypeBooked,
		AttrBookingID, formatID(b.ID),
		AttrListingID, formatID(b.ListingID),
		AttrGuest, crypto.FormatAddress(b.Guest),
		AttrStart, strconv.FormatInt(b.Start, 10),
		AttrMonths, strconv.FormatUint(b.MonthsBooked, 10),
		AttrMetadataURI, b.MetadataURI,
	)
}

// NewReleasedEvent returns Released(bookingId, amount).
func NewReleasedEvent(bookingID uint64, amount *big.Int) *types.Event {
	return types.NewEvent(EventTypeReleased,
		AttrBookingID, formatID(bookingID),
		AttrAmount, formatAmount(amount),
	)
}

// NewCancelledEvent returns Cancelled(bookingId, refundAmount).
func NewCancelledEvent(bookingID uint64, refund *big.Int) *types.Event {
	return types.NewEvent(EventTypeCancelled,
		AttrBookingID, formatID(bookingID),
		AttrRefundAmount, formatAmount(refund),
	)
}

// NewDisputeRaisedEvent returns DisputeRaised(bookingId).
func NewDisputeRaisedEvent(bookingID uint64) *types.Event {
	return types.NewEvent(EventTypeDisputeRaised, AttrBookingID, formatID(bookingID))
}

// NewDisputeResolvedEvent returns DisputeResolved(bookingId, hostAmount,
// guestAmount).
func NewDisputeResolvedEvent(bookingID uint64, hostAmount, guestAmount *big.Int) *types.Event {
	return types.NewEvent(EventTypeDisputeResolved,
		AttrBookingID, formatID(bookingID),
		AttrHostAmount, formatAmount(hostAmount),
		AttrGuestAmount, formatAmount(guestAmount),
	)
}

// NewBNPLRequestedEvent returns BNPLRequested(bookingId, guest, months,
// totalAmount, terms).
func NewBNPLRequestedEvent(r *BNPLRequest) *types.Event {
	if r == nil {
		return types.NewEvent(EventTypeBNPLRequested)
	}
	return types.NewEvent(EventTypeBNPLRequested,
		AttrBookingID, formatID(r.BookingID),
		AttrGuest, crypto.FormatAddress(r.Guest),
		AttrMonths, strconv.FormatUint(r.Months, 10),
		AttrTotalAmount, formatAmount(r.TotalAmount),
		AttrTerms, r.Terms,
	)
}

// NewTravelPackageBookedEvent returns TravelPackageBooked(packageId, guest,
// price).
func NewTravelPackageBookedEvent(r *TravelPackageRecord) *types.Event {
	if r == nil {
		return types.NewEvent(EventTypeTravelPackageBooked)
	}
	return types.NewEvent(EventTypeTravelPackageBooked,
		AttrPackageID, formatID(r.PackageID),
		AttrGuest, crypto.FormatAddress(r.Guest),
		AttrPrice, formatAmount(r.Price),
	)
}

// NewPauseUpdatedEvent returns PauseUpdated(paused, by).
func NewPauseUpdatedEvent(paused bool, by [20]byte) *types.Event {
	return types.NewEvent(EventTypePauseUpdated,
		AttrPaused, strconv.FormatBool(paused),
		AttrBy, crypto.FormatAddress(by),
	)
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
