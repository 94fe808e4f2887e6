package rental

import (
	"fmt"
	"math/big"
)

// IsAvailable reports whether [start, start+months*Month) is free on the
// listing. Only active and disputed bookings occupy their interval.
func (e *Engine) IsAvailable(listingID uint64, start int64, months uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if !validInterval(start, months) {
		return false, ErrInvalidInterval
	}
	end := intervalEnd(start, months)
	ids, err := e.state.RentalListingBookings(listingID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		existing, err := e.loadBooking(id)
		if err != nil {
			return false, err
		}
		if !existing.Status.Occupying() {
			continue
		}
		if overlaps(start, end, existing.Start, existing.End()) {
			return false, nil
		}
	}
	return true, nil
}

// Book reserves the listing for the guest, pulls the full payment into escrow
// and mints the booking certificate to the guest.
//
// The booking is persisted before any value moves so that a reentrant booking
// attempt from inside the ledger sees the interval as taken.
func (e *Engine) Book(guest [20]byte, listingID uint64, start int64, months uint64, metadataURI string) (*Booking, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if e.issuer == nil {
		return nil, errNilIssuer
	}
	if !validInterval(start, months) {
		return nil, ErrInvalidInterval
	}
	if len(metadataURI) > maxMetadataURILength {
		return nil, ErrMetadataTooLong
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	available, err := e.IsAvailable(listingID, start, months)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrOverlapBooking
	}

	id, err := e.state.RentalNextBookingID()
	if err != nil {
		return nil, err
	}
	booking := &Booking{
		ID:             id,
		ListingID:      listingID,
		Guest:          guest,
		Start:          start,
		MonthsBooked:   months,
		PerMonthAmount: PerMonthAmount(listing.PricePerMonth),
		Status:         BookingActive,
		MetadataURI:    metadataURI,
		CreatedAt:      e.now(),
	}
	total := booking.Total()
	booking.EscrowBalance = new(big.Int).Set(total)
	if err := e.storeBooking(booking); err != nil {
		return nil, err
	}
	if err := e.state.RentalIndexBooking(listingID, id); err != nil {
		return nil, err
	}

	if err := e.ledger.Pull(guest, total); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	certID, err := e.issuer.Mint(guest, metadataURI)
	if err != nil {
		return nil, fmt.Errorf("rental: mint certificate: %w", err)
	}
	booking.CertificateID = certID
	if err := e.storeBooking(booking); err != nil {
		return nil, err
	}
	e.emit(NewBookedEvent(booking))
	return booking.Clone(), nil
}
