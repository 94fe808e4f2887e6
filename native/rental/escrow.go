package rental

import "math/big"

// releasable returns the months earned since the last release and their
// ledger value at time now.
func releasable(b *Booking, now int64) (uint64, *big.Int) {
	if b == nil || now < b.Start {
		return 0, big.NewInt(0)
	}
	elapsed := uint64((now - b.Start) / Month)
	if elapsed > b.MonthsBooked {
		elapsed = b.MonthsBooked
	}
	if elapsed <= b.MonthsReleased {
		return 0, big.NewInt(0)
	}
	months := elapsed - b.MonthsReleased
	amount := new(big.Int).Mul(cloneBigInt(b.PerMonthAmount), new(big.Int).SetUint64(months))
	return months, amount
}

// applyRelease records months as released on the booking. The booking moves
// to Completed once every month has been released.
func applyRelease(b *Booking, months uint64, amount *big.Int) {
	b.MonthsReleased += months
	b.EscrowBalance = new(big.Int).Sub(cloneBigInt(b.EscrowBalance), amount)
	if b.MonthsReleased == b.MonthsBooked {
		b.Status = BookingCompleted
	}
}

// ReleaseAvailable pays the host every month that has fully elapsed and has
// not been released yet.
func (e *Engine) ReleaseAvailable(caller [20]byte, bookingID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	booking, err := e.loadBooking(bookingID)
	if err != nil {
		return nil, err
	}
	listing, err := e.loadListing(booking.ListingID)
	if err != nil {
		return nil, err
	}
	if caller != listing.Host {
		return nil, unauthorized("release", caller, RoleHost)
	}
	if booking.Status != BookingActive {
		return nil, invalidState("release", booking.Status)
	}
	months, amount := releasable(booking, e.now())
	if months == 0 {
		return nil, ErrNothingToRelease
	}
	applyRelease(booking, months, amount)
	if err := e.storeBooking(booking); err != nil {
		return nil, err
	}
	if err := e.push(listing.Host, amount); err != nil {
		return nil, err
	}
	e.emit(NewReleasedEvent(booking.ID, amount))
	return cloneBigInt(amount), nil
}

// CancelEarly settles the months already earned by the host and refunds the
// rest of the escrow to the guest.
func (e *Engine) CancelEarly(caller [20]byte, bookingID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	booking, err := e.loadBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if caller != booking.Guest {
		return nil, unauthorized("cancel", caller, RoleGuest)
	}
	if booking.Status != BookingActive {
		return nil, invalidState("cancel", booking.Status)
	}
	listing, err := e.loadListing(booking.ListingID)
	if err != nil {
		return nil, err
	}
	months, earned := releasable(booking, e.now())
	if months > 0 {
		applyRelease(booking, months, earned)
	}
	refund := cloneBigInt(booking.EscrowBalance)
	booking.EscrowBalance = big.NewInt(0)
	booking.Status = BookingCancelled
	if err := e.storeBooking(booking); err != nil {
		return nil, err
	}

	if err := e.push(listing.Host, earned); err != nil {
		return nil, err
	}
	if months > 0 {
		e.emit(NewReleasedEvent(booking.ID, earned))
	}
	if err := e.push(booking.Guest, refund); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(booking.ID, refund))
	return refund, nil
}
