package rental

import "math/big"

// RaiseDispute freezes the booking's escrow until the arbiter resolves it.
// Only the guest may raise a dispute.
func (e *Engine) RaiseDispute(caller [20]byte, bookingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	booking, err := e.loadBooking(bookingID)
	if err != nil {
		return err
	}
	if caller != booking.Guest {
		return unauthorized("dispute", caller, RoleGuest)
	}
	if !booking.Status.CanTransition(BookingDisputed) {
		return invalidState("dispute", booking.Status)
	}
	booking.Status = BookingDisputed
	if err := e.storeBooking(booking); err != nil {
		return err
	}
	e.emit(NewDisputeRaisedEvent(booking.ID))
	return nil
}

// ResolveDispute pays hostAmount to the host and guestAmount to the guest out
// of the disputed escrow and completes the booking. Any remainder stays on
// the booking's escrow balance.
func (e *Engine) ResolveDispute(caller [20]byte, bookingID uint64, hostAmount, guestAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.arbiter == ([20]byte{}) {
		return ErrArbiterNotConfig
	}
	if caller != e.arbiter {
		return unauthorized("resolve dispute", caller, RoleArbiter)
	}
	if hostAmount == nil || guestAmount == nil || hostAmount.Sign() < 0 || guestAmount.Sign() < 0 {
		return ErrInvalidAmount
	}
	booking, err := e.loadBooking(bookingID)
	if err != nil {
		return err
	}
	if booking.Status != BookingDisputed {
		return invalidState("resolve", booking.Status)
	}
	payout := new(big.Int).Add(hostAmount, guestAmount)
	if payout.Cmp(booking.EscrowBalance) > 0 {
		return ErrExceedEscrow
	}
	listing, err := e.loadListing(booking.ListingID)
	if err != nil {
		return err
	}
	booking.EscrowBalance = new(big.Int).Sub(booking.EscrowBalance, payout)
	booking.Status = BookingCompleted
	if err := e.storeBooking(booking); err != nil {
		return err
	}
	if err := e.push(listing.Host, hostAmount); err != nil {
		return err
	}
	if err := e.push(booking.Guest, guestAmount); err != nil {
		return err
	}
	e.emit(NewDisputeResolvedEvent(booking.ID, hostAmount, guestAmount))
	return nil
}
