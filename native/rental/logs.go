package rental

import "math/big"

// RequestBNPL records the guest's intent to finance the booking over months.
// The request is informational and is accepted in any booking status.
func (e *Engine) RequestBNPL(caller [20]byte, bookingID uint64, months uint64, terms string) (*BNPLRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(terms) > maxTermsLength {
		return nil, ErrTermsTooLong
	}
	booking, err := e.loadBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if caller != booking.Guest {
		return nil, unauthorized("request bnpl", caller, RoleGuest)
	}
	listing, err := e.loadListing(booking.ListingID)
	if err != nil {
		return nil, err
	}
	req := &BNPLRequest{
		BookingID:   booking.ID,
		Guest:       booking.Guest,
		Months:      months,
		TotalAmount: new(big.Int).Mul(cloneBigInt(listing.PricePerMonth), new(big.Int).SetUint64(months)),
		Terms:       terms,
	}
	e.emit(NewBNPLRequestedEvent(req))
	return req, nil
}

// BookTravelPackage records a travel package purchase by caller.
func (e *Engine) BookTravelPackage(caller [20]byte, packageID uint64, price *big.Int) (*TravelPackageRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() < 0 {
		return nil, ErrNegativePrice
	}
	rec := &TravelPackageRecord{
		PackageID: packageID,
		Guest:     caller,
		Price:     cloneBigInt(price),
	}
	e.emit(NewTravelPackageBookedEvent(rec))
	return rec, nil
}
