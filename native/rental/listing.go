package rental

import "math/big"

// AddListing registers a listing owned by host at the given monthly price.
func (e *Engine) AddListing(host [20]byte, pricePerMonth *big.Int) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if pricePerMonth == nil || pricePerMonth.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	id, err := e.state.RentalNextListingID()
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:            id,
		Host:          host,
		PricePerMonth: cloneBigInt(pricePerMonth),
		CreatedAt:     e.now(),
	}
	if err := e.state.RentalListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingAddedEvent(listing))
	return listing.Clone(), nil
}
