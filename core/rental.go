package core

import (
	"math/big"

	"trustrent/native/rental"
	"trustrent/observability"
)

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// AddListing registers a listing for host.
func (n *Node) AddListing(host [20]byte, pricePerMonth *big.Int) (*rental.Listing, error) {
	var listing *rental.Listing
	err := n.execute("addListing", func(x *execution) error {
		var err error
		listing, err = x.rental.AddListing(host, pricePerMonth)
		return err
	})
	return listing, err
}

// Book reserves months starting at start and pulls the escrow from guest.
// The guest must have approved VaultAddress for at least the booking total.
func (n *Node) Book(guest [20]byte, listingID uint64, start int64, months uint64, metadataURI string) (*rental.Booking, error) {
	var booking *rental.Booking
	err := n.execute("book", func(x *execution) error {
		var err error
		booking, err = x.rental.Book(guest, listingID, start, months, metadataURI)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.Rental().RecordFlow("deposit", booking.EscrowBalance)
	return booking, nil
}

// IsAvailable reports whether the interval is free on the listing.
func (n *Node) IsAvailable(listingID uint64, start int64, months uint64) (bool, error) {
	var ok bool
	err := n.view(func(x *execution) error {
		var err error
		ok, err = x.rental.IsAvailable(listingID, start, months)
		return err
	})
	return ok, err
}

// ReleaseAvailable pays the host every elapsed, unreleased month.
func (n *Node) ReleaseAvailable(caller [20]byte, bookingID uint64) (*big.Int, error) {
	var amount *big.Int
	err := n.execute("releaseAvailable", func(x *execution) error {
		var err error
		amount, err = x.rental.ReleaseAvailable(caller, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.Rental().RecordFlow("release", amount)
	return cloneAmount(amount), nil
}

// CancelEarly settles earned months to the host and refunds the rest. It
// returns the refund paid to the guest.
func (n *Node) CancelEarly(caller [20]byte, bookingID uint64) (*big.Int, error) {
	var refund *big.Int
	err := n.execute("cancelEarly", func(x *execution) error {
		var err error
		refund, err = x.rental.CancelEarly(caller, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.Rental().RecordFlow("refund", refund)
	return cloneAmount(refund), nil
}

// RaiseDispute freezes a booking pending arbitration.
func (n *Node) RaiseDispute(caller [20]byte, bookingID uint64) error {
	return n.execute("raiseDispute", func(x *execution) error {
		return x.rental.RaiseDispute(caller, bookingID)
	})
}

// ResolveDispute splits the remaining escrow as decided by the arbiter.
func (n *Node) ResolveDispute(caller [20]byte, bookingID uint64, hostAmount, guestAmount *big.Int) error {
	err := n.execute("resolveDispute", func(x *execution) error {
		return x.rental.ResolveDispute(caller, bookingID, hostAmount, guestAmount)
	})
	if err != nil {
		return err
	}
	observability.Rental().RecordFlow("dispute_host", hostAmount)
	observability.Rental().RecordFlow("dispute_guest", guestAmount)
	return nil
}

// RequestBNPL logs a financing request for a booking.
func (n *Node) RequestBNPL(caller [20]byte, bookingID uint64, months uint64, terms string) (*rental.BNPLRequest, error) {
	var req *rental.BNPLRequest
	err := n.execute("requestBNPL", func(x *execution) error {
		var err error
		req, err = x.rental.RequestBNPL(caller, bookingID, months, terms)
		return err
	})
	return req, err
}

// BookTravelPackage logs a travel package purchase intent.
func (n *Node) BookTravelPackage(caller [20]byte, packageID uint64, price *big.Int) (*rental.TravelPackageRecord, error) {
	var rec *rental.TravelPackageRecord
	err := n.execute("bookTravelPackage", func(x *execution) error {
		var err error
		rec, err = x.rental.BookTravelPackage(caller, packageID, price)
		return err
	})
	return rec, err
}

// SetPaused pauses or resumes the rental module. Arbiter only.
func (n *Node) SetPaused(caller [20]byte, paused bool) error {
	err := n.execute("setPaused", func(x *execution) error {
		return x.rental.SetPaused(caller, paused)
	})
	if err != nil {
		return err
	}
	observability.Rental().SetPaused(paused)
	return nil
}

// Paused reports whether the rental module is paused.
func (n *Node) Paused() bool {
	var paused bool
	_ = n.view(func(x *execution) error {
		paused = x.rental.Paused()
		return nil
	})
	return paused
}

// Listing returns a listing by id.
func (n *Node) Listing(id uint64) (*rental.Listing, error) {
	var listing *rental.Listing
	err := n.view(func(x *execution) error {
		var err error
		listing, err = x.rental.Listing(id)
		return err
	})
	return listing, err
}

// Booking returns a booking by id.
func (n *Node) Booking(id uint64) (*rental.Booking, error) {
	var booking *rental.Booking
	err := n.view(func(x *execution) error {
		var err error
		booking, err = x.rental.Booking(id)
		return err
	})
	return booking, err
}

// ListingBookings returns every booking made against a listing.
func (n *Node) ListingBookings(listingID uint64) ([]*rental.Booking, error) {
	var bookings []*rental.Booking
	err := n.view(func(x *execution) error {
		var err error
		bookings, err = x.rental.ListingBookings(listingID)
		return err
	})
	return bookings, err
}
