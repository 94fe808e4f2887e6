package rental

import (
	"math/big"
	"time"

	"trustrent/core/events"
	"trustrent/core/types"
	"trustrent/native/common"
)

type engineState interface {
	RentalNextListingID() (uint64, error)
	RentalNextBookingID() (uint64, error)
	RentalListingPut(*Listing) error
	RentalListingGet(id uint64) (*Listing, bool, error)
	RentalBookingPut(*Booking) error
	RentalBookingGet(id uint64) (*Booking, bool, error)
	RentalIndexBooking(listingID, bookingID uint64) error
	RentalListingBookings(listingID uint64) ([]uint64, error)
	SetPaused(module string, paused bool) error
}

// ValueLedger moves funds between accounts and the rental escrow.
type ValueLedger interface {
	// Pull moves amount from the account into escrow.
	Pull(from [20]byte, amount *big.Int) error
	// Push moves amount out of escrow to the account.
	Push(to [20]byte, amount *big.Int) error
}

// CertificateIssuer mints one proof certificate per booking.
type CertificateIssuer interface {
	Mint(owner [20]byte, metadataURI string) (uint64, error)
	OwnerOf(id uint64) ([20]byte, error)
	URIOf(id uint64) (string, error)
}

type rentalEvent struct {
	evt *types.Event
}

func (e rentalEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rentalEvent) Event() *types.Event { return e.evt }

// Engine implements listing registration, booking, escrow release and dispute
// resolution. Mutating methods are expected to run inside a state transaction
// that the caller discards when an error is returned.
type Engine struct {
	state   engineState
	ledger  ValueLedger
	issuer  CertificateIssuer
	pauses  common.PauseView
	emitter events.Emitter
	arbiter [20]byte
	nowFn   func() int64
}

// NewEngine creates a rental engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the value ledger holding escrowed funds.
func (e *Engine) SetLedger(ledger ValueLedger) { e.ledger = ledger }

// SetCertificateIssuer configures the issuer of booking certificates.
func (e *Engine) SetCertificateIssuer(issuer CertificateIssuer) { e.issuer = issuer }

// SetPauses configures the view consulted before every mutating operation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetArbiter configures the only identity allowed to resolve disputes.
func (e *Engine) SetArbiter(addr [20]byte) { e.arbiter = addr }

// Arbiter returns the configured arbiter.
func (e *Engine) Arbiter() [20]byte { return e.arbiter }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(rentalEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.RentalListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (e *Engine) loadBooking(id uint64) (*Booking, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	booking, ok, err := e.state.RentalBookingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (e *Engine) storeBooking(b *Booking) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.RentalBookingPut(b)
}

func (e *Engine) push(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return e.ledger.Push(to, cloneBigInt(amount))
}

// Listing returns a copy of the listing with the given id.
func (e *Engine) Listing(id uint64) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// Booking returns a copy of the booking with the given id.
func (e *Engine) Booking(id uint64) (*Booking, error) {
	booking, err := e.loadBooking(id)
	if err != nil {
		return nil, err
	}
	return booking.Clone(), nil
}

// ListingBookings returns every booking ever made against the listing in
// creation order.
func (e *Engine) ListingBookings(listingID uint64) ([]*Booking, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.RentalListingBookings(listingID)
	if err != nil {
		return nil, err
	}
	out := make([]*Booking, 0, len(ids))
	for _, id := range ids {
		booking, err := e.loadBooking(id)
		if err != nil {
			return nil, err
		}
		out = append(out, booking.Clone())
	}
	return out, nil
}
