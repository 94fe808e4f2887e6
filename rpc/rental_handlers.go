package rpc

import (
	"trustrent/core/types"
	"trustrent/crypto"
)

const (
	defaultEventPage = 100
	maxEventPage     = 1000
)

type queryMethod func(s *Server, req *RPCRequest) (interface{}, *RPCError)

type mutatingMethod func(s *Server, caller [20]byte, req *RPCRequest) (interface{}, *RPCError)

var queryMethods = map[string]queryMethod{
	"rental_info":         (*Server).handleRentalInfo,
	"rental_getListing":   (*Server).handleGetListing,
	"rental_getBooking":   (*Server).handleGetBooking,
	"rental_listBookings": (*Server).handleListBookings,
	"rental_isAvailable":  (*Server).handleIsAvailable,
	"rental_quote":        (*Server).handleQuote,
	"rental_listEvents":   (*Server).handleListEvents,
	"bank_balance":        (*Server).handleBalance,
	"bank_allowance":      (*Server).handleAllowance,
	"certificate_get":     (*Server).handleCertificateGet,
}

var mutatingMethods = map[string]mutatingMethod{
	"rental_addListing":        (*Server).handleAddListing,
	"rental_book":              (*Server).handleBook,
	"rental_releaseAvailable":  (*Server).handleReleaseAvailable,
	"rental_cancelEarly":       (*Server).handleCancelEarly,
	"rental_raiseDispute":      (*Server).handleRaiseDispute,
	"rental_resolveDispute":    (*Server).handleResolveDispute,
	"rental_requestBNPL":       (*Server).handleRequestBNPL,
	"rental_bookTravelPackage": (*Server).handleBookTravelPackage,
	"rental_setPaused":         (*Server).handleSetPaused,
	"bank_approve":             (*Server).handleApprove,
	"bank_transfer":            (*Server).handleTransfer,
	"bank_faucet":              (*Server).handleFaucet,
	"certificate_transfer":     (*Server).handleCertificateTransfer,
}

type addListingParams struct {
	PricePerMonth string `json:"pricePerMonth"`
}

type bookParams struct {
	ListingID   uint64 `json:"listingId"`
	Start       int64  `json:"start"`
	Months      uint64 `json:"months"`
	MetadataURI string `json:"metadataUri"`
}

type availabilityParams struct {
	ListingID uint64 `json:"listingId"`
	Start     int64  `json:"start"`
	Months    uint64 `json:"months"`
}

type bookingIDParams struct {
	BookingID uint64 `json:"bookingId"`
}

type listingIDParams struct {
	ListingID uint64 `json:"listingId"`
}

type resolveDisputeParams struct {
	BookingID   uint64 `json:"bookingId"`
	HostAmount  string `json:"hostAmount"`
	GuestAmount string `json:"guestAmount"`
}

type requestBNPLParams struct {
	BookingID uint64 `json:"bookingId"`
	Months    uint64 `json:"months"`
	Terms     string `json:"terms"`
}

type travelPackageParams struct {
	PackageID uint64 `json:"packageId"`
	Price     string `json:"price"`
}

type quoteParams struct {
	ListingID uint64 `json:"listingId"`
	Months    uint64 `json:"months"`
}

type setPausedParams struct {
	Paused bool `json:"paused"`
}

type listEventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

type InfoResult struct {
	Arbiter       string `json:"arbiter"`
	Vault         string `json:"vault"`
	EscrowBalance string `json:"escrowBalance"`
	Paused        bool   `json:"paused"`
	JournalHead   uint64 `json:"journalHead"`
	Faucet        bool   `json:"faucet"`
}

type AvailabilityResult struct {
	Available bool `json:"available"`
}

type EventsResult struct {
	Events []types.JournalEntry `json:"events"`
	Head   uint64               `json:"head"`
}

type PausedResult struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleRentalInfo(_ *RPCRequest) (interface{}, *RPCError) {
	head, err := s.node.JournalHead()
	if err != nil {
		return nil, toRPCError(err)
	}
	escrow, err := s.node.EscrowBalance()
	if err != nil {
		return nil, toRPCError(err)
	}
	return InfoResult{
		Arbiter:       crypto.FormatAddress(s.node.Arbiter()),
		Vault:         crypto.FormatAddress(s.node.VaultAddress()),
		EscrowBalance: formatBig(escrow),
		Paused:        s.node.Paused(),
		JournalHead:   head,
		Faucet:        s.node.FaucetEnabled(),
	}, nil
}

func (s *Server) handleAddListing(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params addListingParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount("pricePerMonth", params.PricePerMonth, false)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.node.AddListing(caller, price)
	if err != nil {
		return nil, toRPCError(err)
	}
	return listingResult(listing), nil
}

func (s *Server) handleBook(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params bookParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	booking, err := s.node.Book(caller, params.ListingID, params.Start, params.Months, params.MetadataURI)
	if err != nil {
		return nil, toRPCError(err)
	}
	return bookingResult(booking), nil
}

func (s *Server) handleIsAvailable(req *RPCRequest) (interface{}, *RPCError) {
	var params availabilityParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.IsAvailable(params.ListingID, params.Start, params.Months)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AvailabilityResult{Available: ok}, nil
}

func (s *Server) handleReleaseAvailable(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params bookingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.ReleaseAvailable(caller, params.BookingID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AmountResult{Amount: formatBig(amount)}, nil
}

func (s *Server) handleCancelEarly(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params bookingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	refund, err := s.node.CancelEarly(caller, params.BookingID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AmountResult{Amount: formatBig(refund)}, nil
}

func (s *Server) handleRaiseDispute(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params bookingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.RaiseDispute(caller, params.BookingID); err != nil {
		return nil, toRPCError(err)
	}
	return SuccessResult{Success: true}, nil
}

func (s *Server) handleResolveDispute(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params resolveDisputeParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	hostAmount, rpcErr := parseAmount("hostAmount", params.HostAmount, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	guestAmount, rpcErr := parseAmount("guestAmount", params.GuestAmount, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ResolveDispute(caller, params.BookingID, hostAmount, guestAmount); err != nil {
		return nil, toRPCError(err)
	}
	return SuccessResult{Success: true}, nil
}

func (s *Server) handleRequestBNPL(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params requestBNPLParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.node.RequestBNPL(caller, params.BookingID, params.Months, params.Terms)
	if err != nil {
		return nil, toRPCError(err)
	}
	return BNPLResult{
		BookingID:   record.BookingID,
		Guest:       crypto.FormatAddress(record.Guest),
		Months:      record.Months,
		TotalAmount: formatBig(record.TotalAmount),
		Terms:       record.Terms,
	}, nil
}

func (s *Server) handleBookTravelPackage(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params travelPackageParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount("price", params.Price, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.node.BookTravelPackage(caller, params.PackageID, price)
	if err != nil {
		return nil, toRPCError(err)
	}
	return TravelPackageResult{
		PackageID: record.PackageID,
		Guest:     crypto.FormatAddress(record.Guest),
		Price:     formatBig(record.Price),
	}, nil
}

func (s *Server) handleSetPaused(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params setPausedParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetPaused(caller, params.Paused); err != nil {
		return nil, toRPCError(err)
	}
	return PausedResult{Paused: params.Paused}, nil
}

func (s *Server) handleGetListing(req *RPCRequest) (interface{}, *RPCError) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.node.Listing(params.ListingID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return listingResult(listing), nil
}

func (s *Server) handleGetBooking(req *RPCRequest) (interface{}, *RPCError) {
	var params bookingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	booking, err := s.node.Booking(params.BookingID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return bookingResult(booking), nil
}

func (s *Server) handleListBookings(req *RPCRequest) (interface{}, *RPCError) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	bookings, err := s.node.ListingBookings(params.ListingID)
	if err != nil {
		return nil, toRPCError(err)
	}
	out := make([]BookingResult, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingResult(b))
	}
	return out, nil
}

func (s *Server) handleQuote(req *RPCRequest) (interface{}, *RPCError) {
	var params quoteParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	quote, err := s.node.Quote(params.ListingID, params.Months)
	if err != nil {
		return nil, toRPCError(err)
	}
	return quoteResult(quote), nil
}

func (s *Server) handleListEvents(req *RPCRequest) (interface{}, *RPCError) {
	var params listEventsParams
	if rpcErr := decodeParams(req, &params, false); rpcErr != nil {
		return nil, rpcErr
	}
	limit := params.Limit
	switch {
	case limit < 0:
		return nil, invalidParams("limit must not be negative")
	case limit == 0:
		limit = defaultEventPage
	case limit > maxEventPage:
		limit = maxEventPage
	}
	head, err := s.node.JournalHead()
	if err != nil {
		return nil, toRPCError(err)
	}
	entries, err := s.node.Events(params.After, limit)
	if err != nil {
		return nil, toRPCError(err)
	}
	if entries == nil {
		entries = []types.JournalEntry{}
	}
	return EventsResult{Events: entries, Head: head}, nil
}
