package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trustrent/core/types"
	"trustrent/native/rental"
)

const cursorName = "rental"

var (
	ErrSequenceGap    = errors.New("index: journal sequence gap")
	ErrUnknownListing = errors.New("index: unknown listing")
	ErrUnknownBooking = errors.New("index: unknown booking")
)

// Projector folds journal entries into the read model. Each entry is applied
// in its own transaction together with the cursor advance, so replays of
// already applied sequences are no-ops.
type Projector struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewProjector(db *gorm.DB, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{db: db, logger: logger}
}

// Cursor returns the last applied journal sequence.
func (p *Projector) Cursor(ctx context.Context) (uint64, error) {
	return loadCursor(p.db.WithContext(ctx))
}

func loadCursor(tx *gorm.DB) (uint64, error) {
	var cur Cursor
	err := tx.Where("name = ?", cursorName).Take(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.Sequence, nil
}

func saveCursor(tx *gorm.DB, seq uint64) error {
	return tx.Save(&Cursor{Name: cursorName, Sequence: seq, UpdatedAt: time.Now().UTC()}).Error
}

// Apply projects entries in order and returns how many advanced the cursor.
func (p *Projector) Apply(ctx context.Context, entries []types.JournalEntry) (int, error) {
	applied := 0
	for _, entry := range entries {
		advanced := false
		err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cur, err := loadCursor(tx)
			if err != nil {
				return err
			}
			if entry.Sequence <= cur {
				return nil
			}
			if entry.Sequence != cur+1 {
				return fmt.Errorf("%w: have %d, got %d", ErrSequenceGap, cur, entry.Sequence)
			}
			if err := project(tx, entry); err != nil {
				return fmt.Errorf("project %s #%d: %w", entry.Event.Type, entry.Sequence, err)
			}
			advanced = true
			return saveCursor(tx, entry.Sequence)
		})
		if err != nil {
			return applied, err
		}
		if advanced {
			applied++
			indexMetrics().projected.WithLabelValues(entry.Event.Type).Inc()
			indexMetrics().cursor.Set(float64(entry.Sequence))
		}
	}
	return applied, nil
}

func project(tx *gorm.DB, entry types.JournalEntry) error {
	evt := entry.Event
	switch evt.Type {
	case rental.EventTypeListingAdded:
		return projectListing(tx, entry)
	case rental.EventTypeBooked:
		return projectBooking(tx, entry)
	case rental.EventTypeReleased:
		return projectRelease(tx, entry)
	case rental.EventTypeCancelled:
		return projectCancel(tx, entry)
	case rental.EventTypeDisputeRaised:
		booking, err := bookingFor(tx, &evt)
		if err != nil {
			return err
		}
		booking.Status = rental.BookingDisputed.String()
		booking.Sequence = entry.Sequence
		return tx.Save(booking).Error
	case rental.EventTypeDisputeResolved:
		return projectResolution(tx, entry)
	case rental.EventTypeBNPLRequested:
		return projectFinancing(tx, entry)
	case rental.EventTypeTravelPackageBooked:
		return projectTravelPackage(tx, entry)
	default:
		return nil
	}
}

func projectListing(tx *gorm.DB, entry types.JournalEntry) error {
	id, err := uintAttr(&entry.Event, rental.AttrListingID)
	if err != nil {
		return err
	}
	host, err := attr(&entry.Event, rental.AttrHost)
	if err != nil {
		return err
	}
	price, err := bigAttr(&entry.Event, rental.AttrPricePerMonth)
	if err != nil {
		return err
	}
	return tx.Create(&ListingRecord{
		ID:             uuid.New(),
		ListingID:      id,
		Host:           host,
		PricePerMonth:  price.String(),
		PerMonthAmount: rental.PerMonthAmount(price).String(),
		Sequence:       entry.Sequence,
		ListedAt:       entry.Timestamp,
	}).Error
}

func projectBooking(tx *gorm.DB, entry types.JournalEntry) error {
	evt := &entry.Event
	bookingID, err := uintAttr(evt, rental.AttrBookingID)
	if err != nil {
		return err
	}
	listingID, err := uintAttr(evt, rental.AttrListingID)
	if err != nil {
		return err
	}
	guest, err := attr(evt, rental.AttrGuest)
	if err != nil {
		return err
	}
	start, err := intAttr(evt, rental.AttrStart)
	if err != nil {
		return err
	}
	months, err := uintAttr(evt, rental.AttrMonths)
	if err != nil {
		return err
	}
	uri, _ := evt.Attr(rental.AttrMetadataURI)

	var listing ListingRecord
	if err := tx.Where("listing_id = ?", listingID).Take(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownListing, listingID)
		}
		return err
	}
	perMonth, ok := new(big.Int).SetString(listing.PerMonthAmount, 10)
	if !ok {
		return fmt.Errorf("listing %d has malformed per-month amount", listingID)
	}
	escrow := new(big.Int).Mul(perMonth, new(big.Int).SetUint64(months))
	return tx.Create(&BookingRecord{
		ID:             uuid.New(),
		BookingID:      bookingID,
		ListingID:      listingID,
		Guest:          guest,
		Host:           listing.Host,
		Start:          start,
		End:            start + int64(months)*rental.Month,
		MonthsBooked:   months,
		PerMonthAmount: perMonth.String(),
		EscrowBalance:  escrow.String(),
		Status:         rental.BookingActive.String(),
		MetadataURI:    uri,
		Sequence:       entry.Sequence,
		BookedAt:       entry.Timestamp,
	}).Error
}

func projectRelease(tx *gorm.DB, entry types.JournalEntry) error {
	booking, err := bookingFor(tx, &entry.Event)
	if err != nil {
		return err
	}
	amount, err := bigAttr(&entry.Event, rental.AttrAmount)
	if err != nil {
		return err
	}
	perMonth, _ := new(big.Int).SetString(booking.PerMonthAmount, 10)
	if perMonth != nil && perMonth.Sign() > 0 {
		months := new(big.Int).Quo(amount, perMonth)
		booking.MonthsReleased += months.Uint64()
	}
	if err := debitEscrow(booking, amount); err != nil {
		return err
	}
	if booking.MonthsReleased >= booking.MonthsBooked {
		booking.Status = rental.BookingCompleted.String()
	}
	booking.Sequence = entry.Sequence
	if err := tx.Save(booking).Error; err != nil {
		return err
	}
	return addLedgerEntry(tx, entry, booking.BookingID, KindRelease, booking.Host, amount)
}

func projectCancel(tx *gorm.DB, entry types.JournalEntry) error {
	booking, err := bookingFor(tx, &entry.Event)
	if err != nil {
		return err
	}
	refund, err := bigAttr(&entry.Event, rental.AttrRefundAmount)
	if err != nil {
		return err
	}
	booking.EscrowBalance = "0"
	booking.Status = rental.BookingCancelled.String()
	booking.Sequence = entry.Sequence
	if err := tx.Save(booking).Error; err != nil {
		return err
	}
	return addLedgerEntry(tx, entry, booking.BookingID, KindRefund, booking.Guest, refund)
}

func projectResolution(tx *gorm.DB, entry types.JournalEntry) error {
	booking, err := bookingFor(tx, &entry.Event)
	if err != nil {
		return err
	}
	hostAmount, err := bigAttr(&entry.Event, rental.AttrHostAmount)
	if err != nil {
		return err
	}
	guestAmount, err := bigAttr(&entry.Event, rental.AttrGuestAmount)
	if err != nil {
		return err
	}
	if err := debitEscrow(booking, new(big.Int).Add(hostAmount, guestAmount)); err != nil {
		return err
	}
	booking.Status = rental.BookingCompleted.String()
	booking.Sequence = entry.Sequence
	if err := tx.Save(booking).Error; err != nil {
		return err
	}
	if err := addLedgerEntry(tx, entry, booking.BookingID, KindDisputeHost, booking.Host, hostAmount); err != nil {
		return err
	}
	return addLedgerEntry(tx, entry, booking.BookingID, KindDisputeGuest, booking.Guest, guestAmount)
}

func projectFinancing(tx *gorm.DB, entry types.JournalEntry) error {
	evt := &entry.Event
	bookingID, err := uintAttr(evt, rental.AttrBookingID)
	if err != nil {
		return err
	}
	guest, err := attr(evt, rental.AttrGuest)
	if err != nil {
		return err
	}
	months, err := uintAttr(evt, rental.AttrMonths)
	if err != nil {
		return err
	}
	total, err := bigAttr(evt, rental.AttrTotalAmount)
	if err != nil {
		return err
	}
	terms, _ := evt.Attr(rental.AttrTerms)
	return tx.Create(&FinancingRequest{
		ID:          uuid.New(),
		Sequence:    entry.Sequence,
		BookingID:   bookingID,
		Guest:       guest,
		Months:      months,
		TotalAmount: total.String(),
		Terms:       terms,
		Timestamp:   entry.Timestamp,
	}).Error
}

func projectTravelPackage(tx *gorm.DB, entry types.JournalEntry) error {
	evt := &entry.Event
	packageID, err := uintAttr(evt, rental.AttrPackageID)
	if err != nil {
		return err
	}
	guest, err := attr(evt, rental.AttrGuest)
	if err != nil {
		return err
	}
	price, err := bigAttr(evt, rental.AttrPrice)
	if err != nil {
		return err
	}
	return tx.Create(&TravelPackage{
		ID:        uuid.New(),
		Sequence:  entry.Sequence,
		PackageID: packageID,
		Guest:     guest,
		Price:     price.String(),
		Timestamp: entry.Timestamp,
	}).Error
}

func bookingFor(tx *gorm.DB, evt *types.Event) (*BookingRecord, error) {
	id, err := uintAttr(evt, rental.AttrBookingID)
	if err != nil {
		return nil, err
	}
	var booking BookingRecord
	if err := tx.Where("booking_id = ?", id).Take(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBooking, id)
		}
		return nil, err
	}
	return &booking, nil
}

func debitEscrow(booking *BookingRecord, amount *big.Int) error {
	escrow, ok := new(big.Int).SetString(booking.EscrowBalance, 10)
	if !ok {
		return fmt.Errorf("booking %d has malformed escrow balance", booking.BookingID)
	}
	escrow.Sub(escrow, amount)
	if escrow.Sign() < 0 {
		return fmt.Errorf("booking %d escrow would go negative", booking.BookingID)
	}
	booking.EscrowBalance = escrow.String()
	return nil
}

// addLedgerEntry records a payout. Zero payouts are skipped.
func addLedgerEntry(tx *gorm.DB, entry types.JournalEntry, bookingID uint64, kind, recipient string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return tx.Create(&LedgerEntry{
		ID:        uuid.New(),
		Sequence:  entry.Sequence,
		BookingID: bookingID,
		Kind:      kind,
		Recipient: recipient,
		Amount:    amount.String(),
		Timestamp: entry.Timestamp,
	}).Error
}

func attr(evt *types.Event, key string) (string, error) {
	value, ok := evt.Attr(key)
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	return value, nil
}

func uintAttr(evt *types.Event, key string) (uint64, error) {
	raw, err := attr(evt, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return value, nil
}

func intAttr(evt *types.Event, key string) (int64, error) {
	raw, err := attr(evt, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return value, nil
}

func bigAttr(evt *types.Event, key string) (*big.Int, error) {
	raw, err := attr(evt, key)
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("attribute %q: invalid amount %q", key, raw)
	}
	return value, nil
}
