package index

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger entry kinds projected from escrow payouts.
const (
	KindRelease      = "release"
	KindRefund       = "refund"
	KindDisputeHost  = "dispute_host"
	KindDisputeGuest = "dispute_guest"
)

// ListingRecord mirrors a listing registered on the node.
type ListingRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID      uint64    `gorm:"uniqueIndex" json:"listingId"`
	Host           string    `gorm:"size:64;index" json:"host"`
	PricePerMonth  string    `gorm:"size:80" json:"pricePerMonth"`
	PerMonthAmount string    `gorm:"size:80" json:"perMonthAmount"`
	Sequence       uint64    `json:"sequence"`
	ListedAt       int64     `json:"listedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// BookingRecord mirrors a booking and its escrow position.
type BookingRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID      uint64    `gorm:"uniqueIndex" json:"bookingId"`
	ListingID      uint64    `gorm:"index" json:"listingId"`
	Guest          string    `gorm:"size:64;index" json:"guest"`
	Host           string    `gorm:"size:64;index" json:"host"`
	Start          int64     `gorm:"column:starts_at" json:"start"`
	End            int64     `gorm:"column:ends_at" json:"end"`
	MonthsBooked   uint64    `json:"monthsBooked"`
	MonthsReleased uint64    `json:"monthsReleased"`
	PerMonthAmount string    `gorm:"size:80" json:"perMonthAmount"`
	EscrowBalance  string    `gorm:"size:80" json:"escrowBalance"`
	Status         string    `gorm:"size:16;index" json:"status"`
	MetadataURI    string    `gorm:"size:2048" json:"metadataUri"`
	Sequence       uint64    `json:"sequence"`
	BookedAt       int64     `json:"bookedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LedgerEntry records one escrow payout.
type LedgerEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence  uint64    `gorm:"index" json:"sequence"`
	BookingID uint64    `gorm:"index" json:"bookingId"`
	Kind      string    `gorm:"size:16;index" json:"kind"`
	Recipient string    `gorm:"size:64;index" json:"recipient"`
	Amount    string    `gorm:"size:80" json:"amount"`
	Timestamp int64     `gorm:"column:occurred_at;index" json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// FinancingRequest records a BNPL request.
type FinancingRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence    uint64    `gorm:"uniqueIndex" json:"sequence"`
	BookingID   uint64    `gorm:"index" json:"bookingId"`
	Guest       string    `gorm:"size:64;index" json:"guest"`
	Months      uint64    `json:"months"`
	TotalAmount string    `gorm:"size:80" json:"totalAmount"`
	Terms       string    `gorm:"size:1024" json:"terms"`
	Timestamp   int64     `json:"timestamp"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TravelPackage records a travel package purchase.
type TravelPackage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence  uint64    `gorm:"uniqueIndex" json:"sequence"`
	PackageID uint64    `gorm:"index" json:"packageId"`
	Guest     string    `gorm:"size:64;index" json:"guest"`
	Price     string    `gorm:"size:80" json:"price"`
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cursor stores the last journal sequence applied by a projection.
type Cursor struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Sequence  uint64    `json:"sequence"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ListingRecord{},
		&BookingRecord{},
		&LedgerEntry{},
		&FinancingRequest{},
		&TravelPackage{},
		&Cursor{},
	)
}
