package storage

import (
	"time"

	"github.com/bher20/stromdeals/internal/offers"
)

// Meta keys written alongside every dump.
const (
	metaLastUpdated = "last_updated"
	metaLastRunID   = "last_run_id"
	metaSpotByArea  = "spot_by_area"
	metaSource      = "source"
)

// Snapshot is one historical price observation for an offer.
type Snapshot struct {
	RunID          string    `json:"runId"`
	OfferID        string    `json:"offerId"`
	TakenAt        time.Time `json:"takenAt"`
	SpotPrice      float64   `json:"spotPrice"`
	MonthlyFee     float64   `json:"monthlyFee"`
	AddonNokPerKwh *float64  `json:"addonNokPerKwh,omitempty"`
	PerKwhTotalNok *float64  `json:"perKwhTotalNok,omitempty"`
}

// ScheduledJob records the outcome of the last run of a named job.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"lastRunAt" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"lastDurationMs" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"lastSuccess" gorm:"column:last_success"`
	LastError      string    `json:"lastError,omitempty" gorm:"column:last_error"`
}

// Setting is a free-form key/value pair.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// Vendor is a supplying organization.
type Vendor struct {
	ID   uint   `gorm:"primaryKey;column:id"`
	Name string `gorm:"uniqueIndex;not null;column:name"`
	Slug string `gorm:"index;not null;column:slug"`
}

// OfferRecord is the relational form of offers.Offer. RunID and Position tie
// a row to the dump that last wrote it.
type OfferRecord struct {
	ID              string     `gorm:"primaryKey;column:id"`
	VendorID        uint       `gorm:"not null;index;column:vendor_id"`
	Vendor          Vendor     `gorm:"foreignKey:VendorID"`
	Name            string     `gorm:"not null;column:name"`
	URL             string     `gorm:"not null;column:url"`
	TrackingURL     string     `gorm:"column:tracking_url"`
	ProgramID       string     `gorm:"column:program_id"`
	Area            string     `gorm:"column:area"`
	Municipality    string     `gorm:"column:municipality"`
	ContractType    string     `gorm:"not null;column:contract_type"`
	RawContractType string     `gorm:"column:raw_contract_type"`
	SpotPrice       float64    `gorm:"not null;column:spot_price"`
	MonthlyFee      float64    `gorm:"not null;column:monthly_fee"`
	WarrantyMonths  *int       `gorm:"column:warranty_months"`
	Sparkline       string     `gorm:"column:sparkline"` // JSON array
	AddonNokPerKwh  *float64   `gorm:"column:addon_nok_per_kwh"`
	PerKwhTotalNok  *float64   `gorm:"column:per_kwh_total_nok"`
	ExpiresAt       *time.Time `gorm:"column:expires_at"`
	RunID           string     `gorm:"index;column:run_id"`
	Position        int        `gorm:"column:position"`
}

func (OfferRecord) TableName() string { return "offers" }

// PriceSnapshot is the relational form of Snapshot.
type PriceSnapshot struct {
	ID             uint      `gorm:"primaryKey;column:id"`
	RunID          string    `gorm:"index;not null;column:run_id"`
	OfferID        string    `gorm:"index;not null;column:offer_id"`
	SpotPrice      float64   `gorm:"not null;column:spot_price"`
	MonthlyFee     float64   `gorm:"not null;column:monthly_fee"`
	AddonNokPerKwh *float64  `gorm:"column:addon_nok_per_kwh"`
	PerKwhTotalNok *float64  `gorm:"column:per_kwh_total_nok"`
	CreatedAt      time.Time `gorm:"not null;column:created_at"`
}

func (PriceSnapshot) TableName() string { return "price_snapshots" }

// Meta holds dump-level values such as the last update time.
type Meta struct {
	K string `gorm:"primaryKey;column:k"`
	V string `gorm:"not null;column:v"`
}

func (Meta) TableName() string { return "meta" }

func snapshotOf(runID string, takenAt time.Time, o offers.Offer) Snapshot {
	return Snapshot{
		RunID:          runID,
		OfferID:        o.ID,
		TakenAt:        takenAt,
		SpotPrice:      o.SpotPrice,
		MonthlyFee:     o.MonthlyFee,
		AddonNokPerKwh: o.AddonNokPerKwh,
		PerKwhTotalNok: o.PerKwhTotalNok,
	}
}
