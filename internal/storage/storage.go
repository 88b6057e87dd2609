package storage

import (
	"context"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
)

// Storage abstracts persistence for price dumps and their history.
// Lookups that find nothing return a nil value and a nil error.
type Storage interface {
	// Dumps
	GetLatest(ctx context.Context) (*offers.PriceDump, error)
	UpsertAndSnapshot(ctx context.Context, d offers.PriceDump) error
	ListSnapshots(ctx context.Context, offerID string, limit int) ([]Snapshot, error)

	// Vendors of the latest dump
	ListVendors(ctx context.Context) ([]offers.VendorRef, error)
	ListOffersByVendor(ctx context.Context, slug string) ([]offers.Offer, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
