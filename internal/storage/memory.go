package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	*jobBook

	mu        sync.RWMutex
	latest    *offers.PriceDump
	snapshots []Snapshot
	settings  map[string]string
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		jobBook:  newJobBook(),
		settings: make(map[string]string),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) GetLatest(ctx context.Context) (*offers.PriceDump, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil || len(m.latest.Offers) == 0 {
		return nil, nil
	}
	d := copyDump(*m.latest)
	d.Source = offers.SourceDB
	return &d, nil
}

func (m *MemoryStorage) UpsertAndSnapshot(ctx context.Context, d offers.PriceDump) error {
	runID := uuid.NewString()
	now := time.Now().UTC()
	cp := copyDump(d)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = &cp
	for _, o := range cp.Offers {
		m.snapshots = append(m.snapshots, snapshotOf(runID, now, o))
	}
	return nil
}

func (m *MemoryStorage) ListSnapshots(ctx context.Context, offerID string, limit int) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latestSnapshots(m.snapshots, offerID, limit), nil
}

func (m *MemoryStorage) ListVendors(ctx context.Context) ([]offers.VendorRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return []offers.VendorRef{}, nil
	}
	return offers.UniqueVendors(m.latest.Offers), nil
}

func (m *MemoryStorage) ListOffersByVendor(ctx context.Context, slug string) ([]offers.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, nil
	}
	return offers.ByVendorSlug(m.latest.Offers, slug), nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func copyDump(d offers.PriceDump) offers.PriceDump {
	out := d
	out.Offers = make([]offers.Offer, len(d.Offers))
	copy(out.Offers, d.Offers)
	if d.SpotByArea != nil {
		out.SpotByArea = make(map[string]float64, len(d.SpotByArea))
		for k, v := range d.SpotByArea {
			out.SpotByArea[k] = v
		}
	}
	return out
}

// latestSnapshots returns up to limit snapshots of offerID, newest first.
// A non-positive limit returns all of them.
func latestSnapshots(all []Snapshot, offerID string, limit int) []Snapshot {
	out := []Snapshot{}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].OfferID != offerID {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
