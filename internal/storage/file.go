package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/google/uuid"
)

const (
	dumpFile      = "price-dump.json"
	snapshotsFile = "price-snapshots.csv"
	settingsFile  = "settings.json"
)

var snapshotHeader = []string{"run_id", "taken_at", "offer_id", "spot_price", "monthly_fee", "addon_nok_per_kwh", "per_kwh_total_nok"}

// FileStorage keeps the latest dump as JSON and appends snapshot rows to a
// CSV file, both under one data directory. Scheduled jobs and locks live in
// process memory.
type FileStorage struct {
	*jobBook

	dir string
	mu  sync.RWMutex
}

// NewFileStorage returns a FileStorage rooted at dir, creating it if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("file storage: data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	return &FileStorage{jobBook: newJobBook(), dir: dir}, nil
}

func (f *FileStorage) path(name string) string { return filepath.Join(f.dir, name) }

func (f *FileStorage) Close() error { return nil }

func (f *FileStorage) Ping(ctx context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileStorage) readDump() (*offers.PriceDump, error) {
	var d offers.PriceDump
	ok, err := readJSON(f.path(dumpFile), &d)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dumpFile, err)
	}
	if !ok || len(d.Offers) == 0 {
		return nil, nil
	}
	return &d, nil
}

func (f *FileStorage) GetLatest(ctx context.Context) (*offers.PriceDump, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, err := f.readDump()
	if d != nil {
		d.Source = offers.SourceDB
	}
	return d, err
}

// UpsertAndSnapshot appends one snapshot row per offer, then replaces the dump
// file. Either step failing truncates the snapshot file back to its previous
// size, so a failed call leaves no trace.
func (f *FileStorage) UpsertAndSnapshot(ctx context.Context, d offers.PriceDump) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.path(snapshotsFile)
	var prevSize int64
	fi, statErr := os.Stat(p)
	if statErr == nil {
		prevSize = fi.Size()
	}
	rollback := func() {
		if os.IsNotExist(statErr) {
			os.Remove(p)
			return
		}
		os.Truncate(p, prevSize)
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	rows := make([]Snapshot, 0, len(d.Offers))
	for _, o := range d.Offers {
		rows = append(rows, snapshotOf(runID, now, o))
	}
	if err := f.appendSnapshots(rows); err != nil {
		rollback()
		return fmt.Errorf("append %s: %w", snapshotsFile, err)
	}

	if err := writeJSONAtomically(f.path(dumpFile), d); err != nil {
		rollback()
		return fmt.Errorf("write %s: %w", dumpFile, err)
	}
	return nil
}

func (f *FileStorage) appendSnapshots(rows []Snapshot) error {
	p := f.path(snapshotsFile)
	_, statErr := os.Stat(p)
	fresh := os.IsNotExist(statErr)

	fh, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	if fresh {
		if err := w.Write(snapshotHeader); err != nil {
			return err
		}
	}
	for _, s := range rows {
		rec := []string{
			s.RunID,
			s.TakenAt.Format(time.RFC3339Nano),
			s.OfferID,
			formatFloat(&s.SpotPrice),
			formatFloat(&s.MonthlyFee),
			formatFloat(s.AddonNokPerKwh),
			formatFloat(s.PerKwhTotalNok),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fh.Sync()
}

func (f *FileStorage) readSnapshots() ([]Snapshot, error) {
	fh, err := os.Open(f.path(snapshotsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = len(snapshotHeader)
	var out []Snapshot
	for line := 0; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 && rec[0] == snapshotHeader[0] {
			continue
		}
		s, err := parseSnapshotRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSnapshotRow(rec []string) (Snapshot, error) {
	taken, err := time.Parse(time.RFC3339Nano, rec[1])
	if err != nil {
		return Snapshot{}, err
	}
	spot, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Snapshot{}, err
	}
	fee, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Snapshot{}, err
	}
	addon, err := parseOptFloat(rec[5])
	if err != nil {
		return Snapshot{}, err
	}
	total, err := parseOptFloat(rec[6])
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		RunID:          rec[0],
		TakenAt:        taken,
		OfferID:        rec[2],
		SpotPrice:      spot,
		MonthlyFee:     fee,
		AddonNokPerKwh: addon,
		PerKwhTotalNok: total,
	}, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f *FileStorage) ListSnapshots(ctx context.Context, offerID string, limit int) ([]Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	all, err := f.readSnapshots()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", snapshotsFile, err)
	}
	return latestSnapshots(all, offerID, limit), nil
}

func (f *FileStorage) ListVendors(ctx context.Context) ([]offers.VendorRef, error) {
	d, err := f.GetLatest(ctx)
	if err != nil || d == nil {
		return []offers.VendorRef{}, err
	}
	return offers.UniqueVendors(d.Offers), nil
}

func (f *FileStorage) ListOffersByVendor(ctx context.Context, slug string) ([]offers.Offer, error) {
	d, err := f.GetLatest(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	return offers.ByVendorSlug(d.Offers, slug), nil
}

func (f *FileStorage) readSettings() (map[string]string, error) {
	m := map[string]string{}
	if _, err := readJSON(f.path(settingsFile), &m); err != nil {
		return nil, fmt.Errorf("read %s: %w", settingsFile, err)
	}
	return m, nil
}

func (f *FileStorage) GetSetting(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, err := f.readSettings()
	if err != nil {
		return "", err
	}
	return m[key], nil
}

func (f *FileStorage) SetSetting(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readSettings()
	if err != nil {
		return err
	}
	m[key] = value
	return writeJSONAtomically(f.path(settingsFile), m)
}
