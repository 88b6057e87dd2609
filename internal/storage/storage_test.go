package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bher20/stromdeals/internal/offers"
)

func sampleDump(updated time.Time) offers.PriceDump {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return offers.PriceDump{
		UpdatedAt: updated,
		Source:    offers.SourceAPI,
		Offers: []offers.Offer{
			{
				ID: "b-2", Vendor: "Tibber Norge AS", Name: "Smart", URL: "https://t.example",
				ContractType: offers.ContractSpot, RawContractType: "spot", SpotPrice: 0.8, MonthlyFee: 39,
				AddonNokPerKwh: offers.Float(-0.02), Sparkline: []float64{1, 2, 3}, ProgramID: "p1",
				WarrantyMonths: offers.Int(12), Area: "no1", ExpiresAt: &exp,
			},
			{
				ID: "a-1", Vendor: "Fjordkraft", Name: "Fast", URL: "https://f.example",
				ContractType: offers.ContractFixed, SpotPrice: 1.1, MonthlyFee: 0, PerKwhTotalNok: offers.Float(1.2),
			},
			{
				ID: "c-3", Vendor: "Tibber Norge AS", Name: "Plus", URL: "",
				ContractType: offers.ContractVariable, SpotPrice: 0.9, MonthlyFee: 10,
			},
		},
		SpotByArea: map[string]float64{"no1": 0.85},
	}
}

func openBackends(t *testing.T) map[string]Storage {
	t.Helper()
	ctx := context.Background()

	file, err := NewFileStorage(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	sqlite, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db"), AutoMigrate: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Storage{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestStorage_LatestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := st.GetLatest(ctx)
			if err != nil || got != nil {
				t.Fatalf("empty store: got %v, %v", got, err)
			}

			updated := time.Date(2025, 8, 20, 10, 30, 0, 0, time.UTC)
			if err := st.UpsertAndSnapshot(ctx, sampleDump(updated)); err != nil {
				t.Fatalf("UpsertAndSnapshot: %v", err)
			}
			got, err = st.GetLatest(ctx)
			if err != nil || got == nil {
				t.Fatalf("GetLatest: %v, %v", got, err)
			}
			if got.Source != offers.SourceDB {
				t.Errorf("source: %q", got.Source)
			}
			if !got.UpdatedAt.Equal(updated) {
				t.Errorf("updatedAt: %v", got.UpdatedAt)
			}
			if len(got.Offers) != 3 || got.Offers[0].ID != "b-2" || got.Offers[1].ID != "a-1" {
				t.Fatalf("offers order not kept: %+v", got.Offers)
			}
			first := got.Offers[0]
			if first.Vendor != "Tibber Norge AS" || first.AddonNokPerKwh == nil || *first.AddonNokPerKwh != -0.02 {
				t.Errorf("first offer lost fields: %+v", first)
			}
			if len(first.Sparkline) != 3 || first.WarrantyMonths == nil || *first.WarrantyMonths != 12 {
				t.Errorf("sparkline/warranty: %+v", first)
			}
			if first.ExpiresAt == nil || first.ExpiresAt.Year() != 2030 {
				t.Errorf("expiry: %v", first.ExpiresAt)
			}
			if got.Offers[1].PerKwhTotalNok == nil || *got.Offers[1].PerKwhTotalNok != 1.2 {
				t.Errorf("total lost: %+v", got.Offers[1])
			}
			if got.SpotByArea["no1"] != 0.85 {
				t.Errorf("spotByArea: %v", got.SpotByArea)
			}
		})
	}
}

func TestStorage_ReplaceDropsOldOffers(t *testing.T) {
	ctx := context.Background()
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.UpsertAndSnapshot(ctx, sampleDump(time.Now())); err != nil {
				t.Fatal(err)
			}
			next := offers.PriceDump{
				UpdatedAt: time.Now(),
				Source:    offers.SourceAPI,
				Offers:    []offers.Offer{{ID: "a-1", Vendor: "Fjordkraft", Name: "Fast v2", URL: "https://f.example", ContractType: offers.ContractFixed}},
			}
			if err := st.UpsertAndSnapshot(ctx, next); err != nil {
				t.Fatal(err)
			}
			got, err := st.GetLatest(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Offers) != 1 || got.Offers[0].Name != "Fast v2" {
				t.Fatalf("expected only the new dump, got %+v", got.Offers)
			}

			vendors, err := st.ListVendors(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(vendors) != 1 || vendors[0].Slug != "fjordkraft" {
				t.Fatalf("vendors should follow the latest dump, got %+v", vendors)
			}
		})
	}
}

func TestStorage_Snapshots(t *testing.T) {
	ctx := context.Background()
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			d := sampleDump(time.Now())
			if err := st.UpsertAndSnapshot(ctx, d); err != nil {
				t.Fatal(err)
			}
			d.Offers[0].SpotPrice = 0.95
			if err := st.UpsertAndSnapshot(ctx, d); err != nil {
				t.Fatal(err)
			}

			snaps, err := st.ListSnapshots(ctx, "b-2", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(snaps) != 2 {
				t.Fatalf("expected 2 snapshots, got %d", len(snaps))
			}
			if snaps[0].SpotPrice != 0.95 || snaps[1].SpotPrice != 0.8 {
				t.Errorf("expected newest first, got %+v", snaps)
			}
			if snaps[0].RunID == snaps[1].RunID || snaps[0].RunID == "" {
				t.Errorf("each write should carry its own run id")
			}
			if snaps[0].AddonNokPerKwh == nil || *snaps[0].AddonNokPerKwh != -0.02 {
				t.Errorf("addon missing in snapshot: %+v", snaps[0])
			}

			limited, err := st.ListSnapshots(ctx, "b-2", 1)
			if err != nil || len(limited) != 1 {
				t.Fatalf("limit: %v, %d", err, len(limited))
			}
			none, err := st.ListSnapshots(ctx, "missing", 0)
			if err != nil || len(none) != 0 {
				t.Fatalf("unknown offer: %v, %d", err, len(none))
			}
		})
	}
}

func TestStorage_Vendors(t *testing.T) {
	ctx := context.Background()
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			vendors, err := st.ListVendors(ctx)
			if err != nil || len(vendors) != 0 {
				t.Fatalf("empty store: %v, %v", vendors, err)
			}
			if err := st.UpsertAndSnapshot(ctx, sampleDump(time.Now())); err != nil {
				t.Fatal(err)
			}
			vendors, err = st.ListVendors(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(vendors) != 2 || vendors[0].Name != "Fjordkraft" || vendors[1].Slug != "tibber-norge-as" {
				t.Fatalf("unexpected vendors: %+v", vendors)
			}

			list, err := st.ListOffersByVendor(ctx, "tibber-norge-as")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].ID != "b-2" || list[1].ID != "c-3" {
				t.Fatalf("unexpected vendor offers: %+v", list)
			}
			none, err := st.ListOffersByVendor(ctx, "nobody")
			if err != nil || len(none) != 0 {
				t.Fatalf("unknown slug: %v, %v", none, err)
			}
		})
	}
}

func TestStorage_SettingsAndJobs(t *testing.T) {
	ctx := context.Background()
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if v, err := st.GetSetting(ctx, "missing"); err != nil || v != "" {
				t.Fatalf("missing setting: %q, %v", v, err)
			}
			if err := st.SetSetting(ctx, "refresh_interval", "600"); err != nil {
				t.Fatal(err)
			}
			if err := st.SetSetting(ctx, "refresh_interval", "300"); err != nil {
				t.Fatal(err)
			}
			if v, _ := st.GetSetting(ctx, "refresh_interval"); v != "300" {
				t.Fatalf("setting: %q", v)
			}

			if job, err := st.GetScheduledJob(ctx, "refresh"); err != nil || job != nil {
				t.Fatalf("missing job: %v, %v", job, err)
			}
			started := time.Now().UTC().Truncate(time.Second)
			if err := st.UpdateScheduledJob(ctx, "refresh", started, 1500*time.Millisecond, false, "boom"); err != nil {
				t.Fatal(err)
			}
			job, err := st.GetScheduledJob(ctx, "refresh")
			if err != nil || job == nil {
				t.Fatalf("GetScheduledJob: %v, %v", job, err)
			}
			if job.LastSuccess != 0 || job.LastError != "boom" || job.LastDurationMs != 1500 {
				t.Fatalf("unexpected job: %+v", job)
			}

			ok, err := st.AcquireAdvisoryLock(ctx, 42)
			if err != nil || !ok {
				t.Fatalf("acquire: %v, %v", ok, err)
			}
			if _, err := st.ReleaseAdvisoryLock(ctx, 42); err != nil {
				t.Fatal(err)
			}
			if err := st.Ping(ctx); err != nil {
				t.Fatalf("ping: %v", err)
			}
		})
	}
}

func TestMemory_AdvisoryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if ok, _ := m.AcquireAdvisoryLock(ctx, 1); !ok {
		t.Fatal("first acquire should succeed")
	}
	if ok, _ := m.AcquireAdvisoryLock(ctx, 1); ok {
		t.Fatal("second acquire should fail while held")
	}
	if held, _ := m.ReleaseAdvisoryLock(ctx, 1); !held {
		t.Fatal("release should report the lock was held")
	}
	if ok, _ := m.AcquireAdvisoryLock(ctx, 1); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestMemory_GetLatestReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.UpsertAndSnapshot(ctx, sampleDump(time.Now())); err != nil {
		t.Fatal(err)
	}
	d, _ := m.GetLatest(ctx)
	d.Offers[0].Name = "mutated"
	again, _ := m.GetLatest(ctx)
	if again.Offers[0].Name == "mutated" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestGorm_SkipsOffersWithoutID(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "t.db"), AutoMigrate: true})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	d := offers.PriceDump{UpdatedAt: time.Now(), Offers: []offers.Offer{
		{Vendor: "A", Name: "no id"},
		{ID: "1", Vendor: "A", Name: "keyed"},
	}}
	if err := st.UpsertAndSnapshot(ctx, d); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetLatest(ctx)
	if err != nil || got == nil || len(got.Offers) != 1 || got.Offers[0].ID != "1" {
		t.Fatalf("unexpected: %+v, %v", got, err)
	}
}

func TestFile_FailedSnapshotAppendKeepsPreviousDump(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	first := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	if err := st.UpsertAndSnapshot(ctx, sampleDump(first)); err != nil {
		t.Fatal(err)
	}

	csvPath := filepath.Join(dir, snapshotsFile)
	if err := os.Remove(csvPath); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(csvPath, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertAndSnapshot(ctx, sampleDump(first.Add(time.Hour))); err == nil {
		t.Fatal("expected append error")
	}

	got, err := st.GetLatest(ctx)
	if err != nil || got == nil {
		t.Fatalf("GetLatest: %+v, %v", got, err)
	}
	if !got.UpdatedAt.Equal(first) {
		t.Fatalf("new dump visible after failed write: updated %v", got.UpdatedAt)
	}
}

func TestFile_FailedDumpWriteRollsBackSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	first := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	if err := st.UpsertAndSnapshot(ctx, sampleDump(first)); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, snapshotsFile)
	before, err := os.Stat(csvPath)
	if err != nil {
		t.Fatal(err)
	}

	// A non-empty directory where the dump goes makes the final rename fail.
	dumpPath := filepath.Join(dir, dumpFile)
	if err := os.Remove(dumpPath); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dumpPath, "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertAndSnapshot(ctx, sampleDump(first.Add(time.Hour))); err == nil {
		t.Fatal("expected dump write error")
	}

	after, err := os.Stat(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if after.Size() != before.Size() {
		t.Fatalf("snapshot file grew from %d to %d bytes", before.Size(), after.Size())
	}
	snaps, err := st.ListSnapshots(ctx, "a-1", 0)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots: %d, %v", len(snaps), err)
	}
}

func TestGorm_FailedSnapshotRollsBack(t *testing.T) {
	ctx := context.Background()
	opened, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "t.db"), AutoMigrate: true})
	if err != nil {
		t.Fatal(err)
	}
	defer opened.Close()
	st := opened.(*GormStorage)

	first := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	if err := st.UpsertAndSnapshot(ctx, sampleDump(first)); err != nil {
		t.Fatal(err)
	}

	// Fail the snapshot insert of the second offer, after the first offer was written.
	err = st.db.Callback().Create().Before("gorm:create").Register("fail_snapshot", func(db *gorm.DB) {
		if snap, ok := db.Statement.Dest.(*PriceSnapshot); ok && snap.OfferID == "a-1" {
			db.AddError(errors.New("snapshot rejected"))
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	second := sampleDump(first.Add(time.Hour))
	second.Offers[0].Name = "renamed"
	if err := st.UpsertAndSnapshot(ctx, second); err == nil {
		t.Fatal("expected snapshot error")
	}

	got, err := st.GetLatest(ctx)
	if err != nil || got == nil {
		t.Fatalf("GetLatest: %+v, %v", got, err)
	}
	if !got.UpdatedAt.Equal(first) {
		t.Errorf("dump metadata committed: updated %v", got.UpdatedAt)
	}
	for _, o := range got.Offers {
		if o.Name == "renamed" {
			t.Errorf("offer update committed: %+v", o)
		}
	}
	snaps, err := st.ListSnapshots(ctx, "b-2", 0)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots of b-2: %d, %v", len(snaps), err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
}
