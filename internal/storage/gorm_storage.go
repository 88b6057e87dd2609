package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Vendor{},
		&OfferRecord{},
		&PriceSnapshot{},
		&Meta{},
		&Setting{},
		&ScheduledJob{},
	)
}

// Dumps

func (s *GormStorage) getMeta(tx *gorm.DB, key string) (string, bool, error) {
	var m Meta
	err := tx.First(&m, "k = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.V, true, nil
}

func putMeta(tx *gorm.DB, key, value string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&Meta{K: key, V: value}).Error
}

func (s *GormStorage) latestRun(ctx context.Context) (string, bool, error) {
	return s.getMeta(s.db.WithContext(ctx), metaLastRunID)
}

func (s *GormStorage) GetLatest(ctx context.Context) (*offers.PriceDump, error) {
	db := s.db.WithContext(ctx)
	runID, ok, err := s.getMeta(db, metaLastRunID)
	if err != nil || !ok {
		return nil, err
	}
	updated, ok, err := s.getMeta(db, metaLastUpdated)
	if err != nil || !ok {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", metaLastUpdated, err)
	}

	var recs []OfferRecord
	if err := db.Preload("Vendor").Where("run_id = ?", runID).Order("position").Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	d := offers.PriceDump{
		UpdatedAt: updatedAt,
		Offers:    make([]offers.Offer, 0, len(recs)),
		Source:    offers.SourceDB,
	}
	for _, r := range recs {
		d.Offers = append(d.Offers, r.toOffer())
	}
	if raw, ok, err := s.getMeta(db, metaSpotByArea); err != nil {
		return nil, err
	} else if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &d.SpotByArea); err != nil {
			return nil, fmt.Errorf("parse %s: %w", metaSpotByArea, err)
		}
	}
	return &d, nil
}

// UpsertAndSnapshot writes vendors, offers, one snapshot per offer and the
// dump metadata in a single transaction. Offers without an id cannot be keyed
// and are skipped; a repeated id keeps its last occurrence.
func (s *GormStorage) UpsertAndSnapshot(ctx context.Context, d offers.PriceDump) error {
	runID := uuid.NewString()
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vendorIDs := map[string]uint{}
		for i, o := range d.Offers {
			if o.ID == "" {
				continue
			}
			vid, ok := vendorIDs[o.Vendor]
			if !ok {
				var err error
				if vid, err = upsertVendor(tx, o.Vendor); err != nil {
					return fmt.Errorf("upsert vendor %q: %w", o.Vendor, err)
				}
				vendorIDs[o.Vendor] = vid
			}

			rec := offerRecordOf(o, vid, runID, i)
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&rec).Error; err != nil {
				return fmt.Errorf("upsert offer %q: %w", o.ID, err)
			}

			snap := PriceSnapshot{
				RunID:          runID,
				OfferID:        o.ID,
				SpotPrice:      o.SpotPrice,
				MonthlyFee:     o.MonthlyFee,
				AddonNokPerKwh: o.AddonNokPerKwh,
				PerKwhTotalNok: o.PerKwhTotalNok,
				CreatedAt:      now,
			}
			if err := tx.Create(&snap).Error; err != nil {
				return fmt.Errorf("snapshot offer %q: %w", o.ID, err)
			}
		}

		spot := ""
		if len(d.SpotByArea) > 0 {
			b, err := json.Marshal(d.SpotByArea)
			if err != nil {
				return err
			}
			spot = string(b)
		}
		for k, v := range map[string]string{
			metaLastUpdated: d.UpdatedAt.UTC().Format(time.RFC3339Nano),
			metaLastRunID:   runID,
			metaSpotByArea:  spot,
			metaSource:      string(d.Source),
		} {
			if err := putMeta(tx, k, v); err != nil {
				return fmt.Errorf("write meta %s: %w", k, err)
			}
		}
		return nil
	})
}

func upsertVendor(tx *gorm.DB, name string) (uint, error) {
	v := Vendor{Name: name, Slug: offers.Slugify(name)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"slug"}),
	}).Create(&v).Error; err != nil {
		return 0, err
	}
	var stored Vendor
	if err := tx.First(&stored, "name = ?", name).Error; err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func offerRecordOf(o offers.Offer, vendorID uint, runID string, pos int) OfferRecord {
	spark := ""
	if len(o.Sparkline) > 0 {
		b, _ := json.Marshal(o.Sparkline)
		spark = string(b)
	}
	return OfferRecord{
		ID:              o.ID,
		VendorID:        vendorID,
		Name:            o.Name,
		URL:             o.URL,
		TrackingURL:     o.TrackingURL,
		ProgramID:       o.ProgramID,
		Area:            o.Area,
		Municipality:    o.Municipality,
		ContractType:    o.ContractType,
		RawContractType: o.RawContractType,
		SpotPrice:       o.SpotPrice,
		MonthlyFee:      o.MonthlyFee,
		WarrantyMonths:  o.WarrantyMonths,
		Sparkline:       spark,
		AddonNokPerKwh:  o.AddonNokPerKwh,
		PerKwhTotalNok:  o.PerKwhTotalNok,
		ExpiresAt:       o.ExpiresAt,
		RunID:           runID,
		Position:        pos,
	}
}

func (r OfferRecord) toOffer() offers.Offer {
	o := offers.Offer{
		ID:              r.ID,
		Vendor:          r.Vendor.Name,
		Name:            r.Name,
		URL:             r.URL,
		TrackingURL:     r.TrackingURL,
		ProgramID:       r.ProgramID,
		Area:            r.Area,
		Municipality:    r.Municipality,
		ContractType:    r.ContractType,
		RawContractType: r.RawContractType,
		SpotPrice:       r.SpotPrice,
		MonthlyFee:      r.MonthlyFee,
		WarrantyMonths:  r.WarrantyMonths,
		AddonNokPerKwh:  r.AddonNokPerKwh,
		PerKwhTotalNok:  r.PerKwhTotalNok,
	}
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		o.ExpiresAt = &t
	}
	if r.Sparkline != "" {
		_ = json.Unmarshal([]byte(r.Sparkline), &o.Sparkline)
	}
	return o
}

func (s *GormStorage) ListSnapshots(ctx context.Context, offerID string, limit int) ([]Snapshot, error) {
	q := s.db.WithContext(ctx).Where("offer_id = ?", offerID).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []PriceSnapshot
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, Snapshot{
			RunID:          r.RunID,
			OfferID:        r.OfferID,
			TakenAt:        r.CreatedAt.UTC(),
			SpotPrice:      r.SpotPrice,
			MonthlyFee:     r.MonthlyFee,
			AddonNokPerKwh: r.AddonNokPerKwh,
			PerKwhTotalNok: r.PerKwhTotalNok,
		})
	}
	return out, nil
}

// Vendors

func (s *GormStorage) ListVendors(ctx context.Context) ([]offers.VendorRef, error) {
	runID, ok, err := s.latestRun(ctx)
	if err != nil || !ok {
		return []offers.VendorRef{}, err
	}
	var names []string
	err = s.db.WithContext(ctx).Model(&Vendor{}).
		Distinct("vendors.name").
		Joins("JOIN offers ON offers.vendor_id = vendors.id").
		Where("offers.run_id = ?", runID).
		Pluck("vendors.name", &names).Error
	if err != nil {
		return nil, err
	}
	list := make([]offers.Offer, 0, len(names))
	for _, n := range names {
		list = append(list, offers.Offer{Vendor: n})
	}
	return offers.UniqueVendors(list), nil
}

func (s *GormStorage) ListOffersByVendor(ctx context.Context, slug string) ([]offers.Offer, error) {
	runID, ok, err := s.latestRun(ctx)
	if err != nil || !ok {
		return nil, err
	}
	var recs []OfferRecord
	err = s.db.WithContext(ctx).
		Preload("Vendor").
		Joins("JOIN vendors ON vendors.id = offers.vendor_id").
		Where("offers.run_id = ? AND vendors.slug = ?", runID, slug).
		Order("offers.position").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	var out []offers.Offer
	for _, r := range recs {
		out = append(out, r.toOffer())
	}
	return out, nil
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// SQLite has no advisory locks; a single instance owns the file.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	job := newScheduledJob(name, started, dur, success, errMsg)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	result := s.db.WithContext(ctx).First(&job, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}
