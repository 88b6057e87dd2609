package catalog

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bher20/stromdeals/internal/bundled"
	"github.com/bher20/stromdeals/internal/offers"
	"github.com/bher20/stromdeals/internal/ranking"
	"github.com/bher20/stromdeals/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidID = errors.New("invalid offer id")
	ErrNotFound  = errors.New("not found")
)

// RefreshJob names the scheduled job that refreshes the dump from upstream.
const RefreshJob = "refresh_offers"

// Store is the storage surface the service needs.
type Store interface {
	DumpStore
	ListSnapshots(ctx context.Context, offerID string, limit int) ([]storage.Snapshot, error)
	ListVendors(ctx context.Context) ([]offers.VendorRef, error)
	ListOffersByVendor(ctx context.Context, slug string) ([]offers.Offer, error)
	GetScheduledJob(ctx context.Context, name string) (*storage.ScheduledJob, error)
}

// BlueprintLookup finds raw blueprint records for the detail view.
type BlueprintLookup interface {
	FindBlueprint(id int64) (gjson.Result, bool)
}

type Service struct {
	gate               *Gate
	store              Store
	lookup             BlueprintLookup
	defaultConsumption float64
	log                logrus.FieldLogger
}

type Option func(*Service)

// WithLookup replaces the bundled blueprint lookup.
func WithLookup(l BlueprintLookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithDefaultConsumption sets the kWh used when a request names none.
func WithDefaultConsumption(kwh float64) Option {
	return func(s *Service) {
		if kwh > 0 {
			s.defaultConsumption = kwh
		}
	}
}

func NewService(gate *Gate, store Store, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		gate:               gate,
		store:              store,
		lookup:             bundled.Lookup{},
		defaultConsumption: offers.DefaultConsumption,
		log:                log.WithField("component", "catalog"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dump returns the current dump and the tier that served it.
func (s *Service) Dump(ctx context.Context) (Served, error) {
	return s.gate.Get(ctx)
}

// Refresh forces an upstream fetch.
func (s *Service) Refresh(ctx context.Context) (offers.PriceDump, error) {
	return s.gate.Refresh(ctx)
}

// OffersRequest describes a priced, filtered and sorted listing.
// Tier wins over Consumption when it names a known usage tier.
type OffersRequest struct {
	Consumption *float64
	Tier        string
	Area        string
	ranking.Query
}

type OffersResult struct {
	UpdatedAt   time.Time      `json:"updatedAt"`
	Source      offers.Source  `json:"source"`
	ServedFrom  string         `json:"servedFrom"`
	Consumption float64        `json:"consumption"`
	UsageTier   string         `json:"usageTier"`
	Area        string         `json:"area,omitempty"`
	Count       int            `json:"count"`
	Offers      []ranking.Item `json:"offers"`
}

// Consumption resolves the monthly kWh for a request.
func (s *Service) Consumption(req OffersRequest) float64 {
	if t, ok := offers.TierByID(req.Tier); ok {
		return t.Monthly
	}
	if req.Consumption != nil {
		if *req.Consumption < 0 || math.IsNaN(*req.Consumption) || math.IsInf(*req.Consumption, 0) {
			return 0
		}
		return *req.Consumption
	}
	return s.defaultConsumption
}

func (s *Service) Offers(ctx context.Context, req OffersRequest) (OffersResult, error) {
	served, err := s.gate.Get(ctx)
	if err != nil {
		return OffersResult{}, err
	}
	kwh := s.Consumption(req)
	items := ranking.Annotate(served.Dump.Offers, kwh, served.Dump.SpotByArea, req.Area)
	ranked := ranking.Rank(items, req.Query)
	return OffersResult{
		UpdatedAt:   served.Dump.UpdatedAt,
		Source:      served.Dump.Source,
		ServedFrom:  served.Tier,
		Consumption: kwh,
		UsageTier:   offers.NearestTier(kwh).ID,
		Area:        offers.NormalizeArea(req.Area),
		Count:       len(ranked),
		Offers:      ranked,
	}, nil
}

// Detail projects a single blueprint record.
func (s *Service) Detail(id string) (offers.Detail, error) {
	n, ok := bundled.ParseID(id)
	if !ok {
		return offers.Detail{}, ErrInvalidID
	}
	rec, ok := s.lookup.FindBlueprint(n)
	if !ok {
		return offers.Detail{}, ErrNotFound
	}
	return offers.ProjectDetail(rec), nil
}

// Vendors lists the vendors of the stored dump, falling back to the served one.
func (s *Service) Vendors(ctx context.Context) ([]offers.VendorRef, error) {
	if s.store != nil {
		list, err := s.store.ListVendors(ctx)
		if err != nil {
			s.log.WithError(err).Warn("list vendors from store")
		} else if len(list) > 0 {
			return list, nil
		}
	}
	served, err := s.gate.Get(ctx)
	if err != nil {
		return nil, err
	}
	return offers.UniqueVendors(served.Dump.Offers), nil
}

// VendorOffers returns the offers of one vendor by slug.
func (s *Service) VendorOffers(ctx context.Context, slug string) ([]offers.Offer, error) {
	if s.store != nil {
		list, err := s.store.ListOffersByVendor(ctx, slug)
		if err != nil {
			s.log.WithError(err).WithField("slug", slug).Warn("list vendor offers from store")
		} else if len(list) > 0 {
			return list, nil
		}
	}
	served, err := s.gate.Get(ctx)
	if err != nil {
		return nil, err
	}
	list := offers.ByVendorSlug(served.Dump.Offers, slug)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list, nil
}

// History returns up to limit stored snapshots for an offer, newest first.
func (s *Service) History(ctx context.Context, offerID string, limit int) ([]storage.Snapshot, error) {
	if s.store == nil {
		return []storage.Snapshot{}, nil
	}
	list, err := s.store.ListSnapshots(ctx, offerID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []storage.Snapshot{}
	}
	return list, nil
}

type Status struct {
	ServedFrom  string                `json:"servedFrom"`
	Source      offers.Source         `json:"source"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	AgeSeconds  float64               `json:"ageSeconds"`
	Offers      int                   `json:"offers"`
	LastRefresh *storage.ScheduledJob `json:"lastRefresh,omitempty"`
}

// Status summarizes the served dump and the last refresh run.
func (s *Service) Status(ctx context.Context) (Status, error) {
	served, err := s.gate.Get(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		ServedFrom: served.Tier,
		Source:     served.Dump.Source,
		UpdatedAt:  served.Dump.UpdatedAt,
		AgeSeconds: served.Dump.Age(s.gate.now()).Seconds(),
		Offers:     len(served.Dump.Offers),
	}
	if s.store != nil {
		job, err := s.store.GetScheduledJob(ctx, RefreshJob)
		if err != nil {
			s.log.WithError(err).Warn("read refresh job")
		}
		st.LastRefresh = job
	}
	return st, nil
}
