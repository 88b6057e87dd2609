// Package catalog serves price dumps through an ordered chain of freshness
// tiers and answers the read queries built on top of them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bher20/stromdeals/internal/bundled"
	"github.com/bher20/stromdeals/internal/metrics"
	"github.com/bher20/stromdeals/internal/offers"
	"github.com/bher20/stromdeals/internal/vendorapi"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrNoDump is returned when no tier could supply a dump.
var ErrNoDump = errors.New("no price dump available")

const (
	TierCache    = "cache"
	TierUpstream = "upstream"
	TierStale    = "stale-cache"
	TierBundled  = "bundled"

	DefaultMaxAge  = 15 * time.Minute
	DefaultTimeout = 5 * time.Second
)

// Tier is one source in the freshness chain. A nil dump with a nil error
// means the tier has nothing to offer and the next one should be tried.
type Tier interface {
	Name() string
	TryGet(ctx context.Context) (*offers.PriceDump, error)
}

// DumpStore is the part of storage the gate reads from and writes to.
type DumpStore interface {
	GetLatest(ctx context.Context) (*offers.PriceDump, error)
	UpsertAndSnapshot(ctx context.Context, d offers.PriceDump) error
}

// Fetcher retrieves and maps a live dump.
type Fetcher interface {
	FetchDump(ctx context.Context, now time.Time) (offers.PriceDump, error)
}

type GateConfig struct {
	MaxAge  time.Duration
	Timeout time.Duration
	Now     func() time.Time
}

// Served is a dump together with the tier that produced it.
type Served struct {
	Dump offers.PriceDump
	Tier string
}

type Gate struct {
	tiers    []Tier
	upstream *upstreamTier
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewGate builds the standard chain: cache, upstream, stale-cache, bundled.
// A nil store or fetcher disables the tiers that need it.
func NewGate(store DumpStore, fetcher Fetcher, cfg GateConfig, log logrus.FieldLogger) *Gate {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log = log.WithField("component", "catalog")

	up := &upstreamTier{fetcher: fetcher, store: store, timeout: cfg.Timeout, now: cfg.Now, log: log}
	tiers := []Tier{
		&cacheTier{store: store, maxAge: cfg.MaxAge, now: cfg.Now},
		up,
		&staleTier{store: store},
		bundledTier{now: cfg.Now},
	}
	return &Gate{tiers: tiers, upstream: up, now: cfg.Now, log: log}
}

// NewGateWithTiers builds a gate over an explicit tier list. Refresh is not
// available on such a gate.
func NewGateWithTiers(log logrus.FieldLogger, now func() time.Time, tiers ...Tier) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{tiers: tiers, now: now, log: log.WithField("component", "catalog")}
}

// Get walks the tiers in order and returns the first dump found.
func (g *Gate) Get(ctx context.Context) (Served, error) {
	for _, t := range g.tiers {
		d, err := t.TryGet(ctx)
		if err != nil {
			g.log.WithError(err).WithField("tier", t.Name()).Warn("tier failed")
			continue
		}
		if d == nil {
			continue
		}
		age := d.Age(g.now())
		metrics.ObserveDump(t.Name(), string(d.Source), age, len(d.Offers))
		g.log.WithFields(logrus.Fields{
			"tier":   t.Name(),
			"source": d.Source,
			"offers": len(d.Offers),
			"age":    age.Round(time.Second).String(),
		}).Debug("serving dump")
		return Served{Dump: *d, Tier: t.Name()}, nil
	}
	return Served{}, ErrNoDump
}

// Refresh forces a single upstream fetch and persists the result.
func (g *Gate) Refresh(ctx context.Context) (offers.PriceDump, error) {
	if g.upstream == nil {
		return offers.PriceDump{}, vendorapi.ErrNotConfigured
	}
	d, err := g.upstream.fetch(ctx)
	if err != nil {
		return offers.PriceDump{}, err
	}
	return *d, nil
}

type cacheTier struct {
	store  DumpStore
	maxAge time.Duration
	now    func() time.Time
}

func (t *cacheTier) Name() string { return TierCache }

func (t *cacheTier) TryGet(ctx context.Context) (*offers.PriceDump, error) {
	if t.store == nil {
		return nil, nil
	}
	d, err := t.store.GetLatest(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	if d.Age(t.now()) >= t.maxAge {
		return nil, nil
	}
	return d, nil
}

type upstreamTier struct {
	fetcher Fetcher
	store   DumpStore
	timeout time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
	group   singleflight.Group
}

func (t *upstreamTier) Name() string { return TierUpstream }

func (t *upstreamTier) TryGet(ctx context.Context) (*offers.PriceDump, error) {
	d, err := t.fetch(ctx)
	if errors.Is(err, vendorapi.ErrNotConfigured) {
		return nil, nil
	}
	return d, err
}

// fetch makes one attempt against the vendor API. Concurrent callers share
// the attempt in flight.
func (t *upstreamTier) fetch(ctx context.Context) (*offers.PriceDump, error) {
	if t.fetcher == nil {
		return nil, vendorapi.ErrNotConfigured
	}
	v, err, _ := t.group.Do(TierUpstream, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		d, err := t.fetcher.FetchDump(fctx, t.now())
		if err != nil {
			if !errors.Is(err, vendorapi.ErrNotConfigured) {
				metrics.UpstreamFailuresTotal.Inc()
			}
			return nil, err
		}
		if len(d.Offers) == 0 {
			metrics.UpstreamFailuresTotal.Inc()
			return nil, errors.New("upstream returned no offers")
		}
		t.persist(ctx, d)
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*offers.PriceDump), nil
}

func (t *upstreamTier) persist(ctx context.Context, d offers.PriceDump) {
	if t.store == nil {
		return
	}
	if err := t.store.UpsertAndSnapshot(context.WithoutCancel(ctx), d); err != nil {
		metrics.PersistFailuresTotal.Inc()
		t.log.WithError(err).Error("persist fetched dump")
	}
}

type staleTier struct {
	store DumpStore
}

func (t *staleTier) Name() string { return TierStale }

func (t *staleTier) TryGet(ctx context.Context) (*offers.PriceDump, error) {
	if t.store == nil {
		return nil, nil
	}
	return t.store.GetLatest(ctx)
}

type bundledTier struct {
	now func() time.Time
}

func (bundledTier) Name() string { return TierBundled }

func (t bundledTier) TryGet(ctx context.Context) (*offers.PriceDump, error) {
	d, err := bundled.Dump(t.now())
	if err != nil {
		return nil, fmt.Errorf("bundled dataset: %w", err)
	}
	return &d, nil
}
