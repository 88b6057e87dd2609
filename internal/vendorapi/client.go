// Package vendorapi fetches the live offer feed from the vendor API.
package vendorapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bher20/stromdeals/internal/offers"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no feed URL is set.
var ErrNotConfigured = errors.New("vendor api url is not configured")

// maxBody caps how much of a response is read.
const maxBody = 16 << 20

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *retryablehttp.Client
	log  logrus.FieldLogger
}

// New returns a Client that makes exactly one attempt per Fetch.
func New(cfg Config, logger logrus.FieldLogger) *Client {
	log := logger.WithField("component", "vendorapi")
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = leveledLogger{log}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	return &Client{cfg: cfg, http: rc, log: log}
}

// leveledLogger routes retryablehttp's request logging into logrus at debug
// level, keeping warnings and errors as they are.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) entry(kv []interface{}) logrus.FieldLogger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.entry(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{}) { l.entry(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }

// Configured reports whether a feed URL is set.
func (c *Client) Configured() bool { return c.cfg.URL != "" }

// Fetch downloads the raw feed payload.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("vendor api returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read vendor api response: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	}).Debug("fetched vendor feed")
	return body, nil
}

// FetchDump fetches and maps the feed into an api-tagged dump.
func (c *Client) FetchDump(ctx context.Context, now time.Time) (offers.PriceDump, error) {
	body, err := c.Fetch(ctx)
	if err != nil {
		return offers.PriceDump{}, err
	}
	d, err := offers.MapVendorPayload(body, now)
	if err != nil {
		return offers.PriceDump{}, fmt.Errorf("map vendor payload: %w", err)
	}
	return d, nil
}
