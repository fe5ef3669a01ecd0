package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/assetpipe/internal/manifest"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

// maxSeedBytes bounds the size of a remote seed manifest
const maxSeedBytes = 10 * 1024 * 1024

// ErrSeedStatus indicates the seed server answered with a non-success status
var ErrSeedStatus = errors.New("unexpected seed response status")

// SeedLoader loads seed manifests from local files or over HTTP.
type SeedLoader struct {
	httpClient *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// SeedOption customises a SeedLoader.
type SeedOption func(*SeedLoader)

// WithBackOff replaces the exponential retry policy for remote seeds.
func WithBackOff(fn func() backoff.BackOff) SeedOption {
	return func(l *SeedLoader) {
		l.newBackOff = fn
	}
}

// WithHTTPClient replaces the caching HTTP client.
func WithHTTPClient(c *http.Client) SeedOption {
	return func(l *SeedLoader) {
		l.httpClient = c
	}
}

// NewSeedLoader creates a seed loader using a caching HTTP client for remote seeds
func NewSeedLoader(cfg Config, opts ...SeedOption) *SeedLoader {
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}

	l := &SeedLoader{
		httpClient: NewCachingHTTPClient(cfg.CacheDir, cfg.Timeout),
		maxTries:   maxTries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves ref into a files mapping. An empty ref is an empty seed, http
// and https refs are fetched, anything else is read from disk.
func (l *SeedLoader) Load(ctx context.Context, ref string) (*manifest.Files, error) {
	switch {
	case ref == "":
		return &manifest.Files{}, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	default:
		return manifest.LoadSeed(ref)
	}
}

func (l *SeedLoader) fetch(ctx context.Context, ref string) (*manifest.Files, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}

	// seeds without a recognisable extension are assumed to be JSON
	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ".json"
	}

	logger := zerolog.Ctx(ctx)
	m := telemetry.GetMetrics()

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		m.SeedFetchesTotal.Add(ctx, 1)
		return l.get(ctx, ref)
	},
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxTries(l.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.SeedFetchRetriesTotal.Add(ctx, 1)
			logger.Warn().Err(err).Str("url", ref).Dur("retry_in", next).Msg("Seed fetch failed, retrying")
		}),
	)
	if err != nil {
		m.SeedFetchErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to fetch seed %s: %w", ref, err)
	}

	logger.Debug().Str("url", ref).Int("bytes", len(data)).Msg("Fetched seed manifest")

	return manifest.ParseSeed(data, ext)
}

func (l *SeedLoader) get(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s", ErrSeedStatus, resp.Status)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrSeedStatus, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed body: %w", err)
	}
	return data, nil
}
