// Package fetcher downloads config JSON documents from the CDN. It sends
// conditional requests with the last ETag, follows the redirect preferences
// embedded in the document and records fetch metrics.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/observability"
)

// CDN locations per data governance region.
const (
	GlobalBaseURL = "https://cdn-global.heimdall-flags.com"
	EUBaseURL     = "https://cdn-eu.heimdall-flags.com"
)

// Log event ids emitted by the fetcher.
const (
	EventFetchFailed       = 1100
	EventUnexpectedStatus  = 1101
	EventFetchTimeout      = 1103
	EventRedirectLoop      = 1104
	EventInvalidConfigJSON = 1105
	EventGovernanceHint    = 3002
)

// maxRedirects bounds the number of redirect hops followed by one Fetch.
const maxRedirects = 3

// DataGovernance selects the CDN region used when no custom base URL is set.
type DataGovernance int

const (
	Global DataGovernance = iota
	EU
)

// ParseDataGovernance maps "global" and "eu" (case-insensitive) to a region.
func ParseDataGovernance(s string) (DataGovernance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "global":
		return Global, nil
	case "eu":
		return EU, nil
	}
	return Global, fmt.Errorf("unknown data governance %q", s)
}

// BaseURL returns the CDN location of the region.
func (d DataGovernance) BaseURL() string {
	if d == EU {
		return EUBaseURL
	}
	return GlobalBaseURL
}

// Transport executes HTTP requests. *http.Client satisfies it; the request
// carries the context used for cancellation.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	SDKKey string
	// BaseURL overrides the data governance location. Redirect preferences
	// only move a custom URL when the document forces it.
	BaseURL        string
	DataGovernance DataGovernance
	// Mode is the single letter polling identifier ("a", "l" or "m").
	Mode    string
	Version string
	// Timeout bounds each HTTP request. Zero means no per-request limit.
	Timeout   time.Duration
	Transport Transport
	Logger    *slog.Logger
}

// Status is the outcome of a successful Fetch.
type Status int

const (
	// Fetched means a new document was downloaded.
	Fetched Status = iota
	// NotModified means the server confirmed the ETag is current.
	NotModified
)

// Response is the result of a successful Fetch.
type Response struct {
	Status Status
	// Entry holds the new document when Status is Fetched.
	Entry *cache.Entry
}

// Fetcher downloads config JSON for one SDK key. Fetch calls are expected to
// be serialized by the caller; the current base URL is still guarded.
type Fetcher struct {
	sdkKey    string
	customURL bool
	userAgent string
	timeout   time.Duration
	transport Transport
	logger    *slog.Logger

	mu      sync.Mutex
	baseURL string
}

// New creates a Fetcher. A nil Transport falls back to a dedicated http.Client.
func New(opts Options) *Fetcher {
	transport := opts.Transport
	if transport == nil {
		transport = &http.Client{}
	}

	baseURL := opts.DataGovernance.BaseURL()
	customURL := opts.BaseURL != ""
	if customURL {
		baseURL = opts.BaseURL
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	return &Fetcher{
		sdkKey:    opts.SDKKey,
		customURL: customURL,
		userAgent: fmt.Sprintf("Heimdall-Go/%s-%s", opts.Mode, version),
		timeout:   opts.Timeout,
		transport: transport,
		logger:    logger.OrDefault(opts.Logger),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the location the next request will be sent to.
func (f *Fetcher) BaseURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseURL
}

func (f *Fetcher) setBaseURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURL = strings.TrimRight(u, "/")
}

// Fetch downloads the document, sending etag as If-None-Match. Redirect
// preferences in the downloaded document may move the base URL and trigger a
// second request; after maxRedirects hops the last document is kept.
func (f *Fetcher) Fetch(ctx context.Context, etag string) (Response, error) {
	start := time.Now()
	resp, err := f.fetchWithRedirects(ctx, etag)
	observability.ConfigFetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		observability.ConfigFetchTotal.WithLabelValues("failed").Inc()
	case resp.Status == NotModified:
		observability.ConfigFetchTotal.WithLabelValues("not_modified").Inc()
	default:
		observability.ConfigFetchTotal.WithLabelValues("fetched").Inc()
	}
	return resp, err
}

func (f *Fetcher) fetchWithRedirects(ctx context.Context, etag string) (Response, error) {
	for hop := 0; ; hop++ {
		baseURL := f.BaseURL()
		resp, err := f.fetchOnce(ctx, baseURL, etag)
		if err != nil || resp.Status != Fetched {
			return resp, err
		}

		prefs := resp.Entry.Config.Preferences
		if prefs == nil || prefs.BaseURL == "" || strings.TrimRight(prefs.BaseURL, "/") == baseURL {
			return resp, nil
		}
		if f.customURL && prefs.Redirect != model.ForceRedirect {
			return resp, nil
		}

		f.setBaseURL(prefs.BaseURL)
		switch prefs.Redirect {
		case model.NoRedirect:
			return resp, nil
		case model.ShouldRedirect:
			f.logger.Warn("the configured data governance does not match the dashboard setting; "+
				"set it to the region of your config to avoid an extra request per download",
				slog.Int("event_id", EventGovernanceHint),
			)
		}

		if hop == maxRedirects {
			f.logger.Error("redirection loop encountered while fetching config JSON; keeping the last downloaded document",
				slog.Int("event_id", EventRedirectLoop),
				slog.String("base_url", baseURL),
			)
			return resp, nil
		}
	}
}

func (f *Fetcher) configURL(baseURL string) string {
	return fmt.Sprintf("%s/configuration-files/%s/config_v6.json", baseURL, f.sdkKey)
}

func (f *Fetcher) fetchOnce(ctx context.Context, baseURL, etag string) (Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	url := f.configURL(baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("X-Heimdall-UserAgent", f.userAgent)
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	httpResp, err := f.transport.Do(req)
	if err != nil {
		ferr := &FetchError{URL: url, Err: err}
		if isTimeout(err) {
			f.logger.Error("request timed out while fetching config JSON",
				slog.Int("event_id", EventFetchTimeout),
				slog.Duration("timeout", f.timeout),
			)
		} else {
			f.logger.Error("unexpected error while fetching config JSON",
				slog.Int("event_id", EventFetchFailed),
				slog.String("error", err.Error()),
			)
		}
		return Response{}, ferr
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			f.logger.Error("failed to read config JSON response",
				slog.Int("event_id", EventFetchFailed),
				slog.String("error", err.Error()),
			)
			return Response{}, &FetchError{URL: url, StatusCode: httpResp.StatusCode, Err: err}
		}
		cfg, err := model.Parse(body)
		if err != nil {
			f.logger.Error("fetch was successful but the config JSON is invalid",
				slog.Int("event_id", EventInvalidConfigJSON),
				slog.String("error", err.Error()),
			)
			return Response{}, &FetchError{URL: url, StatusCode: httpResp.StatusCode, Err: err}
		}
		entry := cache.NewEntry(string(body), cfg, httpResp.Header.Get("ETag"), time.Now())
		return Response{Status: Fetched, Entry: entry}, nil

	case http.StatusNotModified:
		return Response{Status: NotModified}, nil

	case http.StatusForbidden, http.StatusNotFound:
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, httpResp.Body)
		f.logger.Error("config JSON is not present at the requested location; check that the SDK key is correct",
			slog.Int("event_id", EventFetchFailed),
			slog.Int("status_code", httpResp.StatusCode),
		)
		return Response{}, &FetchError{URL: url, StatusCode: httpResp.StatusCode}

	default:
		_, _ = io.Copy(io.Discard, httpResp.Body)
		f.logger.Error("unexpected HTTP response while fetching config JSON",
			slog.Int("event_id", EventUnexpectedStatus),
			slog.Int("status_code", httpResp.StatusCode),
			slog.String("status", httpResp.Status),
		)
		return Response{}, &FetchError{URL: url, StatusCode: httpResp.StatusCode}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
