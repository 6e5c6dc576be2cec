// Package collyfetcher implements race.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/metrics"
	"github.com/horsie/harvester/internal/race"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultBaseURL        = "https://en.netkeiba.com"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultTimeout        = 10 * time.Second
	DefaultMinBodyBytes   = 5000
	DefaultMarker         = "Field"
)

// Config controls collector behavior and outcome classification.
type Config struct {
	BaseURL        string
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Timeout        time.Duration
	// A body shorter than MinBodyBytes that lacks Marker is classified as empty.
	MinBodyBytes int
	Marker       string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Accept == "" {
		c.Accept = DefaultAccept
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = DefaultAcceptLanguage
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MinBodyBytes <= 0 {
		c.MinBodyBytes = DefaultMinBodyBytes
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	return c
}

// Waiter paces outbound requests. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements race.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       Waiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.UserAgent(cfg.UserAgent))
	// Clones share the backend, so transport and timeout are set once here.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// EntriesURL is the entry-list page for id.
func (f *Fetcher) EntriesURL(id race.CandidateID) string {
	return id.EntriesURL(f.cfg.BaseURL)
}

// Fetch executes a single HTTP GET for id. It never retries and never returns an error:
// every failure mode is folded into the outcome.
func (f *Fetcher) Fetch(ctx context.Context, id race.CandidateID) race.Outcome {
	target := f.EntriesURL(id)
	start := time.Now()
	outcome := f.fetch(ctx, target)
	outcome.URL = target
	outcome.Duration = time.Since(start)

	metrics.ObserveFetch(string(outcome.Kind), outcome.Duration)
	if outcome.Kind == race.OutcomeError {
		f.logger.Debug("candidate fetch failed",
			zap.String("race_id", string(id)),
			zap.Int("status_code", outcome.StatusCode),
			zap.String("reason", outcome.Reason),
		)
	}
	return outcome
}

func (f *Fetcher) fetch(ctx context.Context, target string) race.Outcome {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target); err != nil {
			return errorOutcome(0, err)
		}
	}

	var (
		resp     fetchedPage
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, &resp, &fetchErr)

	if err := runCollector(ctx, collector, target); err != nil {
		return errorOutcome(0, err)
	}
	if fetchErr != nil {
		return errorOutcome(resp.statusCode, fetchErr)
	}
	return classify(resp.statusCode, resp.body, f.cfg.MinBodyBytes, f.cfg.Marker)
}

type fetchedPage struct {
	statusCode int
	body       []byte
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, page *fetchedPage, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", f.cfg.Accept)
		r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
	})

	hooks.OnResponse(func(r *colly.Response) {
		page.statusCode = r.StatusCode
		page.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.statusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// classify maps a completed response onto the tri-state outcome.
func classify(statusCode int, body []byte, minBodyBytes int, marker string) race.Outcome {
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return race.Outcome{
			Kind:       race.OutcomeError,
			StatusCode: statusCode,
			Reason:     fmt.Sprintf("unexpected status %d", statusCode),
		}
	}
	if len(body) < minBodyBytes && !bytes.Contains(body, []byte(marker)) {
		return race.Outcome{Kind: race.OutcomeEmpty, StatusCode: statusCode}
	}
	return race.Outcome{Kind: race.OutcomeSuccess, StatusCode: statusCode, Document: body}
}

func errorOutcome(statusCode int, err error) race.Outcome {
	return race.Outcome{Kind: race.OutcomeError, StatusCode: statusCode, Reason: err.Error()}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
