package seedevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/okian/leadscore/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Client is a thin JSON client for the leadscore API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// do sends body (when non-nil) as JSON and decodes a reply with one of the
// accepted statuses into out (when non-nil). It returns the status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	for _, code := range accept {
		if resp.StatusCode != code {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("parse response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// UpsertCompany posts a company profile.
func (c *Client) UpsertCompany(ctx context.Context, co Company) error {
	_, err := c.do(ctx, http.MethodPost, "/companies", co, nil, http.StatusOK)
	return err
}

// PostEvent ingests one signal.
func (c *Client) PostEvent(ctx context.Context, e Event) (AckResponse, error) {
	var ack AckResponse
	_, err := c.do(ctx, http.MethodPost, "/events", e, &ack, http.StatusAccepted, http.StatusOK)
	return ack, err
}

// RunNightly triggers a scoring run for asOf.
func (c *Client) RunNightly(ctx context.Context, asOf string) (NightlySummary, error) {
	var sum NightlySummary
	_, err := c.do(ctx, http.MethodPost, "/nightly", map[string]string{"as_of": asOf}, &sum, http.StatusOK)
	return sum, err
}

// Leaderboard fetches the top limit entries.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?limit=%d", limit), nil, &entries, http.StatusOK)
	return entries, err
}

// Rank fetches one company's leaderboard row.
func (c *Client) Rank(ctx context.Context, companyID string) (Entry, error) {
	var e Entry
	_, err := c.do(ctx, http.MethodGet, "/rank/"+url.PathEscape(companyID), nil, &e, http.StatusOK)
	return e, err
}

// submitCompanies posts every company with a bounded number of workers.
// Individual failures are counted, not returned.
func submitCompanies(ctx context.Context, cfg *Config, client *Client, companies []Company, stats *Stats) error {
	logger.Get().Info(ctx, "submitting companies", logger.Int("count", len(companies)), logger.Int("workers", cfg.Workers))

	var created, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, co := range companies {
		g.Go(func() error {
			if err := client.UpsertCompany(gctx, co); err != nil {
				atomic.AddInt64(&failed, 1)
				if cfg.Verbose {
					logger.Get().Warn(gctx, "company upsert failed", logger.String("company", co.ID), logger.Error(err))
				}
				return nil
			}
			atomic.AddInt64(&created, 1)
			return nil
		})
	}
	err := g.Wait()

	stats.CompaniesCreated = int(created)
	stats.CompaniesFailed = int(failed)
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// submitEvents posts every event with a bounded number of workers and tallies
// accepted, duplicate and failed submissions.
func submitEvents(ctx context.Context, cfg *Config, client *Client, events []Event, stats *Stats) error {
	logger.Get().Info(ctx, "submitting events", logger.Int("count", len(events)), logger.Int("workers", cfg.Workers))

	var accepted, duplicate, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, e := range events {
		g.Go(func() error {
			ack, err := client.PostEvent(gctx, e)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				if cfg.Verbose {
					logger.Get().Warn(gctx, "event submission failed", logger.String("event", e.EventID), logger.Error(err))
				}
			case ack.Duplicate:
				atomic.AddInt64(&duplicate, 1)
			default:
				atomic.AddInt64(&accepted, 1)
			}
			return nil
		})
	}
	err := g.Wait()

	stats.EventsAccepted = int(accepted)
	stats.EventsDuplicate = int(duplicate)
	stats.EventsFailed = int(failed)
	logger.Get().Info(ctx, "event submission completed",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed))
	if err == nil {
		err = ctx.Err()
	}
	return err
}
