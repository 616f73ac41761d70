// Package catalog fetches product listing pages from the storefront backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the catalog client settings.
type Config struct {
	Name           string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client is the HTTP PageFetcher for the catalog listing endpoints.
type Client struct {
	name           string
	baseURL        string
	client         *http.Client
	transformer    domain.Transformer
	cb             *gobreaker.CircuitBreaker
	maxRetries     uint64
	initialBackoff time.Duration
}

var _ domain.PageFetcher = (*Client)(nil)

// statusError is a non-success response from the catalog.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog returned status %d", e.code)
}

func NewClient(cfg Config, transformer domain.Transformer) *Client {
	name := cfg.Name
	if name == "" {
		name = "catalog"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	cbSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if we have 3 consecutive failures
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	}

	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		transformer:    transformer,
		cb:             gobreaker.NewCircuitBreaker(cbSettings),
		maxRetries:     uint64(retries),
		initialBackoff: initial,
	}
}

// countsAsHealthy keeps caller cancellations and 4xx responses out of the
// breaker's failure count; only the catalog's own faults trip it.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code < 500
	}
	return false
}

func (c *Client) GetName() string {
	return c.name
}

// PageURL builds the listing URL of a zero-based page. The catalog numbers
// pages from 1.
func (c *Client) PageURL(filter domain.Filter, page, pageSize int) (string, error) {
	path, err := listingPath(filter)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page+1))
	q.Set("size", strconv.Itoa(pageSize))
	if filter.Query != "" {
		q.Set("keyword", filter.Query)
	}
	return c.baseURL + path + "?" + q.Encode(), nil
}

func listingPath(filter domain.Filter) (string, error) {
	if err := filter.Validate(); err != nil {
		return "", err
	}

	head, productCategory, _ := strings.Cut(filter.Category, "/")
	var path string
	switch head {
	case domain.CategoryMain:
		return "/product/main", nil
	case domain.CategoryAll, domain.CategorySummer, domain.CategoryWinter:
		path = "/product/season/" + strings.ToLower(head)
	default:
		path = "/product/" + strings.ToLower(head) + "/" + url.PathEscape(productCategory)
	}
	if filter.Sort != "" {
		path += "/" + url.PathEscape(string(filter.Sort))
	}
	return path, nil
}

// FetchPage fetches one page of the filter's listing. A 404 is an empty page.
// Network errors and 5xx responses are retried with exponential backoff;
// other statuses fail immediately.
func (c *Client) FetchPage(ctx context.Context, filter domain.Filter, page, pageSize int) ([]domain.Product, error) {
	tr := otel.Tracer("storefront-feed")
	ctx, span := tr.Start(ctx, "catalog.FetchPage", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("catalog", c.name),
		attribute.String("category", filter.Category),
		attribute.Int("page", page),
	)

	pageURL, err := c.PageURL(filter, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	products, err := c.fetch(ctx, pageURL, filter.Category, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now().UTC()
	for i := range products {
		products[i].Category = filter.Category
		products[i].FetchedAt = now
		products[i].ContentHash = products[i].ComputeHash()
	}
	span.SetAttributes(attribute.Int("products", len(products)))
	return products, nil
}

func (c *Client) fetch(ctx context.Context, pageURL, category string, page int) ([]domain.Product, error) {
	// Execute with Circuit Breaker and Retries
	result, err := c.cb.Execute(func() (interface{}, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.initialBackoff
		b.MaxElapsedTime = 0
		policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

		var body io.ReadCloser
		op := func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			if reqErr != nil {
				return backoff.Permanent(fmt.Errorf("failed to create request: %w", reqErr))
			}

			resp, respErr := c.client.Do(req)
			if respErr != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(respErr)
				}
				return respErr
			}

			switch {
			case resp.StatusCode == http.StatusOK:
				body = resp.Body
				return nil
			case resp.StatusCode == http.StatusNotFound:
				closeBody(resp.Body)
				return nil
			case resp.StatusCode >= 500:
				closeBody(resp.Body)
				return &statusError{code: resp.StatusCode}
			default:
				closeBody(resp.Body)
				// Don't retry on 4xx (client error), just fail
				return backoff.Permanent(&statusError{code: resp.StatusCode})
			}
		}
		notify := func(err error, wait time.Duration) {
			metrics.CatalogRetries.WithLabelValues(category).Inc()
			slog.Info("Retrying request", "catalog", c.name, "page", page, "error", err, "wait", wait)
		}

		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("catalog %s unavailable: %w", c.name, err)
		}
		return nil, fmt.Errorf("catalog %s page %d: %w", c.name, page, err)
	}

	body, _ := result.(io.ReadCloser)
	if body == nil {
		slog.Debug("Catalog page not found, treating as empty", "catalog", c.name, "url", pageURL)
		return []domain.Product{}, nil
	}
	defer closeBody(body)

	products, err := c.transformer.Transform(body)
	if err != nil {
		return nil, fmt.Errorf("failed to transform products from %s: %w", c.name, err)
	}
	return products, nil
}

// Ping checks that the catalog answers at all; any non-5xx status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/product/main?page=1&size=1", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	closeBody(resp.Body)
	if resp.StatusCode >= 500 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// BreakerState exposes the circuit breaker state for readiness reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}
