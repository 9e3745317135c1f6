package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storesync/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	MaxPageSize        = 250
	accessTokenHeader  = "X-Shopify-Access-Token"
	maxErrorBodyLength = 512
)

// PageRequest describes one page read. SinceID is the cursor: the external
// id of the last record of the previous page.
type PageRequest struct {
	Domain       string
	Credential   string
	EntityType   EntityType
	Limit        int
	SinceID      string
	UpdatedSince *time.Time
}

type Client struct {
	http       *http.Client
	apiVersion string
	baseURL    string
	log        *zap.Logger
	tracer     trace.Tracer
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Source.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiVersion := strings.TrimSpace(cfg.Source.APIVersion)
	if apiVersion == "" {
		apiVersion = "2024-01"
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		apiVersion: apiVersion,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.Source.BaseURL), "/"),
		log:        log.Named("source.client"),
		tracer:     otel.Tracer("storesync/source"),
	}
}

// FetchPage returns the raw records of one page in source order. An empty
// slice means there is nothing left to read.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]json.RawMessage, error) {
	if _, err := ParseEntityType(string(req.EntityType)); err != nil {
		return nil, err
	}
	if req.Limit <= 0 || req.Limit > MaxPageSize {
		req.Limit = MaxPageSize
	}

	endpoint, err := c.pageURL(req)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "source.fetch_page", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("entity_type", string(req.EntityType)),
		attribute.Int("page.limit", req.Limit),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(accessTokenHeader, req.Credential)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("fetch %s page: %w", req.EntityType, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug("source page fetched",
		zap.String("entity_type", string(req.EntityType)),
		zap.String("since_id", req.SinceID),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		span.SetStatus(codes.Error, "rate limited")
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "upstream error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	rawItems, ok := envelope[string(req.EntityType)]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", ErrMalformedPage, req.EntityType)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	span.SetAttributes(attribute.Int("page.records", len(items)))
	return items, nil
}

func (c *Client) pageURL(req PageRequest) (string, error) {
	base := c.baseURL
	if base == "" {
		domain, err := NormalizeShopDomain(req.Domain)
		if err != nil {
			return "", err
		}
		base = "https://" + domain
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(req.Limit))
	if req.SinceID != "" {
		query.Set("since_id", req.SinceID)
	}
	if req.UpdatedSince != nil {
		query.Set("updated_at_min", req.UpdatedSince.UTC().Format(time.RFC3339))
	}

	return fmt.Sprintf("%s/admin/api/%s/%s.json?%s", base, c.apiVersion, req.EntityType, query.Encode()), nil
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
