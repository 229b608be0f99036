package snowstorm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
	"github.com/this-th/snomed-endoproc-lookup/pkg/config"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
	"github.com/this-th/snomed-endoproc-lookup/pkg/retry"
)

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 16 << 20

// Client talks to a Snowstorm terminology server. It implements
// providers.TerminologyProvider.
type Client struct {
	baseURL        string
	branch         string
	version        string
	acceptLanguage string
	httpClient     *http.Client
	retry          retry.Config
	metrics        *observability.Metrics
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records call counts and durations
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetry replaces the retry policy. Retryable is always set by the client
// and a zero MaxTotalTimeout falls back to the configured total timeout.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// Response is a raw upstream response, relayed verbatim by the proxy routes
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewClient creates a Snowstorm client from configuration
func NewClient(cfg *config.SnowstormConfig, opts ...Option) *Client {
	retryCfg := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	retryCfg.MaxTotalTimeout = cfg.TotalTimeout

	c := &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		branch:         cfg.Branch,
		version:        cfg.Version,
		acceptLanguage: cfg.AcceptLanguage,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: retryCfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxTotalTimeout <= 0 {
		c.retry.MaxTotalTimeout = cfg.TotalTimeout
	}
	c.retry.Retryable = isRetryable
	return c
}

// SearchEndpoint is the concept search URL without query parameters
func (c *Client) SearchEndpoint() string {
	return fmt.Sprintf("%s/%s/concepts", c.baseURL, c.branch)
}

// ConceptEndpoint is the browser URL of a concept without query parameters
func (c *Client) ConceptEndpoint(conceptID string) string {
	return fmt.Sprintf("%s/browser/%s/%s/concepts/%s", c.baseURL, c.branch, c.version, url.PathEscape(conceptID))
}

// SearchConcepts compiles params into ECL and fetches one page of matches
func (c *Client) SearchConcepts(ctx context.Context, params entities.SearchParams, offset, limit int) (*entities.SearchResult, error) {
	endpoint := ecl.SearchURL(c.SearchEndpoint(), params, offset, limit)

	observability.LoggerFromContext(ctx).Debug().
		Str("term", params.Term).
		Str("organ_system", params.OrganSystem).
		Str("procedure_method", params.ProcedureMethod).
		Str("ecl", ecl.Compile(params).String()).
		Str("endpoint", endpoint).
		Msg("Searching concepts")

	var body struct {
		Items  *[]entities.Concept `json:"items"`
		Total  int                 `json:"total"`
		Limit  int                 `json:"limit"`
		Offset int                 `json:"offset"`
	}
	if err := c.getJSON(ctx, "search", endpoint, &body); err != nil {
		return nil, err
	}
	if body.Items == nil {
		return nil, apperrors.NewParseError("search response has no items", nil)
	}

	return &entities.SearchResult{
		Items:  *body.Items,
		Total:  body.Total,
		Limit:  body.Limit,
		Offset: body.Offset,
	}, nil
}

// GetConcept fetches the browser view of a concept
func (c *Client) GetConcept(ctx context.Context, conceptID string) (*entities.ConceptDetail, error) {
	if !entities.IsValidConceptID(conceptID) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid concept id %q", conceptID))
	}
	endpoint := c.ConceptEndpoint(conceptID) + "?descendantCountForm=inferred"

	out := &entities.ConceptDetail{}
	if err := c.getJSON(ctx, "detail", endpoint, out); err != nil {
		return nil, err
	}
	if out.ConceptID == "" {
		return nil, apperrors.NewParseError("concept response has no conceptId", nil)
	}
	return out, nil
}

// GetParents fetches the inferred parents of a concept
func (c *Client) GetParents(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	return c.getRelatives(ctx, "parents", conceptID)
}

// GetChildren fetches the inferred children of a concept
func (c *Client) GetChildren(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	return c.getRelatives(ctx, "children", conceptID)
}

func (c *Client) getRelatives(ctx context.Context, relation, conceptID string) ([]entities.Concept, error) {
	if !entities.IsValidConceptID(conceptID) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid concept id %q", conceptID))
	}
	endpoint := c.ConceptEndpoint(conceptID) + "/" + relation + "?form=inferred"

	out := []entities.Concept{}
	if err := c.getJSON(ctx, relation, endpoint, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []entities.Concept{}
	}
	return out, nil
}

// Fetch issues a GET and returns the upstream response whatever its status.
// Only transport failures are returned as errors.
func (c *Client) Fetch(ctx context.Context, operation, endpoint string) (*Response, error) {
	ctx, span := observability.StartSpan(ctx, "snowstorm."+operation)
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("http.url", endpoint))

	start := time.Now()
	var resp *Response
	err := retry.DoWithLog(ctx, c.retry, func(ctx context.Context) error {
		var err error
		resp, err = c.fetchOnce(ctx, endpoint)
		if err != nil {
			return err
		}
		if isRetryableStatus(resp.StatusCode) {
			return upstreamError(resp.StatusCode, resp.Body)
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("Terminology call failed, retrying")
	})

	if err != nil && resp == nil {
		observability.RecordError(span, err)
		observability.RecordTerminologyCall(ctx, c.metrics, operation, string(apperrors.ErrorTypeTransport), time.Since(start))
		return nil, err
	}

	outcome := "ok"
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = string(apperrors.ErrorTypeUpstream)
	}
	observability.SetSpanAttributes(span, attribute.Int("http.status_code", resp.StatusCode))
	observability.RecordTerminologyCall(ctx, c.metrics, operation, outcome, time.Since(start))
	return resp, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.acceptLanguage != "" {
		httpReq.Header.Set("Accept-Language", c.acceptLanguage)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// The status alone is enough to report the failure.
			body = nil
		} else {
			return nil, transportError(err)
		}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out interface{}) error {
	resp, err := c.Fetch(ctx, operation, endpoint)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(resp.StatusCode, resp.Body)
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.NewParseError("invalid JSON from terminology server", err)
	}
	return nil
}
