package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// JobKind selects which upstream create/poll route a job travels through.
type JobKind string

const (
	// JobKindMarket is the generic market task route.
	JobKindMarket JobKind = "market"
	// JobKindVendorVideo is the vendor-specific video task route.
	JobKindVendorVideo JobKind = "vendor-video"
	// JobKindImage is the image task route.
	JobKindImage JobKind = "image"
)

// Create routes are not contractually fixed per capability, so each kind
// carries an ordered candidate list probed via FirstSuccess; a 404 moves on to
// the next candidate, any other answer is authoritative.
var defaultCreatePaths = map[JobKind][]string{
	JobKindMarket:      {"/v1/jobs/create", "/api/v1/jobs/create"},
	JobKindVendorVideo: {"/vendor/v1/video/submit", "/api/vendor/v1/video/submit"},
	JobKindImage:       {"/v1/images/create", "/api/v1/images/create"},
}

var recordPaths = map[JobKind]string{
	JobKindMarket:      "/v1/jobs/record",
	JobKindVendorVideo: "/vendor/v1/video/record",
	JobKindImage:       "/v1/images/record",
}

// Upstream responses name the job identifier inconsistently across
// deployments; all of these are accepted, first match wins.
var jobIDKeys = []string{"task_id", "taskId", "id", "job_id", "jobId"}

// Config holds upstream client settings.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// CreatePaths overrides the candidate create routes per job kind; kinds
	// left out keep their defaults.
	CreatePaths map[JobKind][]string
}

// Client talks to the asynchronous job provider. It holds no job state:
// every read re-fetches the upstream record.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	cache  *PollCache
}

// NewClient creates an upstream client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	paths := make(map[JobKind][]string, len(defaultCreatePaths))
	for kind, candidates := range defaultCreatePaths {
		paths[kind] = candidates
	}
	for kind, candidates := range cfg.CreatePaths {
		if len(candidates) > 0 {
			paths[kind] = candidates
		}
	}
	cfg.CreatePaths = paths

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "upstream_client")),
	}
}

// WithPollCache enables short-lived coalescing of concurrent record fetches
// for the same job id. A zero TTL leaves every fetch going upstream.
func (c *Client) WithPollCache(ttl time.Duration) *Client {
	if ttl > 0 {
		c.cache = NewPollCache(ttl)
	}
	return c
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// HTTPClient exposes the timeout-bounded HTTP client for collaborators that
// share the upstream's transport discipline.
func (c *Client) HTTPClient() *http.Client { return c.client }

// createAnswer is one candidate route's authoritative response: any status
// except 404, body included so rejections carry the upstream's message.
type createAnswer struct {
	status int
	body   []byte
}

// CreateJob submits a job and returns the upstream-minted job id. The create
// route is probed across the kind's candidate paths: a 404 means the route
// does not exist at that path and the next candidate is tried; any other
// response is the upstream's answer and ends the probe.
func (c *Client) CreateJob(ctx context.Context, credential string, kind JobKind, model string, input map[string]any) (string, error) {
	body := map[string]any{"model": model, "input": input}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewError(types.ErrInvalidPayload, "failed to encode job input").WithCause(err)
	}

	_, answer, err := FirstSuccess(ctx, c.cfg.CreatePaths[kind], func(ctx context.Context, path string) (createAnswer, error) {
		return c.attemptCreate(ctx, credential, path, payload)
	}, c.logger)
	if err != nil {
		return "", err
	}

	if answer.status >= 400 {
		return "", types.NewError(types.ErrUpstreamRejected,
			fmt.Sprintf("job submission rejected: status=%d body=%s", answer.status, string(answer.body)))
	}

	var raw map[string]any
	if err := json.Unmarshal(answer.body, &raw); err != nil {
		return "", types.NewError(types.ErrUpstreamMalformed, "failed to decode job creation response").WithCause(err)
	}

	jobID := extractJobID(raw)
	if jobID == "" {
		return "", types.NewError(types.ErrUpstreamMalformed, "job creation response carries no job id")
	}

	c.logger.Info("job created",
		zap.String("job_id", jobID),
		zap.String("kind", string(kind)),
		zap.String("model", model),
	)
	return jobID, nil
}

func (c *Client) attemptCreate(ctx context.Context, credential, path string, payload []byte) (createAnswer, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return createAnswer{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return createAnswer{}, types.NewError(types.ErrUpstreamRejected, "job submission failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return createAnswer{}, types.NewError(types.ErrUpstreamRejected,
			fmt.Sprintf("no create route at %s", path))
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return createAnswer{}, types.NewError(types.ErrUpstreamRejected, "failed to read job creation response").WithCause(err)
	}
	return createAnswer{status: resp.StatusCode, body: buf}, nil
}

// FetchRecord fetches the raw upstream record for a job. When poll coalescing
// is enabled, concurrent fetches within the TTL share one round trip. The
// cache key carries the credential hash so coalescing never serves a record
// across credentials: each caller's credential is still authorized upstream.
func (c *Client) FetchRecord(ctx context.Context, credential string, kind JobKind, jobID string) (map[string]any, error) {
	if c.cache == nil {
		return c.fetchRecord(ctx, credential, kind, jobID)
	}
	key := usage.HashCredential(credential) + "/" + string(kind) + "/" + jobID
	return c.cache.Fetch(ctx, key, func(ctx context.Context) (map[string]any, error) {
		return c.fetchRecord(ctx, credential, kind, jobID)
	})
}

func (c *Client) fetchRecord(ctx context.Context, credential string, kind JobKind, jobID string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s%s?id=%s", c.cfg.BaseURL, recordPaths[kind], url.QueryEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamRejected, "record fetch failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrUpstreamRejected,
			fmt.Sprintf("record fetch rejected: status=%d body=%s", resp.StatusCode, string(errBody)))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, types.NewError(types.ErrUpstreamMalformed, "failed to decode job record").WithCause(err)
	}
	return raw, nil
}

// extractJobID probes the synonym keys at the top level and under the data
// envelope. Job creation must never silently default: callers treat an empty
// return as UPSTREAM_MALFORMED.
func extractJobID(raw map[string]any) string {
	for _, scope := range scopes(raw) {
		for _, key := range jobIDKeys {
			if s, ok := scope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
