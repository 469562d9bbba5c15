package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/upstream"
)

// Upload responses name the hosted URL inconsistently; all of these are
// accepted, first match wins, top level and data envelope both probed.
var hostedURLKeys = []string{"url", "file_url", "fileUrl", "download_url", "downloadUrl", "path"}

var mimeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Config holds ingester settings.
type Config struct {
	BaseURL string
	// Candidate upload endpoints, tried in order
	Endpoints      []string
	RequestTimeout time.Duration
}

// Ingester uploads binary payloads to the upstream and returns hosted URLs.
// The upstream keeps the durable copy; nothing is retained locally.
type Ingester struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewIngester creates a media ingester.
func NewIngester(cfg Config, logger *zap.Logger) *Ingester {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Ingester{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "media_ingester")),
	}
}

// Ingest uploads buf and returns its externally reachable URL. The MIME type
// is sniffed when mimeHint is empty. Fails with INVALID_PAYLOAD on an empty
// buffer before any upstream call, and with INGESTION_FAILED only once every
// candidate endpoint has been exhausted.
func (g *Ingester) Ingest(ctx context.Context, credential string, buf []byte, filename, mimeHint string) (string, error) {
	if len(buf) == 0 {
		return "", types.NewError(types.ErrInvalidPayload, "empty media payload")
	}

	mimeType := Sniff(buf, mimeHint)
	if filename == "" {
		filename = uuid.NewString() + extensionFor(mimeType)
	}

	idx, hostedURL, err := upstream.FirstSuccess(ctx, g.cfg.Endpoints, func(ctx context.Context, endpoint string) (string, error) {
		return g.upload(ctx, credential, endpoint, buf, filename, mimeType)
	}, g.logger)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrNoCandidateAvailable {
			return "", types.NewError(types.ErrIngestionFailed, "every upload endpoint failed").
				WithCause(err).WithRetryable(true)
		}
		return "", err
	}

	g.logger.Info("media ingested",
		zap.String("mime", mimeType),
		zap.Int("bytes", len(buf)),
		zap.Int("endpoint_index", idx),
	)
	return hostedURL, nil
}

func (g *Ingester) upload(ctx context.Context, credential, endpoint string, buf []byte, filename, mimeType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(buf); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload rejected: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	hostedURL := extractHostedURL(raw)
	if hostedURL == "" {
		return "", fmt.Errorf("upload response carries no hosted url")
	}
	return hostedURL, nil
}

func extractHostedURL(raw map[string]any) string {
	scopes := []map[string]any{raw}
	if data, ok := raw["data"].(map[string]any); ok {
		scopes = append(scopes, data)
	}
	for _, scope := range scopes {
		for _, key := range hostedURLKeys {
			if s, ok := scope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func extensionFor(mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
