package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/internal/metrics"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// maxChatBodyBytes bounds the buffered request body; the body must be
// replayable across candidate endpoints.
const maxChatBodyBytes = 16 << 20 // 16 MB

// hop-by-hop or re-derived headers that must not be mirrored back.
var skippedResponseHeaders = map[string]struct{}{
	// dropping the encoding avoids double-decoding on the caller's side
	"Content-Encoding":  {},
	"Content-Length":    {},
	"Connection":        {},
	"Transfer-Encoding": {},
}

// ChatConfig holds chat proxy settings.
type ChatConfig struct {
	BaseURL string
	// Candidate chat endpoints, tried in order; the first that does not
	// answer 404 wins.
	Endpoints []string
}

// ChatHandler pipes chat-completion requests to the upstream and streams the
// response back unbuffered.
type ChatHandler struct {
	cfg     ChatConfig
	client  *http.Client
	ledger  *usage.Ledger
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewChatHandler creates the chat surface adapter. The HTTP client carries no
// overall timeout: streams live as long as the caller stays connected, and
// the request context propagates cancellation.
func NewChatHandler(cfg ChatConfig, ledger *usage.Ledger, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ChatHandler{
		cfg:     cfg,
		client:  &http.Client{},
		ledger:  ledger,
		metrics: collector,
		logger:  logger.With(zap.String("component", "chat_surface")),
	}
}

// HandleChat serves POST /v1/chat/completions. The caller's body is forwarded
// verbatim; upstream status and headers are mirrored and the byte stream is
// piped without buffering. A caller disconnect cancels the upstream request
// through the shared context.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBodyBytes))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidPayload, "failed to read request body").WithCause(err), h.logger)
		return
	}

	ctx := r.Context()
	var resp *http.Response
	attempts := 0
	for _, endpoint := range h.cfg.Endpoints {
		if ctx.Err() != nil {
			return
		}
		attempts++

		upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			continue
		}
		upstreamReq.Header = r.Header.Clone()
		upstreamReq.Header.Set("Authorization", "Bearer "+credential)

		candidateResp, err := h.client.Do(upstreamReq)
		if err != nil {
			h.logger.Debug("chat endpoint unreachable", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		if candidateResp.StatusCode == http.StatusNotFound {
			candidateResp.Body.Close()
			h.logger.Debug("chat endpoint not found", zap.String("endpoint", endpoint))
			continue
		}
		resp = candidateResp
		break
	}
	if h.metrics != nil {
		h.metrics.RecordProbe("chat", attempts)
	}
	if resp == nil {
		WriteError(w, types.NewError(types.ErrNoChatEndpoint, "no upstream chat endpoint available").WithRetryable(true), h.logger)
		return
	}
	defer resp.Body.Close()

	h.ledger.Append(credential, usage.Entry{
		Timestamp:     time.Now(),
		Model:         modelFromBody(body),
		PromptSummary: "",
		Path:          r.URL.Path,
		Kind:          "chat_completion",
	})

	for key, values := range resp.Header {
		if _, skip := skippedResponseHeaders[key]; skip {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	h.pipe(w, resp.Body)
}

// pipe streams the upstream body to the caller, flushing after each chunk so
// server-sent events arrive as they are produced.
func (h *ChatHandler) pipe(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Debug("chat stream ended", zap.Error(err))
			}
			return
		}
	}
}

// modelFromBody extracts the model field for the ledger without validating
// the rest of the payload, which passes through verbatim.
func modelFromBody(body []byte) string {
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Model
}
