package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/api"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

func newChatHandler(t *testing.T, mux *http.ServeMux, endpoints []string) (*ChatHandler, *usage.Ledger, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	ledger := usage.NewLedger(0)
	h := NewChatHandler(ChatConfig{BaseURL: srv.URL, Endpoints: endpoints}, ledger, nil, zap.NewNop())
	return h, ledger, srv
}

func chatRequest(h *ChatHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer sk-chat")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)
	return rec
}

func TestChat_FirstNonNotFoundEndpointWins(t *testing.T) {
	mux := http.NewServeMux()
	var hits []string
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "/v1/chat/completions")
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "/api/v1/chat")
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"model":"gpt-x","messages":[]}`, string(body), "body replayed verbatim")
		assert.Equal(t, "Bearer sk-chat", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1"}`))
	})
	h, ledger, _ := newChatHandler(t, mux, []string{"/v1/chat/completions", "/api/v1/chat"})

	rec := chatRequest(h, `{"model":"gpt-x","messages":[]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"/v1/chat/completions", "/api/v1/chat"}, hits)
	assert.JSONEq(t, `{"id":"chatcmpl-1"}`, rec.Body.String())

	entries := ledger.Recent("sk-chat")
	require.Len(t, entries, 1)
	assert.Equal(t, "gpt-x", entries[0].Model)
	assert.Equal(t, "chat_completion", entries[0].Kind)
}

func TestChat_UpstreamErrorStatusIsMirroredNotSkipped(t *testing.T) {
	mux := http.NewServeMux()
	secondCalled := false
	mux.HandleFunc("POST /a", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	})
	mux.HandleFunc("POST /b", func(w http.ResponseWriter, r *http.Request) {
		secondCalled = true
	})
	h, _, _ := newChatHandler(t, mux, []string{"/a", "/b"})

	rec := chatRequest(h, `{}`)

	// only 404 means "try the next endpoint"; a 429 is a real answer
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, secondCalled)
	assert.JSONEq(t, `{"error":"slow down"}`, rec.Body.String())
}

func TestChat_StreamHeadersMirroredMinusEncoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Request-Id", "up-1")
		w.Header().Set("Content-Encoding", "identity")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"data: one\n\n", "data: two\n\n", "data: [DONE]\n\n"} {
			io.WriteString(w, chunk)
			flusher.Flush()
		}
	})
	h, _, _ := newChatHandler(t, mux, []string{"/a"})

	rec := chatRequest(h, `{"stream":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "up-1", rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Body.String(), "data: one\n\n")
	assert.Contains(t, rec.Body.String(), "data: [DONE]\n\n")
	assert.True(t, rec.Flushed)
}

func TestChat_AllEndpointsNotFound(t *testing.T) {
	mux := http.NewServeMux() // every path answers 404
	h, ledger, _ := newChatHandler(t, mux, []string{"/a", "/b", "/c"})

	rec := chatRequest(h, `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NO_CHAT_ENDPOINT", resp.Error.Code)
	assert.Empty(t, ledger.Recent("sk-chat"), "failed probes are not recorded as usage")
}

func TestChat_MissingCredential(t *testing.T) {
	h, _, _ := newChatHandler(t, http.NewServeMux(), []string{"/a"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
