package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

func TestUsage_RecentPerCredential(t *testing.T) {
	ledger := usage.NewLedger(0)
	ledger.Append("sk-a", usage.Entry{Timestamp: time.Now(), Model: "m1", Kind: "video_job"})
	ledger.Append("sk-a", usage.Entry{Timestamp: time.Now(), Model: "m2", Kind: "chat_completion"})
	ledger.Append("sk-b", usage.Entry{Timestamp: time.Now(), Model: "other", Kind: "video_job"})
	h := NewUsageHandler(ledger, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer sk-a")
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []usage.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	// most recent first
	assert.Equal(t, "m2", resp.Data[0].Model)
	assert.Equal(t, "m1", resp.Data[1].Model)
}

func TestUsage_EmptyLedger(t *testing.T) {
	h := NewUsageHandler(usage.NewLedger(0), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	req.Header.Set("X-API-Key", "sk-new")
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestUsage_RequiresCredential(t *testing.T) {
	h := NewUsageHandler(usage.NewLedger(0), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
