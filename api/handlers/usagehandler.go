package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// UsageHandler exposes the caller's recent usage entries.
type UsageHandler struct {
	ledger *usage.Ledger
	logger *zap.Logger
}

// NewUsageHandler creates the usage endpoint handler.
func NewUsageHandler(ledger *usage.Ledger, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		ledger: ledger,
		logger: logger.With(zap.String("component", "usage_surface")),
	}
}

// HandleRecent serves GET /v1/usage: the caller's entries, most recent first.
func (h *UsageHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	entries := h.ledger.Recent(credential)
	WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
}
