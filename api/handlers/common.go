// Package handlers implements the surface adapters: each handler translates
// one caller-facing request shape into upstream job submissions and shapes
// upstream records back into the surface's expected response.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/api"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the generic error envelope for a gateway error. Errors
// outside the taxonomy are reported as a generic internal failure so upstream
// URLs and credentials never leak to callers.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	code := types.GetErrorCode(err)
	message := err.Error()
	if code == "" {
		code = types.ErrInternalError
		message = "internal error"
	}

	status := types.HTTPStatusFor(code)
	if e, ok := err.(*types.Error); ok && e.HTTPStatus != 0 {
		status = e.HTTPStatus
	}

	if logger != nil {
		logger.Error("surface error",
			zap.String("code", string(code)),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	WriteJSON(w, status, api.ErrorResponse{Error: api.ErrorDetail{
		Code:    string(code),
		Message: message,
	}})
}

// Credential extracts the caller's bearer credential. Absence is a caller
// error reported before any upstream call. The query parameter is only
// honored on surfaces that opt in (multimodal compatibility).
func Credential(r *http.Request, allowQuery bool) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token := strings.TrimPrefix(auth, "Bearer "); token != auth && token != "" {
			return token, nil
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, nil
	}
	if allowQuery {
		if key := r.URL.Query().Get("key"); key != "" {
			return key, nil
		}
	}
	return "", types.NewError(types.ErrMissingCredential, "no credential supplied")
}

// DecodeJSONBody decodes the request body into dst, reporting INVALID_PAYLOAD
// on malformed input.
func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.NewError(types.ErrInvalidPayload, "malformed request body").WithCause(err)
	}
	return nil
}

// aspectRatios is the fixed enumeration accepted by the video surfaces.
var aspectRatios = map[string]struct{}{
	"16:9": {},
	"9:16": {},
	"1:1":  {},
	"4:3":  {},
	"3:4":  {},
	"Auto": {},
}

// NormalizeAspectRatio maps caller input onto the fixed enumeration,
// defaulting to 16:9 for anything unrecognized.
func NormalizeAspectRatio(s string) string {
	if _, ok := aspectRatios[s]; ok {
		return s
	}
	return "16:9"
}
