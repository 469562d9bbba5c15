package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/api"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/internal/metrics"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/media"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/upstream"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// vendorJobPrefix keys jobs created through the vendor-family route so status
// polls can pick the matching record-lookup path.
const vendorJobPrefix = "kw:"

const maxUploadBytes = 32 << 20 // 32 MB

// VideoJobsHandler serves the video-job surface.
type VideoJobsHandler struct {
	client   *upstream.Client
	ingester *media.Ingester
	ledger   *usage.Ledger
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewVideoJobsHandler creates the video-job surface adapter.
func NewVideoJobsHandler(client *upstream.Client, ingester *media.Ingester, ledger *usage.Ledger, collector *metrics.Collector, logger *zap.Logger) *VideoJobsHandler {
	return &VideoJobsHandler{
		client:   client,
		ingester: ingester,
		ledger:   ledger,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "video_jobs_surface")),
	}
}

// classifyModel maps the requested model onto an upstream route and size
// tier. Vendor-family models carry the kw- prefix; everything else rides the
// generic market route. Each family has a std and a pro tier.
func classifyModel(model string) (upstream.JobKind, string) {
	kind := upstream.JobKindMarket
	if strings.HasPrefix(model, "kw-") {
		kind = upstream.JobKindVendorVideo
	}
	tier := "std"
	if strings.Contains(model, "pro") {
		tier = "pro"
	}
	return kind, tier
}

// HandleCreate serves POST /v1/jobs. The body may be JSON or, when a file is
// attached, multipart form data.
func (h *VideoJobsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	req, fileBuf, fileName, err := h.parseCreateRequest(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if req.Prompt == "" {
		WriteError(w, types.NewError(types.ErrInvalidPayload, "prompt is required"), h.logger)
		return
	}

	kind, tier := classifyModel(req.Model)
	input := map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": NormalizeAspectRatio(req.Size),
		"tier":         tier,
	}
	if req.Seconds != "" {
		input["duration"] = req.Seconds
	}
	if req.Resolution != "" {
		input["resolution"] = req.Resolution
	}

	mediaCount := 0
	if len(fileBuf) > 0 {
		hostedURL, err := h.ingester.Ingest(r.Context(), credential, fileBuf, fileName, "")
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		input["image_url"] = hostedURL
		mediaCount = 1
		if h.metrics != nil {
			h.metrics.RecordIngestion(media.Sniff(fileBuf, ""), len(fileBuf))
		}
	}

	jobID, err := h.client.CreateJob(r.Context(), credential, kind, req.Model, input)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordJobSubmission("video_jobs", string(kind), "error")
		}
		WriteError(w, err, h.logger)
		return
	}

	id := jobID
	if kind == upstream.JobKindVendorVideo {
		id = vendorJobPrefix + jobID
	}

	h.ledger.Append(credential, usage.Entry{
		Timestamp:     time.Now(),
		Model:         req.Model,
		PromptSummary: usage.Summarize(req.Prompt),
		MediaCount:    mediaCount,
		Path:          r.URL.Path,
		Kind:          "video_job",
	})
	if h.metrics != nil {
		h.metrics.RecordJobSubmission("video_jobs", string(kind), "ok")
	}

	WriteJSON(w, http.StatusOK, api.CreateJobResponse{
		ID:     id,
		TaskID: id,
		Status: "processing",
	})
}

// HandleStatus serves GET /v1/jobs/{id}. Exactly one upstream poll per call.
func (h *VideoJobsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidPayload, "job id is required"), h.logger)
		return
	}

	kind := upstream.JobKindMarket
	upstreamID := id
	if trimmed := strings.TrimPrefix(id, vendorJobPrefix); trimmed != id {
		kind = upstream.JobKindVendorVideo
		upstreamID = trimmed
	}

	raw, err := h.client.FetchRecord(r.Context(), credential, kind, upstreamID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	status := upstream.Normalize(raw)
	if h.metrics != nil {
		h.metrics.RecordJobPoll(string(kind), string(status))
	}

	resp := api.JobStatusResponse{ID: id}
	switch status {
	case upstream.StatusCompleted:
		resp.Status = "completed"
		resp.Progress = 100
		if u := upstream.FirstResultURL(raw); u != "" {
			resp.VideoURL = &u
		}
	case upstream.StatusFailed:
		resp.Status = "failed"
		resp.Progress = 100
	default:
		resp.Status = "processing"
		resp.Progress = recordProgress(raw)
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (h *VideoJobsHandler) parseCreateRequest(r *http.Request) (api.CreateJobRequest, []byte, string, error) {
	var req api.CreateJobRequest

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := DecodeJSONBody(r, &req); err != nil {
			return req, nil, "", err
		}
		return req, nil, "", nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, nil, "", types.NewError(types.ErrInvalidPayload, "malformed multipart body").WithCause(err)
	}
	req.Model = r.FormValue("model")
	req.Prompt = r.FormValue("prompt")
	req.Seconds = r.FormValue("seconds")
	req.Size = r.FormValue("size")
	req.Resolution = r.FormValue("resolution")

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return req, nil, "", nil
	}
	if err != nil {
		return req, nil, "", types.NewError(types.ErrInvalidPayload, "malformed file attachment").WithCause(err)
	}
	defer file.Close()

	buf, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return req, nil, "", types.NewError(types.ErrInvalidPayload, "failed to read file attachment").WithCause(err)
	}
	return req, buf, header.Filename, nil
}

// recordProgress extracts an in-flight progress figure when the upstream
// reports one; absent that the job simply shows zero.
func recordProgress(raw map[string]any) int {
	scopesToCheck := []map[string]any{raw}
	if data, ok := raw["data"].(map[string]any); ok {
		scopesToCheck = append(scopesToCheck, data)
	}
	for _, scope := range scopesToCheck {
		if f, ok := scope["progress"].(float64); ok && f >= 0 && f <= 100 {
			return int(f)
		}
	}
	return 0
}
