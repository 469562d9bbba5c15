package handlers

import (
	"encoding/base64"
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

// vendorModel is the one downstream job type both vendor operations map to;
// text-seed and image-seed differ only by the presence of an image URL.
const vendorModel = "kw-video-v1"

// imageSeedAspectRatio is fixed for image-seeded tasks. The upstream contract
// for the image-seeded task type takes no ratio parameter, so caller input is
// ignored rather than rejected.
const imageSeedAspectRatio = "16:9"

// VendorHandler serves the vendor text/image-to-video surface.
type VendorHandler struct {
	client   *upstream.Client
	ingester *media.Ingester
	ledger   *usage.Ledger
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewVendorHandler creates the vendor surface adapter.
func NewVendorHandler(client *upstream.Client, ingester *media.Ingester, ledger *usage.Ledger, collector *metrics.Collector, logger *zap.Logger) *VendorHandler {
	return &VendorHandler{
		client:   client,
		ingester: ingester,
		ledger:   ledger,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "vendor_surface")),
	}
}

// writeVendorError reports a failure in the vendor envelope. The vendor
// protocol carries errors in-band with a non-zero code.
func (h *VendorHandler) writeVendorError(w http.ResponseWriter, err error) {
	code := types.GetErrorCode(err)
	message := err.Error()
	if code == "" {
		code = types.ErrInternalError
		message = "internal error"
	}
	h.logger.Error("vendor surface error", zap.String("code", string(code)), zap.Error(err))

	WriteJSON(w, types.HTTPStatusFor(code), api.VendorResponse{
		Code:    1,
		Message: message,
	})
}

// HandleText2Video serves POST /vendor/v1/text2video.
func (h *VendorHandler) HandleText2Video(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		h.writeVendorError(w, err)
		return
	}

	var req api.VendorText2VideoRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		h.writeVendorError(w, err)
		return
	}
	if req.Prompt == "" {
		h.writeVendorError(w, types.NewError(types.ErrInvalidPayload, "prompt is required"))
		return
	}

	input := map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": NormalizeAspectRatio(req.AspectRatio),
	}
	if req.Duration != "" {
		input["duration"] = req.Duration
	}

	h.submit(w, r, credential, req.Prompt, input, 0)
}

// HandleImage2Video serves POST /vendor/v1/image2video. The image is ingested
// first; its hosted URL seeds the job.
func (h *VendorHandler) HandleImage2Video(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		h.writeVendorError(w, err)
		return
	}

	var req api.VendorImage2VideoRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		h.writeVendorError(w, err)
		return
	}
	if req.Prompt == "" {
		h.writeVendorError(w, types.NewError(types.ErrInvalidPayload, "prompt is required"))
		return
	}

	buf, err := decodeBase64Image(req.Image)
	if err != nil {
		h.writeVendorError(w, err)
		return
	}

	hostedURL, err := h.ingester.Ingest(r.Context(), credential, buf, "", "")
	if err != nil {
		h.writeVendorError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordIngestion(media.Sniff(buf, ""), len(buf))
	}

	input := map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": imageSeedAspectRatio,
		"image_url":    hostedURL,
	}
	if req.Duration != "" {
		input["duration"] = req.Duration
	}

	h.submit(w, r, credential, req.Prompt, input, 1)
}

// HandlePoll serves GET /vendor/v1/videos/{id}. Exactly one upstream poll.
func (h *VendorHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	credential, err := Credential(r, false)
	if err != nil {
		h.writeVendorError(w, err)
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		h.writeVendorError(w, types.NewError(types.ErrInvalidPayload, "task id is required"))
		return
	}

	raw, err := h.client.FetchRecord(r.Context(), credential, upstream.JobKindVendorVideo, taskID)
	if err != nil {
		h.writeVendorError(w, err)
		return
	}

	status := upstream.Normalize(raw)
	if h.metrics != nil {
		h.metrics.RecordJobPoll(string(upstream.JobKindVendorVideo), string(status))
	}

	data := &api.VendorData{TaskID: taskID}
	switch status {
	case upstream.StatusCompleted:
		data.TaskStatus = "succeed"
		var videos []api.VendorVideo
		for _, u := range upstream.ResultURLs(raw) {
			videos = append(videos, api.VendorVideo{URL: u})
		}
		data.TaskResult = &api.VendorTaskResult{Videos: videos}
	case upstream.StatusFailed:
		data.TaskStatus = "failed"
		data.TaskStatusMsg = upstream.ErrorMessage(raw)
	default:
		data.TaskStatus = "processing"
	}

	WriteJSON(w, http.StatusOK, api.VendorResponse{Code: 0, Data: data})
}

func (h *VendorHandler) submit(w http.ResponseWriter, r *http.Request, credential, prompt string, input map[string]any, mediaCount int) {
	jobID, err := h.client.CreateJob(r.Context(), credential, upstream.JobKindVendorVideo, vendorModel, input)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordJobSubmission("vendor", string(upstream.JobKindVendorVideo), "error")
		}
		h.writeVendorError(w, err)
		return
	}

	h.ledger.Append(credential, usage.Entry{
		Timestamp:     time.Now(),
		Model:         vendorModel,
		PromptSummary: usage.Summarize(prompt),
		MediaCount:    mediaCount,
		Path:          r.URL.Path,
		Kind:          "vendor_video",
	})
	if h.metrics != nil {
		h.metrics.RecordJobSubmission("vendor", string(upstream.JobKindVendorVideo), "ok")
	}

	WriteJSON(w, http.StatusOK, api.VendorResponse{
		Code: 0,
		Data: &api.VendorData{TaskID: jobID},
	})
}

// decodeBase64Image decodes caller-supplied base64, tolerating a data URI
// prefix. An empty or undecodable image is a caller error.
func decodeBase64Image(s string) ([]byte, error) {
	if s == "" {
		return nil, types.NewError(types.ErrInvalidPayload, "image is required")
	}
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		s = s[idx+len(";base64,"):]
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidPayload, "image is not valid base64").WithCause(err)
	}
	if len(buf) == 0 {
		return nil, types.NewError(types.ErrInvalidPayload, "image is empty")
	}
	return buf, nil
}
