// Package api defines the caller-facing request and response shapes for each
// compatibility surface. Field names are part of the compatibility contract
// and must not change.
package api

// ---------------------------------------------------------------------------
// Video-job surface
// ---------------------------------------------------------------------------

// CreateJobRequest is the body of POST /v1/jobs. An attached file may arrive
// as multipart form data instead of the JSON body.
type CreateJobRequest struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	Seconds    string `json:"seconds,omitempty"`
	Size       string `json:"size,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// CreateJobResponse acknowledges a submitted video job. TaskID mirrors ID for
// callers that expect the alternate field name.
type CreateJobResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the body of GET /v1/jobs/{id}. VideoURL is null until
// the job completes.
type JobStatusResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	VideoURL *string `json:"video_url"`
	Progress int     `json:"progress"`
}

// ---------------------------------------------------------------------------
// Vendor text/image-to-video surface
// ---------------------------------------------------------------------------

// VendorText2VideoRequest is the body of POST /vendor/v1/text2video.
type VendorText2VideoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// VendorImage2VideoRequest is the body of POST /vendor/v1/image2video.
// Image carries base64 content, optionally behind a data URI prefix.
type VendorImage2VideoRequest struct {
	Prompt   string `json:"prompt"`
	Duration string `json:"duration,omitempty"`
	Image    string `json:"image"`
}

// VendorResponse is the vendor surface envelope. Code 0 means success.
type VendorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    *VendorData `json:"data,omitempty"`
}

// VendorData carries the task reference and, on polls, its state.
type VendorData struct {
	TaskID        string            `json:"task_id"`
	TaskStatus    string            `json:"task_status,omitempty"`
	TaskStatusMsg string            `json:"task_status_msg,omitempty"`
	TaskResult    *VendorTaskResult `json:"task_result,omitempty"`
}

// VendorTaskResult carries the finished artifacts.
type VendorTaskResult struct {
	Videos []VendorVideo `json:"videos"`
}

// VendorVideo is one generated video.
type VendorVideo struct {
	URL string `json:"url"`
}

// ---------------------------------------------------------------------------
// Multimodal generate surface
// ---------------------------------------------------------------------------

// GenerateRequest is the body of POST /v1beta/generate/{model}.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one turn of multimodal content.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is either a text fragment or an inline binary payload.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData is base64 content with its MIME type.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationConfig tunes a generate call.
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ImageSize          string   `json:"imageSize,omitempty"`
}

// GenerateResponse is the multimodal surface response.
type GenerateResponse struct {
	Candidates []GenerateCandidate `json:"candidates"`
}

// GenerateCandidate is one generated result.
type GenerateCandidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// ---------------------------------------------------------------------------
// Shared error envelope (non-vendor surfaces)
// ---------------------------------------------------------------------------

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure without leaking internals.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
