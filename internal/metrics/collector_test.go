package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordHTTPRequest("POST", "/v1/jobs", 200, 50*time.Millisecond)
	c.RecordHTTPRequest("POST", "/v1/jobs", 200, 70*time.Millisecond)
	c.RecordHTTPRequest("GET", "/v1/jobs/:id", 404, 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/jobs", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/v1/jobs/:id", "404")))
}

func TestCollector_RecordJobSubmission(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordJobSubmission("video_jobs", "market", "ok")
	c.RecordJobSubmission("video_jobs", "market", "ok")
	c.RecordJobSubmission("vendor", "vendor-video", "error")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobSubmissionsTotal.WithLabelValues("video_jobs", "market", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobSubmissionsTotal.WithLabelValues("vendor", "vendor-video", "error")))
}

func TestCollector_RecordIngestion(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordIngestion("image/png", 1024)
	c.RecordIngestion("image/png", 512)

	assert.Equal(t, float64(1536), testutil.ToFloat64(c.ingestionBytes.WithLabelValues("image/png")))
}

func TestCollector_RecordJobPoll(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordJobPoll("market", "pending")
	c.RecordJobPoll("market", "completed")
	c.RecordJobPoll("market", "pending")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobPollsTotal.WithLabelValues("market", "pending")))
}
