package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/media"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/taskwait"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/upstream"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// stubGateway bundles the collaborators every surface test needs, all wired
// against one stub upstream server.
type stubGateway struct {
	srv      *httptest.Server
	client   *upstream.Client
	ingester *media.Ingester
	waiter   *taskwait.Waiter
	ledger   *usage.Ledger
}

func newStubGateway(t *testing.T, mux *http.ServeMux) *stubGateway {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	return &stubGateway{
		srv:    srv,
		client: upstream.NewClient(upstream.Config{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, logger),
		ingester: media.NewIngester(media.Config{
			BaseURL:        srv.URL,
			Endpoints:      []string{"/v1/files/upload"},
			RequestTimeout: 5 * time.Second,
		}, logger),
		waiter: taskwait.NewWaiter(taskwait.Config{
			Interval: 5 * time.Millisecond,
			Budget:   2 * time.Second,
		}, logger),
		ledger: usage.NewLedger(0),
	}
}

var testPNG = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x01, 0x02}
