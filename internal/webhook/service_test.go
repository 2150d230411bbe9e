package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/idempotency"
	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/workers"
)

// flakyCapturer fails its first `failures` calls and then stores the lead.
type flakyCapturer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (c *flakyCapturer) ApplyLocked(_ context.Context, m leadservice.Mutation) (leadservice.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return leadservice.Result{}, errors.New("db down")
	}
	lead := leaddomain.NewLead(m.PhoneNumber, m.Source, time.Now())
	return leadservice.Result{Lead: lead, Created: true}, nil
}

func newCaptureService(capturer LeadCapturer) *Service {
	log := logger.Discard()
	normalizer := phone.NewNormalizer("BR")
	return NewService(Deps{
		Gate:       idempotency.NewGate(idempotency.NewMemoryStore(time.Hour, 0), log),
		Dispatcher: workers.Inline{},
		Leads:      capturer,
		Extractor:  NewExtractor(config.DefaultTuning().Typebot, normalizer),
		Phone:      normalizer,
		Log:        log,
	})
}

func TestCaptureLeadFailureAllowsRetry(t *testing.T) {
	capturer := &flakyCapturer{failures: 1}
	svc := newCaptureService(capturer)
	ctx := context.Background()
	body := []byte(`{"phone":"11987654321","resultId":"r1"}`)

	_, disposition, err := svc.CaptureLead(ctx, body)
	require.Error(t, err)
	assert.Equal(t, Ignored, disposition)

	sig, disposition, err := svc.CaptureLead(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, Accepted, disposition)
	assert.Equal(t, customer, sig.PhoneNumber)
	assert.Equal(t, 2, capturer.calls)

	_, disposition, err = svc.CaptureLead(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, disposition)
	assert.Equal(t, 2, capturer.calls)
}

func TestTypebotRetryAfterServerErrorIsProcessed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	capturer := &flakyCapturer{failures: 1}
	engine := gin.New()
	webhooks := engine.Group("/api/v1/webhooks")
	NewModule(newCaptureService(capturer), webhookCfg{}, logger.Discard()).
		RegisterRoutes(&apphttp.RouterContext{Engine: engine, Webhooks: webhooks})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/typebot", strings.NewReader(`{"phone":"11987654321","resultId":"r1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusInternalServerError, post().Code)

	rec := post()
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEqual(t, true, body["duplicate"])
	assert.Equal(t, 2, capturer.calls)
}
