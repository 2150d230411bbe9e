package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/validator"
)

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.orch, f.reminders, phone.NewNormalizer("BR"), validator.New(), logger.Discard())
	r := gin.New()
	r.POST("/scheduling/visits", h.ScheduleVisit)
	r.GET("/scheduling/reminders", h.ListReminders)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scheduling/visits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestScheduleVisitEndpoint(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)

	w := post(r, `{"customerPhone":"(11) 98765-4321","customerName":"Ana","propertyId":"125"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res VisitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.SchedulingLink)
	assert.Equal(t, customer, f.links.calls[0].PhoneNumber)
}

func TestScheduleVisitEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(*fixture)
		status int
	}{
		{"missing phone", `{"customerName":"Ana","propertyId":125}`, nil, http.StatusBadRequest},
		{"missing property", `{"customerPhone":"11987654321","customerName":"Ana"}`, nil, http.StatusBadRequest},
		{"bad email", `{"customerPhone":"11987654321","customerName":"Ana","customerEmail":"x","propertyId":125}`, nil, http.StatusBadRequest},
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"unknown property", `{"customerPhone":"11987654321","customerName":"Ana","propertyId":999}`, nil, http.StatusNotFound},
		{"link failure", `{"customerPhone":"11987654321","customerName":"Ana","propertyId":125}`, func(f *fixture) { f.links.err = errors.New("down") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			w := post(newRouter(f), tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestListRemindersEndpoint(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(72 * time.Hour)
	require.NoError(t, f.reminders.Create(t.Context(), PlanReminders(VisitDetails{PhoneNumber: customer, StartTime: start}, f.now)))

	w := httptest.NewRecorder()
	newRouter(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduling/reminders", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body RemindersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Reminders, 2)
}
