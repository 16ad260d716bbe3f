package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingContactService records the Submit call and blocks until released.
type blockingContactService struct {
	mu      sync.Mutex
	ctx     context.Context
	msg     domain.ContactMessage
	called  chan struct{}
	release chan struct{}
}

func newBlockingContactService() *blockingContactService {
	return &blockingContactService{
		called:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingContactService) Submit(ctx context.Context, msg domain.ContactMessage) {
	s.mu.Lock()
	s.ctx = ctx
	s.msg = msg
	s.mu.Unlock()
	close(s.called)
	<-s.release
}

func TestContactSubmit_AcceptsBeforeDeliveryCompletes(t *testing.T) {
	svc := newBlockingContactService()
	defer close(svc.release)

	h := NewContactHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","message":"hi"}`))
	h.Submit(rec, req)

	// 202 comes back while delivery is still in flight.
	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-svc.called:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never started")
	}
	svc.mu.Lock()
	assert.Equal(t, "Ada", svc.msg.Name)
	svc.mu.Unlock()
}

func TestContactSubmit_DeliveryOutlivesRequestContext(t *testing.T) {
	svc := newBlockingContactService()
	defer close(svc.release)

	reqCtx, cancel := context.WithCancel(context.Background())
	h := NewContactHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","message":"hi"}`)).WithContext(reqCtx)
	h.Submit(rec, req)
	cancel() // client disconnects right after the response

	select {
	case <-svc.called:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never started")
	}
	svc.mu.Lock()
	deliveryCtx := svc.ctx
	svc.mu.Unlock()
	require.NotNil(t, deliveryCtx)
	assert.NoError(t, deliveryCtx.Err(), "delivery context must not inherit request cancellation")
}

func TestContactSubmit_InvalidPayload_BadRequest(t *testing.T) {
	h := NewContactHandler(newBlockingContactService())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Ada","email":"not-an-email","message":"hi"}`))
	h.Submit(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactSubmit_MalformedBody_BadRequest(t *testing.T) {
	h := NewContactHandler(newBlockingContactService())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{`))
	h.Submit(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
