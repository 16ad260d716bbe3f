package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/portfolio-api/internal/application/code"
	"github.com/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCodeService struct{ mock.Mock }

func (m *mockCodeService) Issue(ctx context.Context, req code.IssueRequest) (*code.IssueResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*code.IssueResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCodeService) Verify(ctx context.Context, req code.VerifyRequest) (*code.VerifyResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*code.VerifyResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSendCode_Email_OK(t *testing.T) {
	svc := new(mockCodeService)
	svc.On("Issue", mock.Anything, mock.MatchedBy(func(req code.IssueRequest) bool {
		return req.Email == "a@b.com" && req.Phone == ""
	})).Return(&code.IssueResult{Channel: domain.ChannelEmail, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/send-code", strings.NewReader(`{"email":"a@b.com"}`))
	h.Send(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp sendCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "email", resp.Type)
	assert.NotEmpty(t, resp.Message)
}

func TestSendCode_MissingOwner_BadRequest(t *testing.T) {
	svc := new(mockCodeService)
	svc.On("Issue", mock.Anything, mock.Anything).Return(nil, domain.ErrBadRequest)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/send-code", strings.NewReader(`{}`))
	h.Send(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCode_MalformedBody_BadRequest(t *testing.T) {
	h := NewCodeHandler(new(mockCodeService))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/send-code", strings.NewReader(`{`))
	h.Send(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCode_OK(t *testing.T) {
	svc := new(mockCodeService)
	svc.On("Verify", mock.Anything, code.VerifyRequest{Email: "a@b.com", Code: "123456"}).
		Return(&code.VerifyResult{
			Account: &domain.Account{ID: "u1", Email: "a@b.com"},
			Session: &domain.Session{AccessToken: "at"},
		}, nil)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-code",
		strings.NewReader(`{"email":"a@b.com","code":"123456","type":"email"}`))
	h.Verify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp verifyCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "at", resp.Session.AccessToken)
}

func TestVerifyCode_ResponseOmitsSealedSecrets(t *testing.T) {
	meta := domain.AccountMetadata{
		TempTwoFactorSecret: "sealed-pending",
		TwoFactorSecret:     "sealed-active",
		TwoFactorEnabled:    true,
	}
	svc := new(mockCodeService)
	svc.On("Verify", mock.Anything, mock.Anything).Return(&code.VerifyResult{
		Account: &domain.Account{ID: "u1", Metadata: meta},
		Session: &domain.Session{AccessToken: "at", Account: &domain.Account{ID: "u1", Metadata: meta}},
	}, nil)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-code",
		strings.NewReader(`{"email":"a@b.com","code":"123456"}`))
	h.Verify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "sealed-pending")
	assert.NotContains(t, body, "sealed-active")
	assert.Contains(t, body, "two_factor_enabled")
}

func TestVerifyCode_InvalidType_BadRequest(t *testing.T) {
	h := NewCodeHandler(new(mockCodeService))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-code",
		strings.NewReader(`{"email":"a@b.com","code":"123456","type":"carrier-pigeon"}`))
	h.Verify(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCode_InvalidCode_Generic400(t *testing.T) {
	svc := new(mockCodeService)
	svc.On("Verify", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidCode)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-code",
		strings.NewReader(`{"email":"a@b.com","code":"999999"}`))
	h.Verify(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp MessageEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid or expired code", resp.Error)
}

func TestVerifyCode_InternalError_Sanitized500(t *testing.T) {
	svc := new(mockCodeService)
	svc.On("Verify", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	h := NewCodeHandler(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-code",
		strings.NewReader(`{"email":"a@b.com","code":"123456"}`))
	h.Verify(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp MessageEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
}
