package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/mail"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestEmailVerification(ctx context.Context, userID, ip string) (*mail.SendResult, error) {
	args := m.Called(ctx, userID, ip)
	if r, _ := args.Get(0).(*mail.SendResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ConfirmEmailVerification(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) RequestPasswordReset(ctx context.Context, email, ip string) error {
	return m.Called(ctx, email, ip).Error(0)
}

func (m *mockAuthSvc) ValidatePasswordResetToken(ctx context.Context, token string) (*domain.ValidatedToken, error) {
	args := m.Called(ctx, token)
	if v, _ := args.Get(0).(*domain.ValidatedToken); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func postJSON(target string, v interface{}) *http.Request {
	body, _ := json.Marshal(v)
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

func TestPasswordResetRequest_GenericMessage(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestPasswordReset", mock.Anything, "nobody@example.com", "198.51.100.7").Return(nil)
	h := NewPasswordResetHandler(svc)

	r := postJSON("/v1/auth/password-reset", map[string]string{"email": "nobody@example.com"})
	r.RemoteAddr = "198.51.100.7:4242"
	rr := httptest.NewRecorder()
	h.Request(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, resetRequested, resp.Message)
	svc.AssertExpectations(t)
}

func TestPasswordResetRequest_InvalidEmail(t *testing.T) {
	h := NewPasswordResetHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Request(rr, postJSON("/v1/auth/password-reset", map[string]string{"email": "not-an-email"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPasswordResetRequest_RateLimited(t *testing.T) {
	reset := time.Now().Add(90 * time.Second)
	svc := &mockAuthSvc{}
	svc.On("RequestPasswordReset", mock.Anything, "alice@example.com", mock.Anything).
		Return(&domain.RateLimitError{Purpose: domain.PurposePasswordReset, ResetTime: reset})
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Request(rr, postJSON("/v1/auth/password-reset", map[string]string{"email": "alice@example.com"}))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 90, retry, 2)
	var resp RateLimitEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.WithinDuration(t, reset, resp.ResetTime, time.Second)
}

func TestPasswordResetValidate_MissingToken(t *testing.T) {
	h := NewPasswordResetHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/password-reset/validate", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPasswordResetValidate_Expired(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ValidatePasswordResetToken", mock.Anything, "stale").Return(nil, domain.ErrInvalidToken)
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/password-reset/validate?token=stale", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.ErrInvalidToken.Error())
}

func TestPasswordResetValidate_Valid(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ValidatePasswordResetToken", mock.Anything, "good").
		Return(&domain.ValidatedToken{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/password-reset/validate?token=good", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true}`, rr.Body.String())
}

func TestPasswordResetConfirm(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResetPassword", mock.Anything, "good", "new-password").Return(nil)
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Confirm(rr, postJSON("/v1/auth/password-reset/confirm", map[string]string{"token": "good", "new_password": "new-password"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestPasswordResetConfirm_ShortPassword(t *testing.T) {
	h := NewPasswordResetHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Confirm(rr, postJSON("/v1/auth/password-reset/confirm", map[string]string{"token": "good", "new_password": "short"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestEmailVerificationRequest_UsesCaller(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAuthSvc{}
	svc.On("RequestEmailVerification", mock.Anything, "u1", mock.Anything).
		Return(&mail.SendResult{ID: "m1", Provider: "memory"}, nil)
	h := NewEmailVerificationHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/auth/verify-email", "u1", domain.RoleUser, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Request), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestEmailVerificationRequest_RateLimited(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAuthSvc{}
	svc.On("RequestEmailVerification", mock.Anything, "u1", mock.Anything).
		Return(nil, &domain.RateLimitError{Purpose: domain.PurposeVerification, ResetTime: time.Now().Add(time.Minute)})
	h := NewEmailVerificationHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/auth/verify-email", "u1", domain.RoleUser, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Request), rr, r)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestEmailVerificationConfirm_InvalidToken(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ConfirmEmailVerification", mock.Anything, "used").Return(nil, domain.ErrInvalidToken)
	h := NewEmailVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Confirm(rr, postJSON("/v1/auth/verify-email/confirm", map[string]string{"token": "used"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
