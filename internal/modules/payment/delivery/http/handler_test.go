package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anoa.com/runclub/internal/modules/payment/dto"
	"anoa.com/runclub/internal/modules/payment/gateway"
	"anoa.com/runclub/internal/modules/payment/service"
	"anoa.com/runclub/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	service.PaymentService
	err         error
	gotBody     []byte
	gotSig      string
	createCalls int
}

func (s *stubService) CreateOrder(_ context.Context, _ uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	s.createCalls++
	if s.err != nil {
		return nil, s.err
	}
	return &dto.OrderResponse{OrderID: "order_1", Amount: req.Amount, Currency: "INR"}, nil
}

func (s *stubService) HandleWebhook(_ context.Context, body []byte, sig string) (*dto.WebhookResult, error) {
	s.gotBody, s.gotSig = body, sig
	if s.err != nil {
		return nil, s.err
	}
	return &dto.WebhookResult{Event: "payment.captured", Handled: true}, nil
}

func (s *stubService) CheckStatus(_ context.Context, id string) (*dto.PaymentStatusResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.PaymentStatusResponse{OrderID: id, Status: dto.StatusPending}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(svc service.PaymentService) *gin.Engine {
	h := NewPaymentHandler(svc, true)
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set("user_id", uuid.NewString())
		c.Next()
	}
	r.POST("/api/create-order", auth, h.CreateOrder)
	r.GET("/api/check-payment-status/:orderId", h.CheckPaymentStatus)
	r.POST("/api/webhook", h.Webhook)
	r.GET("/api/health", h.Health)
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrderValidation(t *testing.T) {
	svc := &stubService{}
	r := setup(svc)

	w := do(r, http.MethodPost, "/api/create-order", `{"amount":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/create-order", `{"amount":-5}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.createCalls)

	w = do(r, http.MethodPost, "/api/create-order", `{"amount":50000}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"order_id":"order_1","amount":50000,"currency":"INR","status":"","key_id":""}`, w.Body.String())
}

func TestGatewayErrorIsRelayed(t *testing.T) {
	svc := &stubService{err: &gateway.GatewayError{StatusCode: http.StatusUnauthorized, Code: "BAD_REQUEST_ERROR", Description: "Authentication failed"}}
	r := setup(svc)

	w := do(r, http.MethodPost, "/api/create-order", `{"amount":100}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Authentication failed","code":"BAD_REQUEST_ERROR"}`, w.Body.String())

	svc.err = &gateway.GatewayError{Description: "dial tcp: connection refused"}
	w = do(r, http.MethodGet, "/api/check-payment-status/order_1", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookPassesRawBody(t *testing.T) {
	svc := &stubService{}
	r := setup(svc)
	body := `{"event":"payment.captured",  "payload":{}}`

	w := do(r, http.MethodPost, "/api/webhook", body, map[string]string{"X-Razorpay-Signature": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, string(svc.gotBody))
	assert.Equal(t, "abc", svc.gotSig)

	svc.err = apperror.New(http.StatusBadRequest, "invalid payment signature", apperror.ErrSignatureMismatch)
	w = do(r, http.MethodPost, "/api/webhook", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid payment signature"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	w := do(setup(&stubService{}), http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["gateway_configured"])
}
