package http

import (
	"errors"
	"net/http"
	"time"

	"anoa.com/runclub/internal/modules/payment/dto"
	"anoa.com/runclub/internal/modules/payment/gateway"
	"anoa.com/runclub/internal/modules/payment/service"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const signatureHeader = "X-Razorpay-Signature"

type PaymentHandler struct {
	service    service.PaymentService
	configured bool
}

// NewPaymentHandler builds the payment proxy. configured reports whether
// gateway credentials are present, surfaced by the health check.
func NewPaymentHandler(service service.PaymentService, configured bool) *PaymentHandler {
	return &PaymentHandler{service: service, configured: configured}
}

// respondError relays gateway failures with the gateway's own status and
// description. Anything else goes through the common mapping.
func respondError(c *gin.Context, err error) {
	var gerr *gateway.GatewayError
	if errors.As(err, &gerr) {
		status := gerr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Warn("payment gateway error")
		body := gin.H{"error": gerr.Description}
		if gerr.Code != "" {
			body["code"] = gerr.Code
		}
		c.JSON(status, body)
		return
	}
	response.ResponseError(c, err)
}

func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) CreateQROrder(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.CreateQROrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) CheckPaymentStatus(c *gin.Context) {
	res, err := h.service.CheckStatus(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.VerifyPayment(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Webhook must see the body byte for byte, so it is read raw before any
// decoding.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	res, err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) GetQRSession(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.GetQRSession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) RetryQRSession(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.RetryQRSession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"gateway_configured": h.configured,
		"time":               time.Now().UTC().Format(time.RFC3339),
	})
}
