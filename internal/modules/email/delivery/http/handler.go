package http

import (
	"net/http"

	"anoa.com/runclub/internal/modules/email/dto"
	"anoa.com/runclub/internal/modules/email/service"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	service service.EmailService
}

func NewEmailHandler(service service.EmailService) *EmailHandler {
	return &EmailHandler{service: service}
}

func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	if err := h.service.Send(c.Request.Context(), req); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email sent"})
}
