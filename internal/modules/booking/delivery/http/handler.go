package http

import (
	"net/http"

	"anoa.com/runclub/internal/modules/booking/dto"
	"anoa.com/runclub/internal/modules/booking/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	service service.BookingService
}

func NewBookingHandler(service service.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *BookingHandler) GetUserStats(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid user id"))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	var filter dto.BookingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
