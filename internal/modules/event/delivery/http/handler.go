package http

import (
	"net/http"

	"anoa.com/runclub/internal/modules/event/dto"
	"anoa.com/runclub/internal/modules/event/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	var filter dto.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid event id"))
		return
	}

	res, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	banner, closeFile, err := response.OptionalFile(c, "image")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeFile()

	res, err := h.service.Create(c.Request.Context(), userID, req, banner)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid event id"))
		return
	}

	var req dto.UpdateEventRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	banner, closeFile, err := response.OptionalFile(c, "image")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeFile()

	res, err := h.service.Update(c.Request.Context(), id, req, banner)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *EventHandler) DeleteEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid event id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}
