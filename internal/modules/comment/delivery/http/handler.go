package http

import (
	"net/http"

	commentDto "anoa.com/runclub/internal/modules/comment/dto"
	"anoa.com/runclub/internal/modules/comment/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	service service.CommentService
}

func NewCommentHandler(service service.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) AddComment(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid post id"))
		return
	}

	var req commentDto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.AddComment(c.Request.Context(), postID, userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *CommentHandler) ListComments(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid post id"))
		return
	}

	var filter commentDto.CommentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.ListComments(c.Request.Context(), postID, filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid post id"))
		return
	}
	commentID, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid comment id"))
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), postID, commentID, userID, response.IsAdmin(c)); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
