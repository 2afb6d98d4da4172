package http

import (
	"net/http"

	postDto "anoa.com/runclub/internal/modules/post/dto"
	post "anoa.com/runclub/internal/modules/post/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PostHandler struct {
	service post.PostService
}

func NewPostHandler(service post.PostService) *PostHandler {
	return &PostHandler{service: service}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req postDto.CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	image, closeFile, err := response.OptionalFile(c, "image")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeFile()

	resp, err := h.service.CreatePost(c.Request.Context(), userID, req, image)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *PostHandler) ListPosts(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var filter postDto.PostFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.ListPosts(c.Request.Context(), userID, filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) GetPost(c *gin.Context) {
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

	res, err := h.service.GetPost(c.Request.Context(), postID, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
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

	if err := h.service.DeletePost(c.Request.Context(), postID, userID, response.IsAdmin(c)); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
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

	res, err := h.service.ToggleLike(c.Request.Context(), postID, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) ImportPosts(c *gin.Context) {
	var req postDto.ImportPostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.ImportLegacy(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
