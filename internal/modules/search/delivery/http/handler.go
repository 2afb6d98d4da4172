package http

import (
	"net/http"

	"anoa.com/runclub/internal/modules/search/dto"
	"anoa.com/runclub/internal/modules/search/service"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service service.SearchService
}

func NewSearchHandler(service service.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) SearchPosts(c *gin.Context) {
	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.service.SearchPosts(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *SearchHandler) GetSearchToken(c *gin.Context) {
	token, err := h.service.GenerateSearchToken()
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
