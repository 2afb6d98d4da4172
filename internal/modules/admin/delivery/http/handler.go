package http

import (
	"net/http"

	"anoa.com/runclub/internal/modules/admin/dto"
	adminService "anoa.com/runclub/internal/modules/admin/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	adminService adminService.AdminService
}

func NewAdminHandler(adminService adminService.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	res, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	actorID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid user id"))
		return
	}

	var input dto.UpdateRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	res, err := h.adminService.UpdateUserRole(c.Request.Context(), actorID, userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
