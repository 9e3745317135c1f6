package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
)

type updateTenantStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) UpdateTenantStatus(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("tenant_id")))
	if err != nil || id == 0 {
		AbortWithError(c, ingestiondomain.ErrInvalidTenantID)
		return
	}

	var req updateTenantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenant, err := s.tenants.SetStatus(c.Request.Context(), id, tenantdomain.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tenant})
}
