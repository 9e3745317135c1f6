package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
)

type triggerSyncRequest struct {
	EntityTypes []string `json:"entity_types"`
}

func (s *Server) TriggerSync(c *gin.Context) {
	var req triggerSyncRequest
	// an empty body means every entity type
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ingestion.Trigger(c.Request.Context(), ingestiondomain.TriggerRequest{
		TenantID:    strings.TrimSpace(c.Param("tenant_id")),
		EntityTypes: req.EntityTypes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSyncLogs(c *gin.Context) {
	var query struct {
		Limit     string `form:"limit"`
		PageToken string `form:"page_token"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit, err := parseLimit(query.Limit, ingestiondomain.MaxLogLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := ingestiondomain.ListLogsRequest{
		TenantID:  strings.TrimSpace(c.Param("tenant_id")),
		Limit:     limit,
		PageToken: strings.TrimSpace(query.PageToken),
	}

	resp, err := s.ingestion.ListLogs(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Logs,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) ListSyncCheckpoints(c *gin.Context) {
	checkpoints, err := s.ingestion.ListCheckpoints(c.Request.Context(), strings.TrimSpace(c.Param("tenant_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": checkpoints})
}
