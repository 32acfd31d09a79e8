package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type ensureDocGroupRequest struct {
	DocCode string `json:"doc_code"`
}

func (s *Server) EnsureDocGroup(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req ensureDocGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	docCode := strings.TrimSpace(req.DocCode)
	group, err := s.docGroupSvc.Ensure(c.Request.Context(), id, docCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"group":     group,
		"file_name": s.docGroupSvc.FileName(group, docCode),
	}})
}

func (s *Server) ListDocGroups(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	groups, err := s.docGroupSvc.ListByTransaction(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": groups})
}
