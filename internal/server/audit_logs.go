package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/pkg/db/pagination"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		UserID    string `form:"user_id"`
		Action    string `form:"action"`
		TableName string `form:"table_name"`
		RecordID  string `form:"record_id"`
		Search    string `form:"search"`
		StartAt   string `form:"start_at"`
		EndAt     string `form:"end_at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseOptionalInt64(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	recordID, err := parseOptionalInt64(query.RecordID)
	if err != nil {
		AbortWithError(c, newValidationError("record_id", "invalid_record_id", "invalid record_id"))
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}

	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: query.Pagination,
		UserID:     userID,
		Action:     strings.TrimSpace(query.Action),
		TableName:  strings.TrimSpace(query.TableName),
		RecordID:   recordID,
		Search:     strings.TrimSpace(query.Search),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
