package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) PreviewTransactionNumber(c *gin.Context) {
	preview, err := s.numberingSvc.PreviewTransactionNumber(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"transaction_no": preview}})
}

func (s *Server) GetCounter(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	next, err := s.numberingSvc.Peek(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"key":        key,
		"next_value": next,
	}})
}

type setCounterRequest struct {
	Value int64 `json:"value"`
}

func (s *Server) SetCounter(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))

	var req setCounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.numberingSvc.SetCounter(c.Request.Context(), key, req.Value); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"key":   key,
		"value": req.Value,
	}})
}

func (s *Server) SyncLastNumber(c *gin.Context) {
	value, err := s.numberingSvc.SyncLastNumber(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"value": value}})
}
