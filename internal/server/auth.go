package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials so the desktop client can validate them once
// before caching them for Basic auth on subsequent calls.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.userSvc.Authenticate(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := actorctx.WithActor(c.Request.Context(), actorctx.Actor{
		ID:       account.ID,
		Username: account.Username,
		Role:     string(account.Role),
	})
	s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:    "login",
		TableName: "users",
		RecordID:  int64(account.ID),
	})

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) Me(c *gin.Context) {
	actor, ok := actorctx.ActorFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.userSvc.Get(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
