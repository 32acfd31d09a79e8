package server

import (
	"github.com/gin-gonic/gin"
	"github.com/logiport/logiport/internal/actorctx"
)

// AuthRequired resolves the acting user from HTTP Basic credentials. The
// desktop clients send credentials on every request; there is no session
// store to keep in sync across LAN instances.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="logiport"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		account, err := s.userSvc.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="logiport"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorctx.WithActor(c.Request.Context(), actorctx.Actor{
			ID:       account.ID,
			Username: account.Username,
			Role:     string(account.Role),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
