package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/logiport/logiport/internal/audit"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/authorization"
	"github.com/logiport/logiport/internal/config"
	"github.com/logiport/logiport/internal/docgroup"
	docgroupdomain "github.com/logiport/logiport/internal/docgroup/domain"
	"github.com/logiport/logiport/internal/numbering"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	"github.com/logiport/logiport/internal/observability"
	obsmiddleware "github.com/logiport/logiport/internal/observability/logger"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	obstracing "github.com/logiport/logiport/internal/observability/tracing"
	"github.com/logiport/logiport/internal/transaction"
	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
	"github.com/logiport/logiport/internal/user"
	userdomain "github.com/logiport/logiport/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	numbering.Module,
	transaction.Module,
	docgroup.Module,
	user.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	numberingSvc   numberingdomain.Service
	transactionSvc transactiondomain.Service
	docGroupSvc    docgroupdomain.Service
	userSvc        userdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	NumberingSvc   numberingdomain.Service
	TransactionSvc transactiondomain.Service
	DocGroupSvc    docgroupdomain.Service
	UserSvc        userdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		numberingSvc:   p.NumberingSvc,
		transactionSvc: p.TransactionSvc,
		docGroupSvc:    p.DocGroupSvc,
		userSvc:        p.UserSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Transactions --------
	api.GET("/transactions", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionView), s.ListTransactions)
	api.POST("/transactions", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionCreate), s.CreateTransaction)
	api.GET("/transactions/:id", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionView), s.GetTransactionByID)
	api.PATCH("/transactions/:id", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionUpdate), s.UpdateTransaction)
	api.DELETE("/transactions/:id", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionDelete), s.DeleteTransaction)

	api.POST("/transactions/:id/activate", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionActivate), s.ActivateTransaction)
	api.POST("/transactions/:id/close", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionClose), s.CloseTransaction)
	api.POST("/transactions/:id/reopen", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionReopen), s.ReopenTransaction)
	api.POST("/transactions/:id/archive", s.authorize(authorization.ObjectTransaction, authorization.ActionTransactionArchive), s.ArchiveTransaction)

	// -------- Document groups --------
	api.GET("/transactions/:id/doc-groups", s.authorize(authorization.ObjectDocGroup, authorization.ActionDocGroupView), s.ListDocGroups)
	api.POST("/transactions/:id/doc-groups", s.authorize(authorization.ObjectDocGroup, authorization.ActionDocGroupCreate), s.EnsureDocGroup)

	// -------- Numbering --------
	api.GET("/numbering/preview", s.authorize(authorization.ObjectCounter, authorization.ActionCounterView), s.PreviewTransactionNumber)
	api.GET("/numbering/counters/:key", s.authorize(authorization.ObjectCounter, authorization.ActionCounterView), s.GetCounter)
	api.PUT("/numbering/counters/:key", s.authorize(authorization.ObjectCounter, authorization.ActionCounterSet), s.SetCounter)
	api.POST("/numbering/sync", s.authorize(authorization.ObjectCounter, authorization.ActionCounterSync), s.SyncLastNumber)

	// -------- Audit logs --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	// -------- Users --------
	api.GET("/users", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.ListUsers)
	api.POST("/users", s.authorize(authorization.ObjectUser, authorization.ActionUserCreate), s.CreateUser)
	api.GET("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.GetUserByID)
	api.PATCH("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserUpdate), s.UpdateUser)
	api.DELETE("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserDelete), s.DeleteUser)
}
