package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/quorumhq/quorum/internal/audit/domain"
	"github.com/quorumhq/quorum/internal/authorization"
	"github.com/quorumhq/quorum/internal/config"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	registrySvc  registrydomain.Service
	ledgerSvc    ledgerdomain.Service
	recurringSvc recurringdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	RegistrySvc  registrydomain.Service
	LedgerSvc    ledgerdomain.Service
	RecurringSvc recurringdomain.Service

	AuthzSvc authorization.Service `optional:"true"`
	AuditSvc auditdomain.Service   `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		registrySvc:  p.RegistrySvc,
		ledgerSvc:    p.LedgerSvc,
		recurringSvc: p.RecurringSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/communities", s.CreateCommunity)
	v1.GET("/communities/:community_id", s.CommunityContext(), s.authorizeCommunityAction(authorization.ObjectCommunity, authorization.ActionCommunityView), s.GetCommunity)

	community := v1.Group("/communities/:community_id", s.CommunityContext())

	// -------- Registry --------
	community.GET("/residences", s.authorizeCommunityAction(authorization.ObjectResidence, authorization.ActionResidenceView), s.ListResidences)
	community.POST("/residences", s.authorizeCommunityAction(authorization.ObjectResidence, authorization.ActionResidenceCreate), s.CreateResidence)
	community.GET("/occupants", s.authorizeCommunityAction(authorization.ObjectOccupant, authorization.ActionOccupantView), s.ListOccupants)
	community.POST("/occupants", s.authorizeCommunityAction(authorization.ObjectOccupant, authorization.ActionOccupantCreate), s.CreateOccupant)

	// -------- Charges --------
	community.GET("/charges", s.authorizeCommunityAction(authorization.ObjectCharge, authorization.ActionChargeView), s.ListCharges)
	community.POST("/charges", s.authorizeCommunityAction(authorization.ObjectCharge, authorization.ActionChargeCreate), s.CreateCharge)
	community.GET("/charges/:id", s.authorizeCommunityAction(authorization.ObjectCharge, authorization.ActionChargeView), s.GetCharge)
	community.DELETE("/charges/:id", s.authorizeCommunityAction(authorization.ObjectCharge, authorization.ActionChargeDelete), s.DeleteCharge)
	community.GET("/charges/:id/transactions", s.authorizeCommunityAction(authorization.ObjectTransaction, authorization.ActionTransactionView), s.ListChargeTransactions)

	// -------- Payments --------
	community.GET("/payments", s.authorizeCommunityAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)
	community.POST("/payments", s.authorizeCommunityAction(authorization.ObjectPayment, authorization.ActionPaymentCreate), s.RecordPayment)
	community.GET("/payments/:id", s.authorizeCommunityAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.GetPayment)
	community.DELETE("/payments/:id", s.authorizeCommunityAction(authorization.ObjectPayment, authorization.ActionPaymentDelete), s.DeletePayment)
	community.GET("/payments/:id/transactions", s.authorizeCommunityAction(authorization.ObjectTransaction, authorization.ActionTransactionView), s.ListPaymentTransactions)
	community.POST("/payments/:id/allocations", s.authorizeCommunityAction(authorization.ObjectPayment, authorization.ActionPaymentAllocate), s.AllocatePayment)

	// -------- Recurring charges --------
	community.GET("/recurring_charges", s.authorizeCommunityAction(authorization.ObjectRecurringCharge, authorization.ActionRecurringChargeView), s.ListRecurringCharges)
	community.POST("/recurring_charges", s.authorizeCommunityAction(authorization.ObjectRecurringCharge, authorization.ActionRecurringChargeCreate), s.CreateRecurringCharge)
	community.GET("/recurring_charges/:id", s.authorizeCommunityAction(authorization.ObjectRecurringCharge, authorization.ActionRecurringChargeView), s.GetRecurringCharge)
	community.DELETE("/recurring_charges/:id", s.authorizeCommunityAction(authorization.ObjectRecurringCharge, authorization.ActionRecurringChargeDelete), s.DeleteRecurringCharge)
	community.POST("/recurring_charges/:id/materialize", s.authorizeCommunityAction(authorization.ObjectRecurringCharge, authorization.ActionRecurringChargeMaterialize), s.MaterializeRecurringCharge)
}
