package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/quorumhq/quorum/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCharge          = "billing_charge"
	ObjectPayment         = "billing_payment"
	ObjectTransaction     = "billing_transaction"
	ObjectRecurringCharge = "recurring_charge"
	ObjectCommunity       = "community"
	ObjectResidence       = "residence"
	ObjectOccupant        = "occupant"
	ObjectAuditLog        = "audit_log"
)

const (
	ActionChargeView   = "billing_charge.view"
	ActionChargeCreate = "billing_charge.create"
	ActionChargeDelete = "billing_charge.delete"

	ActionPaymentView     = "billing_payment.view"
	ActionPaymentCreate   = "billing_payment.create"
	ActionPaymentDelete   = "billing_payment.delete"
	ActionPaymentAllocate = "billing_payment.allocate"

	ActionTransactionView = "billing_transaction.view"

	ActionRecurringChargeView        = "recurring_charge.view"
	ActionRecurringChargeCreate      = "recurring_charge.create"
	ActionRecurringChargeDelete      = "recurring_charge.delete"
	ActionRecurringChargeMaterialize = "recurring_charge.materialize"

	ActionCommunityCreate = "community.create"
	ActionCommunityView   = "community.view"

	ActionResidenceView   = "residence.view"
	ActionResidenceCreate = "residence.create"

	ActionOccupantView   = "occupant.view"
	ActionOccupantCreate = "occupant.create"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, communityID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	communityID = strings.TrimSpace(communityID)
	if communityID == "" {
		return ErrInvalidCommunity
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, communityID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, communityID, object, action)
		return err
	}

	domain := fmt.Sprintf("community:%s", communityID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, communityID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, communityID string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		parsedCommunityID, err := snowflake.ParseString(communityID)
		if err != nil || parsedCommunityID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidCommunity
		}
		role, err := s.roleForUser(ctx, parsedCommunityID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, communityID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM community_members
		 WHERE community_id = ? AND user_id = ?
		 LIMIT 1`,
		communityID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, communityID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedCommunityID, err := snowflake.ParseString(communityID)
	if err != nil || parsedCommunityID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedCommunityID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"actor":  actorType,
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Resident permissions (read-only)
		{"role:resident", ObjectCharge, ActionChargeView},
		{"role:resident", ObjectPayment, ActionPaymentView},
		{"role:resident", ObjectTransaction, ActionTransactionView},

		// Treasurer permissions
		{"role:treasurer", ObjectCharge, ActionChargeView},
		{"role:treasurer", ObjectCharge, ActionChargeCreate},
		{"role:treasurer", ObjectCharge, ActionChargeDelete},
		{"role:treasurer", ObjectPayment, ActionPaymentView},
		{"role:treasurer", ObjectPayment, ActionPaymentCreate},
		{"role:treasurer", ObjectPayment, ActionPaymentDelete},
		{"role:treasurer", ObjectPayment, ActionPaymentAllocate},
		{"role:treasurer", ObjectTransaction, ActionTransactionView},
		{"role:treasurer", ObjectRecurringCharge, ActionRecurringChargeView},
		{"role:treasurer", ObjectRecurringCharge, ActionRecurringChargeCreate},
		{"role:treasurer", ObjectRecurringCharge, ActionRecurringChargeDelete},
		{"role:treasurer", ObjectRecurringCharge, ActionRecurringChargeMaterialize},
		{"role:treasurer", ObjectResidence, ActionResidenceView},
		{"role:treasurer", ObjectOccupant, ActionOccupantView},
		{"role:treasurer", ObjectAuditLog, ActionAuditLogView},

		// Admin permissions: everything the treasurer has plus registry writes
		{"role:admin", ObjectCharge, ActionChargeView},
		{"role:admin", ObjectCharge, ActionChargeCreate},
		{"role:admin", ObjectCharge, ActionChargeDelete},
		{"role:admin", ObjectPayment, ActionPaymentView},
		{"role:admin", ObjectPayment, ActionPaymentCreate},
		{"role:admin", ObjectPayment, ActionPaymentDelete},
		{"role:admin", ObjectPayment, ActionPaymentAllocate},
		{"role:admin", ObjectTransaction, ActionTransactionView},
		{"role:admin", ObjectRecurringCharge, ActionRecurringChargeView},
		{"role:admin", ObjectRecurringCharge, ActionRecurringChargeCreate},
		{"role:admin", ObjectRecurringCharge, ActionRecurringChargeDelete},
		{"role:admin", ObjectRecurringCharge, ActionRecurringChargeMaterialize},
		{"role:admin", ObjectCommunity, ActionCommunityView},
		{"role:admin", ObjectResidence, ActionResidenceView},
		{"role:admin", ObjectResidence, ActionResidenceCreate},
		{"role:admin", ObjectOccupant, ActionOccupantView},
		{"role:admin", ObjectOccupant, ActionOccupantCreate},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// System permissions (scheduler and automated processes)
		{"role:system", ObjectCharge, ActionChargeView},
		{"role:system", ObjectCharge, ActionChargeCreate},
		{"role:system", ObjectCharge, ActionChargeDelete},
		{"role:system", ObjectPayment, ActionPaymentView},
		{"role:system", ObjectPayment, ActionPaymentCreate},
		{"role:system", ObjectPayment, ActionPaymentDelete},
		{"role:system", ObjectPayment, ActionPaymentAllocate},
		{"role:system", ObjectTransaction, ActionTransactionView},
		{"role:system", ObjectRecurringCharge, ActionRecurringChargeView},
		{"role:system", ObjectRecurringCharge, ActionRecurringChargeCreate},
		{"role:system", ObjectRecurringCharge, ActionRecurringChargeDelete},
		{"role:system", ObjectRecurringCharge, ActionRecurringChargeMaterialize},
		{"role:system", ObjectCommunity, ActionCommunityCreate},
		{"role:system", ObjectCommunity, ActionCommunityView},
		{"role:system", ObjectResidence, ActionResidenceView},
		{"role:system", ObjectResidence, ActionResidenceCreate},
		{"role:system", ObjectOccupant, ActionOccupantView},
		{"role:system", ObjectOccupant, ActionOccupantCreate},
		{"role:system", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
