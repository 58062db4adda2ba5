package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/quorumhq/quorum/internal/audit/domain"
	"github.com/quorumhq/quorum/internal/communityctx"
	"github.com/quorumhq/quorum/internal/config"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	obsmetrics "github.com/quorumhq/quorum/internal/observability/metrics"
	"github.com/quorumhq/quorum/internal/recurring/domain"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
	pkgdb "github.com/quorumhq/quorum/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	Registry   registrydomain.Repository

	AuditSvc   auditdomain.Service        `optional:"true"`
	Policy     *config.LedgerConfigHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	registry   registrydomain.Repository
	auditSvc   auditdomain.Service
	policy     *config.LedgerConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("recurring.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		registry:   p.Registry,
		auditSvc:   p.AuditSvc,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateTemplate(ctx context.Context, req domain.CreateTemplateRequest) (domain.RecurringCharge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return domain.RecurringCharge{}, ledgerdomain.ErrInvalidCommunity
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RecurringCharge{}, ledgerdomain.ErrInvalidName
	}
	if req.Amount <= 0 {
		return domain.RecurringCharge{}, ledgerdomain.ErrInvalidAmount
	}
	if err := req.Target.Validate(); err != nil {
		return domain.RecurringCharge{}, err
	}
	if !req.Frequency.Valid() {
		return domain.RecurringCharge{}, domain.ErrInvalidFrequency
	}
	skip := req.FrequencySkip
	if skip == 0 {
		skip = 1
	}
	if skip < 1 {
		return domain.RecurringCharge{}, domain.ErrInvalidSkip
	}
	if req.TimeToPayDays < 0 {
		return domain.RecurringCharge{}, domain.ErrInvalidTimeToPay
	}
	if req.NextChargeDate.IsZero() {
		return domain.RecurringCharge{}, domain.ErrInvalidNextCharge
	}

	if err := s.ensureTargetExists(ctx, communityID, req.Target); err != nil {
		return domain.RecurringCharge{}, err
	}

	template := domain.RecurringCharge{
		ID:             s.genID.Generate(),
		CommunityID:    communityID,
		Target:         req.Target,
		Name:           name,
		Amount:         req.Amount,
		Frequency:      req.Frequency,
		FrequencySkip:  skip,
		TimeToPayDays:  req.TimeToPayDays,
		NextChargeDate: req.NextChargeDate.UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &template); err != nil {
		return domain.RecurringCharge{}, err
	}

	s.audit(ctx, communityID, "billing.recurring_charge_created", template.ID, map[string]any{
		"frequency":      string(template.Frequency),
		"frequency_skip": template.FrequencySkip,
		"amount":         template.Amount,
	})
	return template, nil
}

func (s *Service) GetTemplate(ctx context.Context, id snowflake.ID) (domain.RecurringCharge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return domain.RecurringCharge{}, ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return domain.RecurringCharge{}, ledgerdomain.ErrInvalidID
	}

	template, err := s.repo.FindByID(ctx, s.db, communityID, id, false)
	if err != nil {
		return domain.RecurringCharge{}, err
	}
	if template == nil {
		return domain.RecurringCharge{}, ledgerdomain.ErrNotFound
	}
	return *template, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.RecurringCharge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}

	items, err := s.repo.List(ctx, s.db, communityID)
	if err != nil {
		return nil, err
	}
	templates := make([]domain.RecurringCharge, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		templates = append(templates, *item)
	}
	return templates, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id snowflake.ID) error {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return ledgerdomain.ErrInvalidID
	}

	deleted, err := s.repo.Delete(ctx, s.db, communityID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ledgerdomain.ErrNotFound
	}

	s.audit(ctx, communityID, "billing.recurring_charge_deleted", id, nil)
	return nil
}

func (s *Service) MaterializeDue(ctx context.Context, templateID snowflake.ID, asOf time.Time) (*ledgerdomain.Charge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}
	if templateID == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}

	var charge *ledgerdomain.Charge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		charge, err = s.materialize(ctx, tx, communityID, templateID, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, nil
	}

	s.obsMetrics.RecordMaterializedCharge(ctx)
	s.audit(ctx, communityID, "billing.recurring_charge_materialized", templateID, map[string]any{
		"charge_id": charge.ID.String(),
		"due_date":  charge.DueDate.Format(time.RFC3339),
	})
	return charge, nil
}

func (s *Service) MaterializeAllDue(ctx context.Context, asOf time.Time) (int, error) {
	batch := config.DefaultLedgerConfig().MaterializeBatch
	if s.policy != nil {
		batch = s.policy.Get().MaterializeBatch
	}

	materialized := 0
	for {
		n, err := s.materializeBatch(ctx, asOf, batch)
		if err != nil {
			return materialized, err
		}
		materialized += n
		if n < batch {
			return materialized, nil
		}
	}
}

// materializeBatch claims one batch of due templates and materializes each in
// the same transaction that holds the claim.
func (s *Service) materializeBatch(ctx context.Context, asOf time.Time, batch int) (int, error) {
	materialized := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due, err := s.repo.DueTemplates(ctx, tx, asOf, batch)
		if err != nil {
			return err
		}
		for _, claim := range due {
			scoped := communityctx.WithCommunityID(ctx, claim.CommunityID)
			charge, err := s.materialize(scoped, tx, claim.CommunityID, claim.ID, asOf)
			if err != nil {
				return err
			}
			if charge != nil {
				materialized++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := 0; i < materialized; i++ {
		s.obsMetrics.RecordMaterializedCharge(ctx)
	}
	return materialized, nil
}

func (s *Service) materialize(ctx context.Context, tx *gorm.DB, communityID, templateID snowflake.ID, asOf time.Time) (*ledgerdomain.Charge, error) {
	template, err := s.repo.FindByID(ctx, tx, communityID, templateID, true)
	if err != nil {
		return nil, classifyLockErr(err)
	}
	if template == nil {
		return nil, ledgerdomain.ErrNotFound
	}
	if template.NextChargeDate.After(asOf) {
		return nil, nil
	}

	charge := ledgerdomain.Charge{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		Target:      template.Target,
		Name:        template.Name,
		Amount:      template.Amount,
		ChargeDate:  template.NextChargeDate,
		DueDate:     template.DueDateFor(template.NextChargeDate),
		CreatedAt:   time.Now().UTC(),
	}
	charge.RemainingBalance = charge.Amount
	if err := s.ledgerRepo.InsertCharge(ctx, tx, &charge); err != nil {
		return nil, err
	}

	next := domain.Advance(template.NextChargeDate, template.Frequency, template.FrequencySkip)
	advanced, err := s.repo.AdvanceNextChargeDate(ctx, tx, communityID, templateID, template.NextChargeDate, next)
	if err != nil {
		return nil, classifyLockErr(err)
	}
	if !advanced {
		// Someone advanced the template between our read and write; the whole
		// unit rolls back so no duplicate charge survives.
		return nil, ledgerdomain.ErrConcurrencyConflict
	}
	return &charge, nil
}

func (s *Service) ensureTargetExists(ctx context.Context, communityID snowflake.ID, target ledgerdomain.Target) error {
	var (
		exists bool
		err    error
	)
	switch target.Kind {
	case ledgerdomain.TargetKindResidence:
		exists, err = s.registry.ResidenceExists(ctx, s.db, communityID, target.ID)
	case ledgerdomain.TargetKindOccupant:
		exists, err = s.registry.OccupantExists(ctx, s.db, communityID, target.ID)
	default:
		return ledgerdomain.ErrInvalidTarget
	}
	if err != nil {
		return err
	}
	if !exists {
		return ledgerdomain.ErrNotFound
	}
	return nil
}

func (s *Service) audit(ctx context.Context, communityID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	_ = s.auditSvc.AuditLog(ctx, &communityID, "", nil, action, "billing_recurring_charge", &target, metadata)
}

func classifyLockErr(err error) error {
	if pkgdb.IsLockNotAvailableErr(err) || pkgdb.IsSerializationErr(err) {
		return ledgerdomain.ErrConcurrencyConflict
	}
	return err
}
