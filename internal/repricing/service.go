package repricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/internal/buybox"
	"github.com/angelmondragon/repricer-backend/internal/pricing"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/repricer-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusStore interface {
	FindByProductAndMarketplace(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error)
	UpdatePricingWithTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, update buybox.PricingUpdate) error
	MarkCheckedWithTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type historyStore interface {
	CreateFromStatusWithTx(ctx context.Context, tx *gorm.DB, status models.BuyBoxStatus, recordedAt time.Time) (*models.BuyBoxHistory, error)
}

type ruleStore interface {
	FindRulesForProduct(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.RepricingRule, error)
	RecordExecution(ctx context.Context, id uuid.UUID, success bool, at time.Time) (*models.RepricingRule, error)
}

type adjustmentStore interface {
	InsertBatchWithTx(ctx context.Context, tx *gorm.DB, rows []models.PriceAdjustment) error
	ListForProduct(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, limit int, cursor *pagination.Cursor) ([]models.PriceAdjustment, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs repricing rules for one product and exposes the resulting audit trail.
type Service interface {
	ApplyRules(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.PriceAdjustment, error)
	ListAdjustments(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, params pagination.Params) ([]models.PriceAdjustment, string, error)
}

// ServiceParams wires the repricing orchestrator.
type ServiceParams struct {
	Logger      *logger.Logger
	TxRunner    txRunner
	Statuses    statusStore
	History     historyStore
	Rules       ruleStore
	Adjustments adjustmentStore
	Outbox      eventEmitter
	Metrics     *metrics.RepricingMetrics
	Now         func() time.Time
}

type service struct {
	logg        *logger.Logger
	tx          txRunner
	statuses    statusStore
	history     historyStore
	rules       ruleStore
	adjustments adjustmentStore
	outbox      eventEmitter
	metrics     *metrics.RepricingMetrics
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Statuses == nil {
		return nil, fmt.Errorf("status repository required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if params.Rules == nil {
		return nil, fmt.Errorf("rule repository required")
	}
	if params.Adjustments == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:        params.Logger,
		tx:          params.TxRunner,
		statuses:    params.Statuses,
		history:     params.History,
		rules:       params.Rules,
		adjustments: params.Adjustments,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// ApplyRules evaluates every applicable rule against the stored status, in priority order, and
// writes the winning adjustment back. Every rule sees the status as fetched; a failing rule only
// fails its own adjustment. Store errors abort the whole run.
func (s *service) ApplyRules(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.PriceAdjustment, error) {
	start := time.Now()
	ctx = s.logg.WithOrganizationID(ctx, organizationID.String())
	ctx = s.logg.WithProduct(ctx, productID, marketplaceID)

	status, err := s.statuses.FindByProductAndMarketplace(ctx, organizationID, productID, marketplaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buybox status not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buybox status")
	}

	rules, err := s.rules.FindRulesForProduct(ctx, organizationID, productID, marketplaceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load repricing rules")
	}

	now := s.now().UTC()
	runID := uuid.New()
	adjustments := make([]models.PriceAdjustment, 0, len(rules))
	for _, rule := range rules {
		adj := pricing.Evaluate(*status, rule, now)
		adj.ID = uuid.New()
		adj.RunID = runID
		if _, err := s.rules.RecordExecution(ctx, rule.ID, adj.Status != enums.AdjustmentFailed, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record rule execution")
		}
		if adj.Status == enums.AdjustmentFailed {
			failCtx := s.logg.WithFields(ctx, map[string]any{"rule_id": rule.ID.String(), "operation": rule.Operation})
			s.logg.Warn(s.logg.WithField(failCtx, "error", derefString(adj.Error)), "rule evaluation failed")
		}
		adjustments = append(adjustments, adj)
	}

	winnerIdx := winnerIndex(adjustments)
	if winnerIdx >= 0 {
		adjustments[winnerIdx].Applied = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.adjustments.InsertBatchWithTx(ctx, tx, adjustments); err != nil {
			return fmt.Errorf("insert adjustments: %w", err)
		}
		if err := s.statuses.MarkCheckedWithTx(ctx, tx, status.ID, now); err != nil {
			return fmt.Errorf("mark checked: %w", err)
		}
		if winnerIdx < 0 {
			return nil
		}
		return s.applyWinner(ctx, tx, *status, adjustments[winnerIdx], now)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist repricing run")
	}

	for _, adj := range adjustments {
		s.metrics.IncAdjustment(string(adj.Status))
	}
	s.metrics.ObserveRun(time.Since(start))

	fields := map[string]any{
		"run_id":      runID.String(),
		"rules":       len(rules),
		"adjustments": len(adjustments),
	}
	if winnerIdx >= 0 {
		winner := adjustments[winnerIdx]
		fields["winner_rule_id"] = winner.RuleID.String()
		fields["old_price"] = winner.OldPrice.StringFixed(2)
		fields["new_price"] = winner.NewPrice.StringFixed(2)
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "repricing run complete")
	return adjustments, nil
}

func (s *service) applyWinner(ctx context.Context, tx *gorm.DB, status models.BuyBoxStatus, winner models.PriceAdjustment, now time.Time) error {
	shipping := status.CurrentShipping
	if winner.NewShipping.Valid {
		shipping = winner.NewShipping.Decimal
	}
	update := buybox.PricingUpdate{Price: winner.NewPrice, Shipping: shipping, LastUpdated: now}
	if err := s.statuses.UpdatePricingWithTx(ctx, tx, status.ID, update); err != nil {
		return fmt.Errorf("update pricing: %w", err)
	}

	repriced := status
	repriced.CurrentPrice = update.Price
	repriced.CurrentShipping = update.Shipping
	repriced.LastUpdated = now
	if _, err := s.history.CreateFromStatusWithTx(ctx, tx, repriced, now); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPriceAdjusted,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   status.ID,
		Actor:         &outbox.ActorRef{OrganizationID: status.OrganizationID, Source: "repricing"},
		OccurredAt:    now,
		Data: payloads.PriceAdjustedEvent{
			OrganizationID: status.OrganizationID,
			BuyBoxStatusID: status.ID,
			ProductID:      status.ProductID,
			MarketplaceID:  status.MarketplaceID,
			RunID:          winner.RunID,
			AdjustmentID:   winner.ID,
			RuleID:         winner.RuleID,
			RuleName:       winner.RuleName,
			Operation:      winner.Operation,
			OldPrice:       winner.OldPrice,
			NewPrice:       winner.NewPrice,
			OldShipping:    status.CurrentShipping,
			NewShipping:    shipping,
			Currency:       status.Currency,
			Reason:         winner.Reason,
			AppliedAt:      now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return fmt.Errorf("emit price adjusted: %w", err)
	}
	return nil
}

// ListAdjustments pages through the stored adjustments of one pair, newest first.
func (s *service) ListAdjustments(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, params pagination.Params) ([]models.PriceAdjustment, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.adjustments.ListForProduct(ctx, organizationID, productID, marketplaceID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	page, next := pagination.Trim(rows, params.Limit, func(adj models.PriceAdjustment) pagination.Cursor {
		return pagination.Cursor{At: adj.AppliedAt, ID: adj.ID}
	})
	if next == nil {
		return page, "", nil
	}
	return page, pagination.EncodeCursor(*next), nil
}

func winnerIndex(adjustments []models.PriceAdjustment) int {
	winner, ok := pricing.SelectWinner(adjustments)
	if !ok {
		return -1
	}
	for i := range adjustments {
		if adjustments[i].ID == winner.ID {
			return i
		}
	}
	return -1
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
