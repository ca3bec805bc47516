package buybox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/internal/pricing"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

const (
	defaultMonitoringInterval = 60
	defaultHistoryWindow      = 30 * 24 * time.Hour
	maxHistoryRows            = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusStore interface {
	FindByProductAndMarketplace(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error)
	FindByProductAndMarketplaceWithTx(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error)
	UpsertWithTx(ctx context.Context, tx *gorm.DB, status *models.BuyBoxStatus) error
}

type historyStore interface {
	CreateFromStatusWithTx(ctx context.Context, tx *gorm.DB, status models.BuyBoxStatus, recordedAt time.Time) (*models.BuyBoxHistory, error)
	ListSince(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, since time.Time, limit int) ([]models.BuyBoxHistory, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service ingests BuyBox observations and serves status and trend reads.
type Service interface {
	UpdateBuyBoxStatus(ctx context.Context, organizationID uuid.UUID, input UpdateStatusInput) (*models.BuyBoxStatus, error)
	GetStatus(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error)
	ListHistory(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, since *time.Time) ([]models.BuyBoxHistory, error)
}

// ServiceParams wires the BuyBox service.
type ServiceParams struct {
	Logger                    *logger.Logger
	TxRunner                  txRunner
	Statuses                  statusStore
	History                   historyStore
	Outbox                    eventEmitter
	DefaultMonitoringInterval int
	HistoryWindow             time.Duration
	Now                       func() time.Time
}

type service struct {
	logg               *logger.Logger
	tx                 txRunner
	statuses           statusStore
	history            historyStore
	outbox             eventEmitter
	monitoringInterval int
	historyWindow      time.Duration
	now                func() time.Time
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
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	interval := params.DefaultMonitoringInterval
	if interval <= 0 {
		interval = defaultMonitoringInterval
	}
	window := params.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:               params.Logger,
		tx:                 params.TxRunner,
		statuses:           params.Statuses,
		history:            params.History,
		outbox:             params.Outbox,
		monitoringInterval: interval,
		historyWindow:      window,
		now:                now,
	}, nil
}

// UpdateBuyBoxStatus creates or refreshes the status of a pair. Derived fields are always
// recomputed from the observation and a history snapshot is appended in the same transaction.
// A changed BuyBox state on an existing status also queues a buybox_state_changed event.
func (s *service) UpdateBuyBoxStatus(ctx context.Context, organizationID uuid.UUID, input UpdateStatusInput) (*models.BuyBoxStatus, error) {
	if err := validateInput(organizationID, &input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	competitors := types.CompetitorPrices(input.Competitors).Normalized()
	for i := range competitors {
		if competitors[i].Currency == "" {
			competitors[i].Currency = string(input.Currency)
		}
		if competitors[i].LastUpdated.IsZero() {
			competitors[i].LastUpdated = now
		}
	}

	var saved models.BuyBoxStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		status, err := s.statuses.FindByProductAndMarketplaceWithTx(ctx, tx, organizationID, input.ProductID, input.MarketplaceID)
		created := false
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup buybox status")
			}
			status = &models.BuyBoxStatus{
				OrganizationID:     organizationID,
				ProductID:          input.ProductID,
				MarketplaceID:      input.MarketplaceID,
				IsMonitored:        true,
				MonitoringInterval: s.monitoringInterval,
			}
			created = true
		}

		previous := status.Status
		applyObservation(status, input, competitors, now)

		if err := s.statuses.UpsertWithTx(ctx, tx, status); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "buybox status was created concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save buybox status")
		}
		if _, err := s.history.CreateFromStatusWithTx(ctx, tx, *status, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append buybox history")
		}
		if !created && previous != status.Status {
			if err := s.outbox.Emit(ctx, tx, stateChangedEvent(*status, previous, now)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit buybox state change")
			}
		}

		saved = *status
		logCtx := s.logg.WithProduct(s.logg.WithOrganizationID(ctx, organizationID.String()), input.ProductID, input.MarketplaceID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"buybox_status": status.Status,
			"rank":          status.MarketPosition.Rank,
			"competitors":   len(status.Competitors),
			"created":       created,
		})
		s.logg.Info(logCtx, "buybox status updated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func stateChangedEvent(status models.BuyBoxStatus, previous enums.BuyBoxState, now time.Time) outbox.DomainEvent {
	data := payloads.BuyBoxStateChangedEvent{
		OrganizationID: status.OrganizationID,
		BuyBoxStatusID: status.ID,
		ProductID:      status.ProductID,
		MarketplaceID:  status.MarketplaceID,
		PreviousState:  previous,
		State:          status.Status,
		CurrentPrice:   status.CurrentPrice,
		ObservedAt:     now,
	}
	if status.BuyBoxWinner != nil {
		winner := status.BuyBoxWinner.CompetitorID
		data.WinnerID = &winner
	}
	return outbox.DomainEvent{
		EventType:     enums.EventBuyBoxStateChanged,
		AggregateType: enums.AggregateBuyBoxStatus,
		AggregateID:   status.ID,
		Actor:         &outbox.ActorRef{OrganizationID: status.OrganizationID, Source: "buybox_ingestion"},
		OccurredAt:    now,
		Data:          data,
	}
}

func applyObservation(status *models.BuyBoxStatus, input UpdateStatusInput, competitors types.CompetitorPrices, now time.Time) {
	status.CurrentPrice = input.Listing.Price
	status.CurrentShipping = input.Listing.Shipping
	status.IsInBuyBox = input.Listing.IsInBuyBox
	status.ListingURL = input.Listing.URL
	status.Currency = input.Currency
	if input.CostPrice.Valid {
		status.CostPrice = input.CostPrice
	}
	if input.IsMonitored != nil {
		status.IsMonitored = *input.IsMonitored
	}
	if input.MonitoringInterval != nil {
		status.MonitoringInterval = *input.MonitoringInterval
	}

	status.Competitors = competitors
	status.Status = pricing.DetermineState(input.Listing, competitors)
	status.MarketPosition = pricing.ComputeMarketPosition(input.Listing, competitors)
	status.BuyBoxWinner = nil
	if winner, ok := competitors.Winner(); ok {
		status.BuyBoxWinner = &winner
	}
	status.LastUpdated = now
}

func validateInput(organizationID uuid.UUID, input *UpdateStatusInput) error {
	if organizationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.MarketplaceID = strings.TrimSpace(input.MarketplaceID)
	if input.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.MarketplaceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "marketplace id is required")
	}
	if !input.Listing.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing price must be positive")
	}
	if input.Listing.Shipping.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing shipping must not be negative")
	}
	if input.CostPrice.Valid && input.CostPrice.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost price must not be negative")
	}
	if input.MonitoringInterval != nil && *input.MonitoringInterval <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "monitoring interval must be positive")
	}
	if input.Currency == "" {
		input.Currency = enums.CurrencyUSD
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
			WithDetails(map[string]any{"supported": enums.SupportedCurrencies()})
	}

	seen := make(map[string]struct{}, len(input.Competitors))
	for i, competitor := range input.Competitors {
		id := strings.TrimSpace(competitor.CompetitorID)
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "competitor id is required").
				WithDetails(map[string]any{"index": i})
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate competitor id").
				WithDetails(map[string]any{"competitorId": id})
		}
		seen[id] = struct{}{}
		if competitor.Price.IsNegative() || competitor.Shipping.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "competitor prices must not be negative").
				WithDetails(map[string]any{"competitorId": id})
		}
		if competitor.SourceType != "" && !competitor.SourceType.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid competitor source type").
				WithDetails(map[string]any{"competitorId": id})
		}
		input.Competitors[i].CompetitorID = id
	}
	return nil
}

// GetStatus returns the stored status of a pair.
func (s *service) GetStatus(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error) {
	status, err := s.statuses.FindByProductAndMarketplace(ctx, organizationID, productID, marketplaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buybox status not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup buybox status")
	}
	return status, nil
}

// ListHistory returns snapshots newer than since, defaulting to the retention window.
func (s *service) ListHistory(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, since *time.Time) ([]models.BuyBoxHistory, error) {
	from := s.now().UTC().Add(-s.historyWindow)
	if since != nil {
		from = since.UTC()
	}
	rows, err := s.history.ListSince(ctx, organizationID, productID, marketplaceID, from, maxHistoryRows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buybox history")
	}
	return rows, nil
}
