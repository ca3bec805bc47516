package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/api/responses"
	"github.com/angelmondragon/repricer-backend/api/validators"
	"github.com/angelmondragon/repricer-backend/internal/rules"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

type createRuleRequest struct {
	Name                   string              `json:"name" validate:"required,max=128"`
	Description            *string             `json:"description,omitempty" validate:"omitempty,max=1024"`
	ApplyToAllProducts     bool                `json:"applyToAllProducts"`
	ProductIDs             []string            `json:"productIds" validate:"omitempty,max=500,dive,required,max=128"`
	ApplyToAllMarketplaces bool                `json:"applyToAllMarketplaces"`
	MarketplaceIDs         []string            `json:"marketplaceIds" validate:"omitempty,max=100,dive,required,max=128"`
	Operation              string              `json:"operation" validate:"required"`
	TargetCompetitor       string              `json:"targetCompetitor,omitempty"`
	SpecificCompetitorID   *string             `json:"specificCompetitorId,omitempty" validate:"omitempty,max=128"`
	Value                  decimal.Decimal     `json:"value"`
	MinPrice               decimal.NullDecimal `json:"minPrice"`
	MaxPrice               decimal.NullDecimal `json:"maxPrice"`
	MinMargin              decimal.NullDecimal `json:"minMargin"`
	Priority               *int                `json:"priority,omitempty" validate:"omitempty,gte=0,lte=10000"`
	IsActive               *bool               `json:"isActive,omitempty"`
}

func (req createRuleRequest) toInput() (rules.CreateRuleInput, error) {
	operation, err := enums.ParseRepricingOperation(strings.TrimSpace(req.Operation))
	if err != nil {
		return rules.CreateRuleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation")
	}
	var target enums.TargetCompetitor
	if raw := strings.TrimSpace(req.TargetCompetitor); raw != "" {
		if target, err = enums.ParseTargetCompetitor(raw); err != nil {
			return rules.CreateRuleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target competitor")
		}
	}
	return rules.CreateRuleInput{
		Name:                   validators.SanitizeString(req.Name, 128),
		Description:            req.Description,
		ApplyToAllProducts:     req.ApplyToAllProducts,
		ProductIDs:             req.ProductIDs,
		ApplyToAllMarketplaces: req.ApplyToAllMarketplaces,
		MarketplaceIDs:         req.MarketplaceIDs,
		Operation:              operation,
		TargetCompetitor:       target,
		SpecificCompetitorID:   req.SpecificCompetitorID,
		Value:                  req.Value,
		MinPrice:               req.MinPrice,
		MaxPrice:               req.MaxPrice,
		MinMargin:              req.MinMargin,
		Priority:               req.Priority,
		IsActive:               req.IsActive,
	}, nil
}

// optionalDecimal tells an absent field apart from an explicit null, which clears the bound.
type optionalDecimal struct {
	Set   bool
	Value decimal.NullDecimal
}

func (o *optionalDecimal) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(data)
}

func (o optionalDecimal) ptr() *decimal.NullDecimal {
	if !o.Set {
		return nil
	}
	value := o.Value
	return &value
}

type updateRuleRequest struct {
	Name                   *string          `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Description            *string          `json:"description,omitempty" validate:"omitempty,max=1024"`
	ApplyToAllProducts     *bool            `json:"applyToAllProducts,omitempty"`
	ProductIDs             *[]string        `json:"productIds,omitempty" validate:"omitempty,max=500,dive,required,max=128"`
	ApplyToAllMarketplaces *bool            `json:"applyToAllMarketplaces,omitempty"`
	MarketplaceIDs         *[]string        `json:"marketplaceIds,omitempty" validate:"omitempty,max=100,dive,required,max=128"`
	Operation              *string          `json:"operation,omitempty"`
	TargetCompetitor       *string          `json:"targetCompetitor,omitempty"`
	SpecificCompetitorID   *string          `json:"specificCompetitorId,omitempty" validate:"omitempty,max=128"`
	Value                  *decimal.Decimal `json:"value,omitempty"`
	MinPrice               optionalDecimal  `json:"minPrice"`
	MaxPrice               optionalDecimal  `json:"maxPrice"`
	MinMargin              optionalDecimal  `json:"minMargin"`
	Priority               *int             `json:"priority,omitempty" validate:"omitempty,gte=0,lte=10000"`
	IsActive               *bool            `json:"isActive,omitempty"`
}

func (req updateRuleRequest) toInput() (rules.UpdateRuleInput, error) {
	input := rules.UpdateRuleInput{
		Name:                   req.Name,
		Description:            req.Description,
		ApplyToAllProducts:     req.ApplyToAllProducts,
		ProductIDs:             req.ProductIDs,
		ApplyToAllMarketplaces: req.ApplyToAllMarketplaces,
		MarketplaceIDs:         req.MarketplaceIDs,
		SpecificCompetitorID:   req.SpecificCompetitorID,
		Value:                  req.Value,
		MinPrice:               req.MinPrice.ptr(),
		MaxPrice:               req.MaxPrice.ptr(),
		MinMargin:              req.MinMargin.ptr(),
		Priority:               req.Priority,
		IsActive:               req.IsActive,
	}
	if req.Operation != nil {
		operation, err := enums.ParseRepricingOperation(strings.TrimSpace(*req.Operation))
		if err != nil {
			return rules.UpdateRuleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation")
		}
		input.Operation = &operation
	}
	if req.TargetCompetitor != nil {
		target, err := enums.ParseTargetCompetitor(strings.TrimSpace(*req.TargetCompetitor))
		if err != nil {
			return rules.UpdateRuleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target competitor")
		}
		input.TargetCompetitor = &target
	}
	return input, nil
}

func ruleIDParam(r *http.Request) (uuid.UUID, error) {
	raw, err := validators.PathIdentifier(r, "ruleId")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rule id")
	}
	return id, nil
}

func RuleCreate(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.CreateRule(r.Context(), orgID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rules.NewRuleDTO(*rule))
	}
}

// RuleList returns the organization's rules in evaluation order; ?active=true hides paused rules.
func RuleList(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListRules(r.Context(), orgID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rules.NewRuleDTOs(rows))
	}
}

func RuleGet(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ruleID, err := ruleIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.GetRule(r.Context(), orgID, ruleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rules.NewRuleDTO(*rule))
	}
}

func RuleUpdate(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ruleID, err := ruleIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.UpdateRule(r.Context(), orgID, ruleID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rules.NewRuleDTO(*rule))
	}
}

func RuleDelete(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rules service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ruleID, err := ruleIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRule(r.Context(), orgID, ruleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

var _ json.Unmarshaler = (*optionalDecimal)(nil)
