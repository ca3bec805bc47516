package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// Listing is the organization's own current offer on a marketplace.
type Listing struct {
	Price      decimal.Decimal `json:"price"`
	Shipping   decimal.Decimal `json:"shipping"`
	IsInBuyBox bool            `json:"isInBuyBox"`
	URL        *string         `json:"url,omitempty"`
}

// TotalPrice is price plus shipping.
func (l Listing) TotalPrice() decimal.Decimal {
	return l.Price.Add(l.Shipping)
}

// CompetitorPrice is one observed competitor offer. TotalPrice always equals Price + Shipping;
// construct values with NewCompetitorPrice or call Normalize after decoding.
type CompetitorPrice struct {
	CompetitorID   string                     `json:"competitorId"`
	CompetitorName string                     `json:"competitorName"`
	Price          decimal.Decimal            `json:"price"`
	Shipping       decimal.Decimal            `json:"shipping"`
	TotalPrice     decimal.Decimal            `json:"totalPrice"`
	Currency       string                     `json:"currency"`
	LastUpdated    time.Time                  `json:"lastUpdated"`
	SourceType     enums.CompetitorSourceType `json:"sourceType"`
	IsBuyBoxWinner bool                       `json:"isBuyBoxWinner"`
}

// NewCompetitorPrice builds a competitor price with its total derived from price and shipping.
func NewCompetitorPrice(id, name string, price, shipping decimal.Decimal) CompetitorPrice {
	c := CompetitorPrice{
		CompetitorID:   id,
		CompetitorName: name,
		Price:          price,
		Shipping:       shipping,
	}
	c.Normalize()
	return c
}

// Normalize recomputes TotalPrice from Price and Shipping.
func (c *CompetitorPrice) Normalize() {
	c.TotalPrice = c.Price.Add(c.Shipping)
}

// CompetitorPrices is the competitor set persisted as JSONB on a buybox status.
type CompetitorPrices []CompetitorPrice

// Normalized returns a copy with every total recomputed.
func (c CompetitorPrices) Normalized() CompetitorPrices {
	out := make(CompetitorPrices, len(c))
	for i, price := range c {
		price.Normalize()
		out[i] = price
	}
	return out
}

// Winner returns the first competitor flagged as BuyBox winner.
func (c CompetitorPrices) Winner() (CompetitorPrice, bool) {
	for _, price := range c {
		if price.IsBuyBoxWinner {
			return price, true
		}
	}
	return CompetitorPrice{}, false
}

// Value marshals the slice into JSON for Postgres.
func (c CompetitorPrices) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the slice, normalizing totals on the way in.
func (c *CompetitorPrices) Scan(value interface{}) error {
	if value == nil {
		*c = CompetitorPrices{}
		return nil
	}
	raw, err := jsonBytes(value, "competitor prices")
	if err != nil {
		return err
	}
	var decoded CompetitorPrices
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*c = decoded.Normalized()
	return nil
}

// MarketPosition is derived from the competitor set and the own listing on every status update.
type MarketPosition struct {
	Rank                      int             `json:"rank"`
	TotalCompetitors          int             `json:"totalCompetitors"`
	PriceDifference           decimal.Decimal `json:"priceDifference"`
	PriceDifferencePercentage decimal.Decimal `json:"priceDifferencePercentage"`
	IsCheapest                bool            `json:"isCheapest"`
	IsExcludingShipping       bool            `json:"isExcludingShipping"`
}

// Value marshals the position into JSON for Postgres.
func (m MarketPosition) Value() (driver.Value, error) {
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the position.
func (m *MarketPosition) Scan(value interface{}) error {
	if value == nil {
		*m = MarketPosition{}
		return nil
	}
	raw, err := jsonBytes(value, "market position")
	if err != nil {
		return err
	}
	var decoded MarketPosition
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*m = decoded
	return nil
}

func jsonBytes(value interface{}, name string) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported scan type %T", name, value)
	}
}

// Value marshals a single competitor into JSON, used for the stored BuyBox winner.
func (c CompetitorPrice) Value() (driver.Value, error) {
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes a single JSON competitor.
func (c *CompetitorPrice) Scan(value interface{}) error {
	if value == nil {
		*c = CompetitorPrice{}
		return nil
	}
	raw, err := jsonBytes(value, "competitor price")
	if err != nil {
		return err
	}
	var decoded CompetitorPrice
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	decoded.Normalize()
	*c = decoded
	return nil
}
