package enums

// BuyBoxState describes who currently holds the BuyBox for a (product, marketplace) pair.
type BuyBoxState string

const (
	BuyBoxStateWon           BuyBoxState = "won"
	BuyBoxStateLost          BuyBoxState = "lost"
	BuyBoxStateTied          BuyBoxState = "tied"
	BuyBoxStateUnknown       BuyBoxState = "unknown"
	BuyBoxStateNotApplicable BuyBoxState = "not_applicable"
)

var buyboxStates = values[BuyBoxState]{
	BuyBoxStateWon,
	BuyBoxStateLost,
	BuyBoxStateTied,
	BuyBoxStateUnknown,
	BuyBoxStateNotApplicable,
}

// String implements fmt.Stringer.
func (s BuyBoxState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BuyBoxState.
func (s BuyBoxState) IsValid() bool {
	return buyboxStates.has(s)
}

// ParseBuyBoxState converts raw input into a BuyBoxState.
func ParseBuyBoxState(value string) (BuyBoxState, error) {
	return buyboxStates.parse("buybox state", value)
}

// CompetitorSourceType records how a competitor price was observed.
type CompetitorSourceType string

const (
	CompetitorSourceScraper CompetitorSourceType = "scraper"
	CompetitorSourceAPI     CompetitorSourceType = "api"
	CompetitorSourceManual  CompetitorSourceType = "manual"
)

var competitorSources = values[CompetitorSourceType]{
	CompetitorSourceScraper,
	CompetitorSourceAPI,
	CompetitorSourceManual,
}

// IsValid reports whether the value is a known CompetitorSourceType.
func (c CompetitorSourceType) IsValid() bool {
	return competitorSources.has(c)
}

// ParseCompetitorSourceType converts raw input into a CompetitorSourceType.
func ParseCompetitorSourceType(value string) (CompetitorSourceType, error) {
	return competitorSources.parse("competitor source type", value)
}
