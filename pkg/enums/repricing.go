package enums

// RepricingOperation is the price computation a rule performs.
type RepricingOperation string

const (
	OperationMatch              RepricingOperation = "match"
	OperationBeatBy             RepricingOperation = "beat_by"
	OperationMatchShipping      RepricingOperation = "match_shipping"
	OperationFixedPrice         RepricingOperation = "fixed_price"
	OperationPercentageMargin   RepricingOperation = "percentage_margin"
	OperationPercentageDiscount RepricingOperation = "percentage_discount"
	OperationFloorCeiling       RepricingOperation = "floor_ceiling"
)

var repricingOperations = values[RepricingOperation]{
	OperationMatch,
	OperationBeatBy,
	OperationMatchShipping,
	OperationFixedPrice,
	OperationPercentageMargin,
	OperationPercentageDiscount,
	OperationFloorCeiling,
}

// String implements fmt.Stringer.
func (o RepricingOperation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known RepricingOperation.
func (o RepricingOperation) IsValid() bool {
	return repricingOperations.has(o)
}

// RequiresCompetitor reports whether the operation needs a resolved target competitor.
func (o RepricingOperation) RequiresCompetitor() bool {
	switch o {
	case OperationMatch, OperationBeatBy, OperationMatchShipping:
		return true
	}
	return false
}

// ParseRepricingOperation converts raw input into a RepricingOperation.
func ParseRepricingOperation(value string) (RepricingOperation, error) {
	return repricingOperations.parse("repricing operation", value)
}

// TargetCompetitor selects which competitor a rule measures itself against.
type TargetCompetitor string

const (
	TargetAll          TargetCompetitor = "all"
	TargetLowest       TargetCompetitor = "lowest"
	TargetHighest      TargetCompetitor = "highest"
	TargetSpecific     TargetCompetitor = "specific"
	TargetBuyBoxWinner TargetCompetitor = "buybox_winner"
)

var targetCompetitors = values[TargetCompetitor]{
	TargetAll,
	TargetLowest,
	TargetHighest,
	TargetSpecific,
	TargetBuyBoxWinner,
}

// String implements fmt.Stringer.
func (t TargetCompetitor) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TargetCompetitor.
func (t TargetCompetitor) IsValid() bool {
	return targetCompetitors.has(t)
}

// ParseTargetCompetitor converts raw input into a TargetCompetitor.
func ParseTargetCompetitor(value string) (TargetCompetitor, error) {
	return targetCompetitors.parse("target competitor", value)
}

// AdjustmentStatus is the outcome of evaluating one rule.
type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentExecuted AdjustmentStatus = "executed"
	AdjustmentSkipped  AdjustmentStatus = "skipped"
	AdjustmentFailed   AdjustmentStatus = "failed"
)

var adjustmentStatuses = values[AdjustmentStatus]{
	AdjustmentPending,
	AdjustmentExecuted,
	AdjustmentSkipped,
	AdjustmentFailed,
}

// String implements fmt.Stringer.
func (a AdjustmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AdjustmentStatus.
func (a AdjustmentStatus) IsValid() bool {
	return adjustmentStatuses.has(a)
}
