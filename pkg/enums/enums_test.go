package enums

import "testing"

func TestParseRepricingOperation(t *testing.T) {
	for _, op := range repricingOperations {
		parsed, err := ParseRepricingOperation(string(op))
		if err != nil || parsed != op {
			t.Fatalf("expected %s to parse, got %s (%v)", op, parsed, err)
		}
	}
	if _, err := ParseRepricingOperation("undercut"); err == nil {
		t.Fatal("expected unknown operation to fail")
	}
}

func TestRequiresCompetitor(t *testing.T) {
	needs := map[RepricingOperation]bool{
		OperationMatch:              true,
		OperationBeatBy:             true,
		OperationMatchShipping:      true,
		OperationFixedPrice:         false,
		OperationPercentageMargin:   false,
		OperationPercentageDiscount: false,
		OperationFloorCeiling:       false,
	}
	for op, want := range needs {
		if got := op.RequiresCompetitor(); got != want {
			t.Fatalf("%s: expected RequiresCompetitor=%v got %v", op, want, got)
		}
	}
}

func TestParseTargetCompetitor(t *testing.T) {
	if got, err := ParseTargetCompetitor("buybox_winner"); err != nil || got != TargetBuyBoxWinner {
		t.Fatalf("unexpected parse result %s (%v)", got, err)
	}
	if _, err := ParseTargetCompetitor("median"); err == nil {
		t.Fatal("expected unknown target to fail")
	}
}

func TestParseCurrencyNormalizesCase(t *testing.T) {
	got, err := ParseCurrency(" usd ")
	if err != nil || got != CurrencyUSD {
		t.Fatalf("expected USD, got %s (%v)", got, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected unsupported currency to fail")
	}
	if NormalizeCurrency(" btc ") != Currency("BTC") {
		t.Fatal("normalize must not validate")
	}
}

func TestSupportedCurrenciesSorted(t *testing.T) {
	got := SupportedCurrencies()
	want := []string{"CAD", "EUR", "GBP", "USD", "ZAR"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBuyBoxStateValidity(t *testing.T) {
	if !BuyBoxStateNotApplicable.IsValid() {
		t.Fatal("expected not_applicable to be valid")
	}
	if BuyBoxState("pending").IsValid() {
		t.Fatal("expected pending to be invalid")
	}
}

func TestOutboxEnums(t *testing.T) {
	if got, err := ParseOutboxEventType("buybox_state_changed"); err != nil || got != EventBuyBoxStateChanged {
		t.Fatalf("unexpected event type %s (%v)", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected unknown aggregate type to fail")
	}
	if !OutboxDLQReasonUnroutable.IsValid() || OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("unexpected dlq reason validity")
	}
}

func TestValuesParseNamesKind(t *testing.T) {
	_, err := targetCompetitors.parse("target competitor", "median")
	if err == nil || err.Error() != `invalid target competitor "median"` {
		t.Fatalf("unexpected error %v", err)
	}
	reasons := OutboxDLQErrorReasons()
	reasons[0] = "mutated"
	if dlqReasons[0] != OutboxDLQReasonMaxAttempts {
		t.Fatal("expected reasons to be copied")
	}
}
