package Config

import (
	"errors"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse("")
	if err != nil {
		t.Fatalf("Parse(\"\") returned error: %v", err)
	}
	if c.CostFunction != MaximumParsimony {
		t.Errorf("default cost function = %v, want MaximumParsimony", c.CostFunction)
	}
	if c.ResolveTaxaPerBatch(37) != 1 {
		t.Errorf("default taxa-per-batch resolves to %d, want 1", c.ResolveTaxaPerBatch(37))
	}
}

func TestParseCostFunctions(t *testing.T) {
	cases := map[string]CostFunction{
		"C{MP}":  MaximumParsimony,
		"C{SMP}": SankoffParsimony,
		"C{ML}":  MaximumLikelihoodMidpoint,
		"C{FML}": MaximumLikelihoodAnywhere,
	}
	for raw, want := range cases {
		c, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", raw, err)
		}
		if c.CostFunction != want {
			t.Errorf("Parse(%q).CostFunction = %v, want %v", raw, c.CostFunction, want)
		}
	}
}

func TestParseUnknownCostFunctionIsInvalid(t *testing.T) {
	_, err := Parse("C{BOGUS}")
	if !errors.Is(err, ErrConfigurationInvalid) {
		t.Errorf("Parse with bogus cost function = %v, want ErrConfigurationInvalid", err)
	}
}

func TestBatchAndInsertSizing(t *testing.T) {
	c, err := Parse("B5+I2")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := c.ResolveTaxaPerBatch(100); got != 5 {
		t.Errorf("taxa per batch = %d, want 5", got)
	}
	if got := c.ResolveInsertsPerBatch(5); got != 2 {
		t.Errorf("inserts per batch = %d, want 2", got)
	}
}

func TestZeroBatchMeansEverything(t *testing.T) {
	c, err := Parse("B0")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := c.ResolveTaxaPerBatch(42); got != 42 {
		t.Errorf("B0 taxa per batch = %d, want 42 (whole set)", got)
	}
}

func TestRemovalCountAbsolute(t *testing.T) {
	c, err := Parse("R10")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := c.ResolveRemovalCount(20); got != 10 {
		t.Errorf("removal count = %d, want 10", got)
	}
	// Guard rail: never remove enough to leave fewer than 4.
	if got := c.ResolveRemovalCount(12); got != 0 {
		t.Errorf("removal count near the floor = %d, want 0", got)
	}
}

func TestRemovalCountPercentage(t *testing.T) {
	c, err := Parse("R50%")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := c.ResolveRemovalCount(20); got != 10 {
		t.Errorf("50%% of 20 = %d, want 10", got)
	}
}

func TestRemovalCountIgnoredOnSmallTrees(t *testing.T) {
	c, err := Parse("R1")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := c.ResolveRemovalCount(3); got != 0 {
		t.Errorf("removal count on a 3-taxon tree = %d, want 0", got)
	}
}

func TestInsertsPercentageResolvesAgainstBatchSize(t *testing.T) {
	// Scenario S5: "C{SMP}+B10+I50%" yields B=10, I=50% (taxaPerBatch/2
	// rounded half-up).
	c, err := Parse("C{SMP}+B10+I50%")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if c.CostFunction != SankoffParsimony {
		t.Errorf("CostFunction = %v, want SankoffParsimony", c.CostFunction)
	}
	if got := c.ResolveTaxaPerBatch(100); got != 10 {
		t.Errorf("taxa per batch = %d, want 10", got)
	}
	if got := c.ResolveInsertsPerBatch(10); got != 5 {
		t.Errorf("inserts per batch (50%% of 10) = %d, want 5", got)
	}
}

func TestInsertsPercentageRoundsHalfUp(t *testing.T) {
	c, err := Parse("I33%")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	// 33% of 7 = 2.31 -> rounds to 2.
	if got := c.ResolveInsertsPerBatch(7); got != 2 {
		t.Errorf("inserts per batch (33%% of 7) = %d, want 2", got)
	}
}

func TestEmptyConfigDefaultsMP(t *testing.T) {
	// Scenario S5's second case: "+C+" yields the default MP.
	c, err := Parse("+C+")
	if err != nil {
		t.Fatalf("Parse(\"+C+\") returned error: %v", err)
	}
	if c.CostFunction != MaximumParsimony {
		t.Errorf("CostFunction = %v, want MaximumParsimony", c.CostFunction)
	}
}

func TestBraceNestingProtectsInnerDelimiters(t *testing.T) {
	// A brace-wrapped value containing '+' must not be split by it.
	c, err := Parse("L{a+b}+C{ML}")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if c.LocalCleanup != "a+b" {
		t.Errorf("LocalCleanup = %q, want %q", c.LocalCleanup, "a+b")
	}
	if c.CostFunction != MaximumLikelihoodMidpoint {
		t.Errorf("CostFunction = %v, want MaximumLikelihoodMidpoint", c.CostFunction)
	}
}
