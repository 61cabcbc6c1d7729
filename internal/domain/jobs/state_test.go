package jobs

import "testing"

func TestValidateTransition_ValidMatrix(t *testing.T) {
	t.Parallel()

	valid := [][2]Status{
		{StatusStarted, StatusExtracting},
		{StatusExtracting, StatusAnalyzing},
		{StatusAnalyzing, StatusGenerating},
		{StatusGenerating, StatusCompleted},
		{StatusStarted, StatusFailed},
		{StatusExtracting, StatusFailed},
		{StatusAnalyzing, StatusFailed},
		{StatusGenerating, StatusFailed},
	}
	for _, pair := range valid {
		if err := ValidateTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("expected valid transition %s->%s, got %v", pair[0], pair[1], err)
		}
	}
}

func TestValidateTransition_InvalidTransitions(t *testing.T) {
	t.Parallel()

	invalid := [][2]Status{
		{StatusStarted, StatusCompleted},
		{StatusExtracting, StatusGenerating},
		{StatusAnalyzing, StatusExtracting},
		{StatusStarted, "queued"},
	}
	all := []Status{StatusStarted, StatusExtracting, StatusAnalyzing, StatusGenerating, StatusCompleted, StatusFailed}
	for _, to := range all {
		invalid = append(invalid, [2]Status{StatusCompleted, to}, [2]Status{StatusFailed, to})
	}
	for _, pair := range invalid {
		if err := ValidateTransition(pair[0], pair[1]); err == nil {
			t.Fatalf("expected invalid transition %s->%s", pair[0], pair[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatal("completed and failed must be terminal")
	}
	for _, s := range []Status{StatusStarted, StatusExtracting, StatusAnalyzing, StatusGenerating} {
		if s.IsTerminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}
