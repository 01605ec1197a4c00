package monitor

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/thresholds"
)

var (
	evalNow   = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	freshRes  = evalNow.Add(-2 * 24 * time.Hour)
	coolLimit = thresholds.Defaults()[model.TowerCool]
)

func issueTypes(issues []model.Issue) []model.IssueType {
	out := make([]model.IssueType, len(issues))
	for i, is := range issues {
		out[i] = is.Type
	}
	return out
}

func TestEvaluateAllInRange(t *testing.T) {
	snap := state.Snapshot{
		model.QuantityEC:        {Value: 1.5, At: evalNow},
		model.QuantityPH:        {Value: 6.0, At: evalNow},
		model.QuantityWaterTemp: {Value: 70.0, At: evalNow},
	}
	issues := Evaluate(model.TowerCool, snap, coolLimit, freshRes, evalNow)
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issueTypes(issues))
	}
}

func TestEvaluateECLow(t *testing.T) {
	snap := state.Snapshot{model.QuantityEC: {Value: 0.9, At: evalNow}}
	issues := Evaluate(model.TowerCool, snap, coolLimit, freshRes, evalNow)
	if len(issues) != 1 || issues[0].Type != model.IssueECLow {
		t.Fatalf("got %v, want [ec_low]", issueTypes(issues))
	}
	if issues[0].Severity != model.SeverityMedium {
		t.Errorf("severity = %s, want medium", issues[0].Severity)
	}
	if want := "EC low: 0.90 mS/cm (target 1.2-1.8)"; issues[0].Message != want {
		t.Errorf("message = %q, want %q", issues[0].Message, want)
	}
	if !strings.Contains(issues[0].Suggestion, "Lettuce Fertilizer") {
		t.Errorf("cool tower suggestion should name the lettuce fertilizer, got %q", issues[0].Suggestion)
	}
}

func TestEvaluateECLowWarmSuggestion(t *testing.T) {
	snap := state.Snapshot{model.QuantityEC: {Value: 1.2, At: evalNow}}
	warm := thresholds.Defaults()[model.TowerWarm]
	issues := Evaluate(model.TowerWarm, snap, warm, freshRes, evalNow)
	if len(issues) != 1 {
		t.Fatalf("got %v, want one issue", issueTypes(issues))
	}
	if !strings.Contains(issues[0].Suggestion, "MaxiGrow") {
		t.Errorf("warm tower suggestion should name MaxiGrow, got %q", issues[0].Suggestion)
	}
}

func TestEvaluatePHHigh(t *testing.T) {
	snap := state.Snapshot{model.QuantityPH: {Value: 6.5, At: evalNow}}
	issues := Evaluate(model.TowerCool, snap, coolLimit, freshRes, evalNow)
	if len(issues) != 1 || issues[0].Type != model.IssuePHHigh {
		t.Fatalf("got %v, want [ph_high]", issueTypes(issues))
	}
	if issues[0].Severity != model.SeverityHigh {
		t.Errorf("severity = %s, want high", issues[0].Severity)
	}
}

func TestEvaluateAbsentQuantitiesYieldNothing(t *testing.T) {
	issues := Evaluate(model.TowerCool, state.Snapshot{}, coolLimit, freshRes, evalNow)
	if len(issues) != 0 {
		t.Fatalf("empty snapshot produced %v", issueTypes(issues))
	}
}

func TestEvaluateVPDNeedsBothInputs(t *testing.T) {
	// Humidity alone in range, no air temp: no VPD issue possible.
	snap := state.Snapshot{model.QuantityAirHumidity: {Value: 60.0, At: evalNow}}
	issues := Evaluate(model.TowerCool, snap, coolLimit, freshRes, evalNow)
	if len(issues) != 0 {
		t.Fatalf("got %v, want none", issueTypes(issues))
	}
}

func TestEvaluateOrderIsFixed(t *testing.T) {
	// Hot dry air over a weak overheated reservoir: every check trips.
	snap := state.Snapshot{
		model.QuantityEC:          {Value: 0.5, At: evalNow},
		model.QuantityPH:          {Value: 7.0, At: evalNow},
		model.QuantityWaterTemp:   {Value: 80.0, At: evalNow},
		model.QuantityAirTemp:     {Value: 85.0, At: evalNow},
		model.QuantityAirHumidity: {Value: 30.0, At: evalNow},
	}
	issues := Evaluate(model.TowerCool, snap, coolLimit, evalNow.Add(-8*24*time.Hour), evalNow)

	want := []model.IssueType{
		model.IssueECLow,
		model.IssuePHHigh,
		model.IssueWaterTempHigh,
		model.IssueAirTempHigh,
		model.IssueHumidityLow,
		model.IssueVPDHigh,
		model.IssueReservoirChangeDue,
	}
	if !reflect.DeepEqual(issueTypes(issues), want) {
		t.Fatalf("order = %v, want %v", issueTypes(issues), want)
	}

	// Same inputs, same output.
	again := Evaluate(model.TowerCool, snap, coolLimit, evalNow.Add(-8*24*time.Hour), evalNow)
	if !reflect.DeepEqual(issues, again) {
		t.Fatal("evaluation is not deterministic")
	}
}

func TestEvaluateReservoirDueBoundary(t *testing.T) {
	if issues := Evaluate(model.TowerCool, state.Snapshot{}, coolLimit, evalNow.Add(-ReservoirChangeInterval+time.Minute), evalNow); len(issues) != 0 {
		t.Fatalf("just under 7 days fired %v", issueTypes(issues))
	}
	issues := Evaluate(model.TowerCool, state.Snapshot{}, coolLimit, evalNow.Add(-ReservoirChangeInterval), evalNow)
	if len(issues) != 1 || issues[0].Type != model.IssueReservoirChangeDue {
		t.Fatalf("at 7 days got %v, want [reservoir_change_due]", issueTypes(issues))
	}
	if want := "Reservoir change due (7 days since last change)"; issues[0].Message != want {
		t.Errorf("message = %q, want %q", issues[0].Message, want)
	}
}

func TestEvaluateZeroReservoirTimeSkipsCheck(t *testing.T) {
	issues := Evaluate(model.TowerCool, state.Snapshot{}, coolLimit, time.Time{}, evalNow)
	if len(issues) != 0 {
		t.Fatalf("zero change time fired %v", issueTypes(issues))
	}
}

func TestStaleIssue(t *testing.T) {
	last := evalNow.Add(-25 * time.Minute)
	issue := StaleIssue(model.TowerWarm, last, evalNow)
	if issue.Type != model.IssueStaleData || issue.Severity != model.SeverityLow {
		t.Fatalf("got %s/%s, want stale_data/low", issue.Type, issue.Severity)
	}
	if want := "No sensor updates for warm tower in 25m0s"; issue.Message != want {
		t.Errorf("message = %q, want %q", issue.Message, want)
	}
}
