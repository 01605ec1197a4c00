// Package monitor evaluates sensor snapshots against the threshold table.
// Evaluate is pure: identical inputs produce the identical issue list, in a
// fixed order, with no side effects.
package monitor

import (
	"fmt"
	"time"

	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/thresholds"
)

// ReservoirChangeInterval is how long a reservoir may run before a fresh
// change is due.
const ReservoirChangeInterval = 7 * 24 * time.Hour

// Evaluate maps a tower's current snapshot to zero or more issues. A quantity
// absent from the snapshot yields no issue for that quantity. The reservoir
// age check is independent of any quantity and recomputed on every call.
func Evaluate(tower model.Tower, snap state.Snapshot, limits thresholds.Limits, lastReservoirChange time.Time, now time.Time) []model.Issue {
	var issues []model.Issue

	add := func(t model.IssueType, sev model.Severity, msg, suggestion string) {
		issues = append(issues, model.Issue{
			Tower:      tower,
			Type:       t,
			Severity:   sev,
			Message:    msg,
			Suggestion: suggestion,
		})
	}

	if r, ok := snap.Get(model.QuantityEC); ok {
		switch {
		case r.Value < limits.ECMin:
			add(model.IssueECLow, model.SeverityMedium,
				fmt.Sprintf("EC low: %.2f mS/cm (target %.1f-%.1f)", r.Value, limits.ECMin, limits.ECMax),
				ecLowSuggestion(tower, limits))
		case r.Value > limits.ECMax:
			add(model.IssueECHigh, model.SeverityMedium,
				fmt.Sprintf("EC high: %.2f mS/cm (target %.1f-%.1f)", r.Value, limits.ECMin, limits.ECMax),
				"Dilute with RO water or consider fresh reservoir change if persistent")
		}
	}

	if r, ok := snap.Get(model.QuantityPH); ok {
		switch {
		case r.Value < limits.PHMin:
			add(model.IssuePHLow, model.SeverityHigh,
				fmt.Sprintf("pH low: %.2f (target %.1f-%.1f)", r.Value, limits.PHMin, limits.PHMax),
				"Unusual - check probe calibration. Normally pH drifts up, not down.")
		case r.Value > limits.PHMax:
			add(model.IssuePHHigh, model.SeverityHigh,
				fmt.Sprintf("pH high: %.2f (target %.1f-%.1f)", r.Value, limits.PHMin, limits.PHMax),
				"Add pH Down. If unstable >24h, suggest fresh reservoir change")
		}
	}

	if r, ok := snap.Get(model.QuantityWaterTemp); ok && r.Value > limits.WaterTempMax {
		add(model.IssueWaterTempHigh, model.SeverityHigh,
			fmt.Sprintf("Water temp high: %.1f°F (max %.1f°F)", r.Value, limits.WaterTempMax),
			"Cool reservoir - low oxygen risk. Check air stones. Manual DO test suggested.")
	}

	if r, ok := snap.Get(model.QuantityAirTemp); ok && r.Value > limits.AirTempMax {
		add(model.IssueAirTempHigh, model.SeverityMedium,
			fmt.Sprintf("Air temp high: %.1f°F (max %.1f°F)", r.Value, limits.AirTempMax),
			fmt.Sprintf("Reduce heat. Consider dimming LEDs to 50%%. Heat stress risk for %s.", limits.PlantType))
	}

	if r, ok := snap.Get(model.QuantityAirHumidity); ok {
		switch {
		case r.Value < limits.HumidityMin:
			add(model.IssueHumidityLow, model.SeverityLow,
				fmt.Sprintf("Humidity low: %.1f%% (target %.1f-%.1f%%)", r.Value, limits.HumidityMin, limits.HumidityMax),
				"Increase humidity - tip burn risk (especially for lettuce)")
		case r.Value > limits.HumidityMax:
			add(model.IssueHumidityHigh, model.SeverityMedium,
				fmt.Sprintf("Humidity high: %.1f%% (target %.1f-%.1f%%)", r.Value, limits.HumidityMin, limits.HumidityMax),
				"Increase air flow - disease/mold risk")
		}
	}

	if temp, okT := snap.Get(model.QuantityAirTemp); okT {
		if rh, okH := snap.Get(model.QuantityAirHumidity); okH {
			vpd := VPD(temp.Value, rh.Value)
			switch {
			case vpd < limits.VPDMin:
				add(model.IssueVPDLow, model.SeverityLow,
					fmt.Sprintf("VPD low: %.3f kPa (ideal %.1f-%.1f for %s)", vpd, limits.VPDMin, limits.VPDMax, limits.PlantType),
					"Increase air circulation or reduce humidity to promote transpiration")
			case vpd > limits.VPDMax:
				add(model.IssueVPDHigh, model.SeverityLow,
					fmt.Sprintf("VPD high: %.3f kPa (ideal %.1f-%.1f for %s)", vpd, limits.VPDMin, limits.VPDMax, limits.PlantType),
					"Increase humidity or reduce temperature to prevent plant stress")
			}
		}
	}

	if !lastReservoirChange.IsZero() {
		if age := now.Sub(lastReservoirChange); age >= ReservoirChangeInterval {
			days := int(age.Hours() / 24)
			add(model.IssueReservoirChangeDue, model.SeverityMedium,
				fmt.Sprintf("Reservoir change due (%d days since last change)", days),
				"Fresh reservoir change suggested - nutrient buildup risk")
		}
	}

	return issues
}

func ecLowSuggestion(tower model.Tower, limits thresholds.Limits) string {
	if tower == model.TowerCool {
		return fmt.Sprintf("Add 5g Lettuce Fertilizer 8-15-36 to increase EC. Current recipe: %s", limits.Recipe.Fertilizer)
	}
	return fmt.Sprintf("Add small scoop MaxiGrow (~5g) to increase EC. Current recipe: %s", limits.Recipe.Fertilizer)
}

// StaleAfter is the window beyond which a snapshot with no updates triggers a
// stale-data warning. Stale is not absent: evaluation of present quantities
// continues regardless.
const StaleAfter = 10 * time.Minute

// StaleIssue builds the warning issue for a tower whose snapshot has not been
// updated since lastUpdate.
func StaleIssue(tower model.Tower, lastUpdate time.Time, now time.Time) model.Issue {
	return model.Issue{
		Tower:    tower,
		Type:     model.IssueStaleData,
		Severity: model.SeverityLow,
		Message: fmt.Sprintf("No sensor updates for %s tower in %s",
			tower, now.Sub(lastUpdate).Round(time.Second)),
		Suggestion: "Check sensor node power and MQTT connectivity",
	}
}
