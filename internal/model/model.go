package model

import "fmt"

// Tower identifies one of the two growing units. The set is fixed at
// configuration time; towers are never created or destroyed at runtime.
type Tower string

const (
	TowerCool Tower = "cool"
	TowerWarm Tower = "warm"
)

// Towers lists every configured tower in a fixed order.
var Towers = []Tower{TowerCool, TowerWarm}

// ParseTower validates a tower identifier coming off the wire.
func ParseTower(s string) (Tower, error) {
	switch Tower(s) {
	case TowerCool, TowerWarm:
		return Tower(s), nil
	}
	return "", fmt.Errorf("%w: unknown tower %q", ErrInvalidInput, s)
}

// Quantity names a monitored sensor value. EC, pH and water temperature are
// per tower; air temperature and humidity come from the shared environment
// sensor.
type Quantity string

const (
	QuantityEC          Quantity = "ec"
	QuantityPH          Quantity = "ph"
	QuantityWaterTemp   Quantity = "water_temp"
	QuantityAirTemp     Quantity = "air_temp"
	QuantityAirHumidity Quantity = "air_humidity"
)

// EnvironmentQuantity reports whether q belongs to the shared environment
// snapshot rather than a tower snapshot.
func EnvironmentQuantity(q Quantity) bool {
	return q == QuantityAirTemp || q == QuantityAirHumidity
}

// Solution is one of the dosable stock solutions, each tied to a peristaltic
// pump channel per tower.
type Solution string

const (
	SolutionEpsomSalt       Solution = "epsom_salt"
	SolutionCalciumNitrate  Solution = "calcium_nitrate"
	SolutionPHDown          Solution = "ph_down"
	SolutionPotassiumBicarb Solution = "potassium_bicarbonate"
)

// Solutions lists the dosable solutions in a fixed order.
var Solutions = []Solution{SolutionEpsomSalt, SolutionCalciumNitrate, SolutionPHDown, SolutionPotassiumBicarb}

// ParseSolution validates a solution name coming off the wire.
func ParseSolution(s string) (Solution, error) {
	switch Solution(s) {
	case SolutionEpsomSalt, SolutionCalciumNitrate, SolutionPHDown, SolutionPotassiumBicarb:
		return Solution(s), nil
	}
	return "", fmt.Errorf("%w: unknown solution %q", ErrInvalidInput, s)
}

// Severity ranks an issue for downstream notification routing.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IssueType tags a threshold violation or system condition.
type IssueType string

const (
	IssueECLow              IssueType = "ec_low"
	IssueECHigh             IssueType = "ec_high"
	IssuePHLow              IssueType = "ph_low"
	IssuePHHigh             IssueType = "ph_high"
	IssueWaterTempHigh      IssueType = "water_temp_high"
	IssueAirTempHigh        IssueType = "air_temp_high"
	IssueHumidityLow        IssueType = "humidity_low"
	IssueHumidityHigh       IssueType = "humidity_high"
	IssueVPDLow             IssueType = "vpd_low"
	IssueVPDHigh            IssueType = "vpd_high"
	IssueReservoirChangeDue IssueType = "reservoir_change_due"
	IssueStaleData          IssueType = "stale_data"
)

// Issue is the ephemeral result of one evaluation cycle. It is not persisted;
// it either fires through the alert gate or is dropped.
type Issue struct {
	Tower      Tower     `json:"tower"`
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion"`
}
