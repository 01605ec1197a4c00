// Package thresholds holds the static per-tower operating ranges. The table
// is loaded once at startup and never mutated afterwards.
package thresholds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dualtower/hydroai/internal/model"
)

// Recipe is the nutrient mix text for a tower, used only to template alert
// suggestions.
type Recipe struct {
	Buffer      string `json:"buffer"`
	Fertilizer  string `json:"fertilizer"`
	Supplements string `json:"supplements"`
}

// Limits are the operating bounds for one tower. Temperatures are in °F,
// EC in mS/cm, VPD in kPa.
type Limits struct {
	ECMin        float64 `json:"ec_min"`
	ECMax        float64 `json:"ec_max"`
	PHMin        float64 `json:"ph_min"`
	PHMax        float64 `json:"ph_max"`
	WaterTempMax float64 `json:"water_temp_max"`
	AirTempMin   float64 `json:"air_temp_min"`
	AirTempMax   float64 `json:"air_temp_max"`
	HumidityMin  float64 `json:"humidity_min"`
	HumidityMax  float64 `json:"humidity_max"`
	VPDMin       float64 `json:"vpd_min"`
	VPDMax       float64 `json:"vpd_max"`
	PlantType    string  `json:"plant_type"`
	Recipe       Recipe  `json:"recipe"`
}

// Table maps each tower to its limits.
type Table map[model.Tower]Limits

// Defaults returns the compiled-in table for the two towers.
func Defaults() Table {
	return Table{
		model.TowerCool: {
			ECMin:        1.2,
			ECMax:        1.8,
			PHMin:        5.8,
			PHMax:        6.2,
			WaterTempMax: 75.0,
			AirTempMin:   55.0,
			AirTempMax:   70.0,
			HumidityMin:  50.0,
			HumidityMax:  70.0,
			VPDMin:       0.4,
			VPDMax:       0.8,
			PlantType:    "lettuce/dill",
			Recipe: Recipe{
				Buffer:      "5ml CalMagic + 10g Calcium Nitrate",
				Fertilizer:  "10-12g Lettuce Fertilizer 8-15-36",
				Supplements: "5g Epsom Salt, 5ml Armor Si",
			},
		},
		model.TowerWarm: {
			ECMin:        1.5,
			ECMax:        2.0,
			PHMin:        5.8,
			PHMax:        6.2,
			WaterTempMax: 75.0,
			AirTempMin:   70.0,
			AirTempMax:   80.0,
			HumidityMin:  50.0,
			HumidityMax:  60.0,
			VPDMin:       0.8,
			VPDMax:       1.2,
			PlantType:    "basil/oregano",
			Recipe: Recipe{
				Buffer:      "5ml CalMagic",
				Fertilizer:  "10g MaxiGrow (1 big + 1 little scoop)",
				Supplements: "5ml Armor Si, optional 1-2g Epsom Salt",
			},
		},
	}
}

// Load returns the defaults, overridden per tower by a JSON file when path is
// non-empty. Unknown towers in the file are rejected.
func Load(path string) (Table, error) {
	table := Defaults()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	var overrides map[string]Limits
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	for name, lim := range overrides {
		tower, err := model.ParseTower(name)
		if err != nil {
			return nil, err
		}
		table[tower] = lim
	}
	return table, nil
}
