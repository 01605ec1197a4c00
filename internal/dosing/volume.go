package dosing

import (
	"math"

	"github.com/dualtower/hydroai/internal/config"
	"github.com/dualtower/hydroai/internal/model"
)

// Target pH band shared by both towers.
const (
	PHTargetMin = 5.8
	PHTargetMax = 6.2
)

// DeficiencyDoseML is the conservative fixed volume used for camera-detected
// nutrient deficiencies, where no sensor quantifies the shortfall.
const DeficiencyDoseML = 10.0

// SolutionForDeficiency maps a detected deficiency to the stock solution that
// supplies it.
func SolutionForDeficiency(deficiency string) (model.Solution, bool) {
	switch deficiency {
	case "magnesium":
		return model.SolutionEpsomSalt, true
	case "calcium", "nitrogen":
		return model.SolutionCalciumNitrate, true
	case "potassium":
		return model.SolutionPotassiumBicarb, true
	}
	return "", false
}

// DoseVolume computes the volume in mL needed for the target adjustment
// (pH points or mS/cm of EC, sign ignored). These are conservative empirical
// estimates, not calibrated chemistry; the 50 mL cap bounds the damage of a
// bad estimate.
func DoseVolume(solution model.Solution, targetAdjustment, reservoirGallons float64, concentrations map[model.Solution]float64) float64 {
	adj := math.Abs(targetAdjustment)

	var volumeML float64
	switch solution {
	case model.SolutionPHDown:
		// ~1 mL of 10% phosphoric acid per gallon lowers pH by ~0.1.
		volumeML = adj * reservoirGallons * 10
	case model.SolutionPotassiumBicarb:
		volumeML = adj * reservoirGallons * 8
	case model.SolutionEpsomSalt, model.SolutionCalciumNitrate:
		// 1 g/L of dissolved salt raises EC by ~1.0 mS/cm.
		concentration := concentrations[solution]
		if concentration <= 0 {
			return 0
		}
		reservoirLiters := reservoirGallons * 3.78541
		targetGrams := adj * reservoirLiters
		volumeML = (targetGrams / concentration) * 1000
	default:
		return 0
	}

	if volumeML > config.SingleDoseCapML {
		volumeML = config.SingleDoseCapML
	}
	return math.Round(volumeML*100) / 100
}
