package dosing

import (
	"testing"

	"github.com/dualtower/hydroai/internal/model"
)

var testConcentrations = map[model.Solution]float64{
	model.SolutionEpsomSalt:       100.0,
	model.SolutionCalciumNitrate:  150.0,
	model.SolutionPotassiumBicarb: 50.0,
	model.SolutionPHDown:          10.0,
}

func TestDoseVolumePHDown(t *testing.T) {
	// 0.3 pH points on a 5 gal reservoir at 10 mL per gallon per point.
	got := DoseVolume(model.SolutionPHDown, 0.3, 5.0, testConcentrations)
	if got != 15.0 {
		t.Errorf("volume = %v, want 15.0", got)
	}
}

func TestDoseVolumeSignIgnored(t *testing.T) {
	up := DoseVolume(model.SolutionPHDown, 0.3, 5.0, testConcentrations)
	down := DoseVolume(model.SolutionPHDown, -0.3, 5.0, testConcentrations)
	if up != down {
		t.Errorf("adjustment sign changed the volume: %v vs %v", up, down)
	}
}

func TestDoseVolumeCappedAtSingleDoseLimit(t *testing.T) {
	// 2.0 points would be 100 mL uncapped.
	got := DoseVolume(model.SolutionPHDown, 2.0, 5.0, testConcentrations)
	if got != 50.0 {
		t.Errorf("volume = %v, want the 50 mL cap", got)
	}
}

func TestDoseVolumeSaltFromConcentration(t *testing.T) {
	// 0.2 mS/cm on 5 gal: 0.2 * 18.92705 L = 3.78541 g of salt, at 100 g/L
	// stock that is 37.85 mL.
	got := DoseVolume(model.SolutionEpsomSalt, 0.2, 5.0, testConcentrations)
	if got != 37.85 {
		t.Errorf("volume = %v, want 37.85", got)
	}
}

func TestDoseVolumeMissingConcentration(t *testing.T) {
	got := DoseVolume(model.SolutionEpsomSalt, 0.5, 5.0, map[model.Solution]float64{})
	if got != 0 {
		t.Errorf("volume = %v, want 0 for unknown stock concentration", got)
	}
}

func TestDoseVolumeUnknownSolution(t *testing.T) {
	if got := DoseVolume(model.Solution("bleach"), 1.0, 5.0, testConcentrations); got != 0 {
		t.Errorf("volume = %v, want 0", got)
	}
}

func TestSolutionForDeficiency(t *testing.T) {
	cases := map[string]model.Solution{
		"magnesium": model.SolutionEpsomSalt,
		"calcium":   model.SolutionCalciumNitrate,
		"nitrogen":  model.SolutionCalciumNitrate,
		"potassium": model.SolutionPotassiumBicarb,
	}
	for deficiency, want := range cases {
		got, ok := SolutionForDeficiency(deficiency)
		if !ok || got != want {
			t.Errorf("SolutionForDeficiency(%q) = %v, %v; want %v", deficiency, got, ok, want)
		}
	}
	if _, ok := SolutionForDeficiency("iron"); ok {
		t.Error("unmapped deficiency should not resolve")
	}
}
