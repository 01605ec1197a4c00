package thresholds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dualtower/hydroai/internal/model"
)

func TestDefaultsCoverBothTowers(t *testing.T) {
	table := Defaults()
	for _, tower := range model.Towers {
		lim, ok := table[tower]
		if !ok {
			t.Fatalf("no limits for %s", tower)
		}
		if lim.ECMin >= lim.ECMax || lim.PHMin >= lim.PHMax {
			t.Errorf("%s: inverted bounds %+v", tower, lim)
		}
	}
	if table[model.TowerWarm].ECMin <= table[model.TowerCool].ECMin {
		t.Error("warm tower herbs expect a stronger minimum EC than cool tower greens")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table[model.TowerCool].ECMin != 1.2 {
		t.Errorf("ec_min = %v, want default 1.2", table[model.TowerCool].ECMin)
	}
}

func TestLoadOverridesPerTower(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	override := `{"cool": {"ec_min": 1.0, "ec_max": 1.6, "ph_min": 5.7, "ph_max": 6.3,
		"water_temp_max": 74, "air_temp_min": 55, "air_temp_max": 70,
		"humidity_min": 50, "humidity_max": 70, "vpd_min": 0.4, "vpd_max": 0.8,
		"plant_type": "spinach"}}`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table[model.TowerCool].ECMin != 1.0 || table[model.TowerCool].PlantType != "spinach" {
		t.Errorf("cool limits not overridden: %+v", table[model.TowerCool])
	}
	if table[model.TowerWarm].ECMin != 1.5 {
		t.Errorf("warm limits should keep defaults, got %+v", table[model.TowerWarm])
	}
}

func TestLoadRejectsUnknownTower(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	if err := os.WriteFile(path, []byte(`{"greenhouse": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("unknown tower name must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("missing file must error, not silently use defaults")
	}
}
