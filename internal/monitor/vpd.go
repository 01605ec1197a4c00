package monitor

import "math"

// VPD computes the vapor pressure deficit in kPa from air temperature (°F)
// and relative humidity (%), using the Magnus formula for saturation vapor
// pressure.
func VPD(airTempF, humidityPct float64) float64 {
	tempC := (airTempF - 32.0) * 5.0 / 9.0
	satKPa := 0.61078 * math.Exp((17.27*tempC)/(tempC+237.3))
	airKPa := satKPa * (humidityPct / 100.0)
	return math.Round((satKPa-airKPa)*1000) / 1000
}
