package model

import "time"

// Metric names double as raw-table column names; keep them in sync with
// the historical store schema.
const (
	MetricEngineRPM     = "engine_rpm"
	MetricEngineTemp    = "engine_temperature"
	MetricFuelFlow      = "engine_fuel_flow"
	MetricBatterySOC    = "battery_soc"
	MetricVoltage       = "voltage"
	MetricGeneratorLoad = "generator_load"
	MetricSpeed         = "speed"
	MetricHeading       = "heading"
	MetricLatitude      = "latitude"
	MetricLongitude     = "longitude"
	MetricBilgeLevel    = "bilge_level"
	MetricCO2Level      = "co2_level"
)

// Metrics lists every numeric metric in raw-table column order.
var Metrics = []string{
	MetricEngineRPM,
	MetricEngineTemp,
	MetricFuelFlow,
	MetricBatterySOC,
	MetricVoltage,
	MetricGeneratorLoad,
	MetricSpeed,
	MetricHeading,
	MetricLatitude,
	MetricLongitude,
	MetricBilgeLevel,
	MetricCO2Level,
}

func IsMetric(name string) bool {
	for _, m := range Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Sample is one raw history row, keyed by (VesselID, Timestamp). A nil
// field means the vessel had not reported that metric yet; it is stored
// as NULL and excluded from aggregation.
type Sample struct {
	VesselID  string
	Timestamp time.Time

	EngineRPM     *float64
	EngineTemp    *float64
	FuelFlow      *float64
	BatterySOC    *float64
	Voltage       *float64
	GeneratorLoad *float64
	Speed         *float64
	Heading       *float64
	Latitude      *float64
	Longitude     *float64
	BilgeLevel    *float64
	CO2Level      *float64
}

// SampleFrom flattens a merged vessel state into one raw history row.
func SampleFrom(s VesselState) Sample {
	return Sample{
		VesselID:      s.VesselID,
		Timestamp:     s.LastSeen,
		EngineRPM:     s.Engine.RPM,
		EngineTemp:    s.Engine.Temperature,
		FuelFlow:      s.Engine.FuelFlow,
		BatterySOC:    s.Power.BatterySOC,
		Voltage:       s.Power.Voltage,
		GeneratorLoad: s.Power.GeneratorLoad,
		Speed:         s.Navigation.Speed,
		Heading:       s.Navigation.Heading,
		Latitude:      s.Location.Latitude,
		Longitude:     s.Location.Longitude,
		BilgeLevel:    s.Safety.BilgeLevel,
		CO2Level:      s.Safety.CO2Level,
	}
}

// Metric returns the sample's value for a metric name and whether the
// metric was present.
func (s Sample) Metric(name string) (float64, bool) {
	var p *float64
	switch name {
	case MetricEngineRPM:
		p = s.EngineRPM
	case MetricEngineTemp:
		p = s.EngineTemp
	case MetricFuelFlow:
		p = s.FuelFlow
	case MetricBatterySOC:
		p = s.BatterySOC
	case MetricVoltage:
		p = s.Voltage
	case MetricGeneratorLoad:
		p = s.GeneratorLoad
	case MetricSpeed:
		p = s.Speed
	case MetricHeading:
		p = s.Heading
	case MetricLatitude:
		p = s.Latitude
	case MetricLongitude:
		p = s.Longitude
	case MetricBilgeLevel:
		p = s.BilgeLevel
	case MetricCO2Level:
		p = s.CO2Level
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}
