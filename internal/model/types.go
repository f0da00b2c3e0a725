package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an acknowledge or query targets an
// unknown vessel or alert id.
var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusNormal    Status = "normal"
	StatusCaution   Status = "caution"
	StatusWarning   Status = "warning"
	StatusEmergency Status = "emergency"
)

type OperationalState string

const (
	OpUnderway OperationalState = "underway"
	OpDocked   OperationalState = "docked"
	OpOffline  OperationalState = "offline"
)

func ParseOperationalState(s string) (OperationalState, bool) {
	switch OperationalState(s) {
	case OpUnderway, OpDocked, OpOffline:
		return OperationalState(s), true
	}
	return "", false
}

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertType string

const (
	AlertEngine    AlertType = "engine"
	AlertPower     AlertType = "power"
	AlertSafety    AlertType = "safety"
	AlertEmergency AlertType = "emergency"
)

// Group fields are pointers so a fragment can distinguish "not reported"
// from a zero reading. A nil field in a fragment leaves the merged value
// untouched.

type EngineGroup struct {
	RPM         *float64 `json:"rpm,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	FuelFlow    *float64 `json:"fuelFlow,omitempty"`
}

type PowerGroup struct {
	BatterySOC    *float64 `json:"batterySOC,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	GeneratorLoad *float64 `json:"generatorLoad,omitempty"`
	Mode          *string  `json:"mode,omitempty"`
}

type NavigationGroup struct {
	Speed   *float64 `json:"speed,omitempty"`
	Heading *float64 `json:"heading,omitempty"`
	Route   *string  `json:"route,omitempty"`
}

type LocationGroup struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type SafetyGroup struct {
	BilgeLevel *float64 `json:"bilgeLevel,omitempty"`
	CO2Level   *float64 `json:"co2Level,omitempty"`
	FireAlarm  *bool    `json:"fireAlarm,omitempty"`
}

// VesselState is the canonical, fully merged record for one vessel. The
// reconciler owns the live instance; everything downstream works on
// copies.
type VesselState struct {
	VesselID         string           `json:"vesselId"`
	LastSeen         time.Time        `json:"lastSeen"`
	Status           Status           `json:"status"`
	OperationalState OperationalState `json:"operationalState"`

	// Operational holds an explicitly reported operational state. When
	// set it wins over every derivation rule and suppresses the offline
	// sweep for this vessel.
	Operational *OperationalState `json:"operational,omitempty"`

	Engine     EngineGroup     `json:"engine"`
	Power      PowerGroup      `json:"power"`
	Navigation NavigationGroup `json:"navigation"`
	Location   LocationGroup   `json:"location"`
	Safety     SafetyGroup     `json:"safety"`
}

// TelemetryFragment is a partial update for one vessel, normalized from
// whichever transport delivered it. Fragments are consumed once by the
// reconciler and then discarded.
type TelemetryFragment struct {
	VesselID    string    `json:"vesselId"`
	ArrivalTime time.Time `json:"arrivalTime"`
	Source      string    `json:"source,omitempty"`

	Operational *string         `json:"operational,omitempty"`
	Engine      EngineGroup     `json:"engine"`
	Power       PowerGroup      `json:"power"`
	Navigation  NavigationGroup `json:"navigation"`
	Location    LocationGroup   `json:"location"`
	Safety      SafetyGroup     `json:"safety"`
}

// Empty reports whether the fragment carries no mergeable field at all.
func (f TelemetryFragment) Empty() bool {
	return f.Operational == nil &&
		f.Engine == (EngineGroup{}) &&
		f.Power == (PowerGroup{}) &&
		f.Navigation == (NavigationGroup{}) &&
		f.Location == (LocationGroup{}) &&
		f.Safety == (SafetyGroup{})
}

type Alert struct {
	ID             string     `json:"id"`
	VesselID       string     `json:"vesselId"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

type IntervalType string

const (
	Interval5Min IntervalType = "5min"
	IntervalHour IntervalType = "hour"
)

func (i IntervalType) Duration() time.Duration {
	if i == IntervalHour {
		return time.Hour
	}
	return 5 * time.Minute
}

// AggregateBucket is a min/max/avg/count rollup for one metric of one
// vessel over [BucketStart, BucketStart+interval).
type AggregateBucket struct {
	VesselID    string       `json:"vesselId"`
	Metric      string       `json:"metric"`
	Interval    IntervalType `json:"interval"`
	BucketStart time.Time    `json:"bucketStart"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Avg         float64      `json:"avg"`
	Count       int64        `json:"count"`
}

// RouteStatus is maintained by the dashboard control plane and only read
// here for broadcast.
type RouteStatus struct {
	RouteID     string `json:"routeId"`
	Status      string `json:"status"`
	VesselCount int    `json:"vesselCount"`
	DelayCount  int    `json:"delayCount"`
}

type WeatherReport struct {
	Zone          string    `json:"zone"`
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection string    `json:"windDirection"`
	WaveHeight    float64   `json:"waveHeight"`
	Conditions    string    `json:"conditions"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Event is an alert-derived row in the historical store.
type Event struct {
	VesselID  string    `json:"vesselId"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"eventType"`
	Severity  string    `json:"severity"`
	Payload   string    `json:"payload,omitempty"`
}

type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int64   `json:"count"`
}

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
