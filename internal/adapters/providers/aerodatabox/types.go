package aerodatabox

import (
	"strings"
	"time"

	"aeroclaim/internal/adapters/providers"
)

// Vendor-shaped JSON structures. Field names follow the AeroDataBox schema;
// only what the normalizers read is declared.

type vendorFlight struct {
	Number  string `json:"number"`
	Status  string `json:"status"`
	Airline struct {
		Name string `json:"name"`
	} `json:"airline"`
	Departure           vendorMovement `json:"departure"`
	Arrival             vendorMovement `json:"arrival"`
	GreatCircleDistance struct {
		KM float64 `json:"km"`
	} `json:"greatCircleDistance"`
}

type vendorMovement struct {
	Airport struct {
		IATA string `json:"iata"`
		Name string `json:"name"`
	} `json:"airport"`
	ScheduledTime vendorTime `json:"scheduledTime"`
	RevisedTime   vendorTime `json:"revisedTime"`
	RunwayTime    vendorTime `json:"runwayTime"`
	Terminal      string     `json:"terminal"`
}

type vendorTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

func (t vendorTime) parse() *time.Time {
	if t.UTC == "" {
		return nil
	}
	for _, layout := range []string{vendorTimeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, t.UTC); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

// parseLocal keeps the vendor's airport wall-clock time, offset included.
func (t vendorTime) parseLocal() *time.Time {
	if t.Local == "" {
		return nil
	}
	for _, layout := range []string{vendorLocalTimeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, t.Local); err == nil {
			return &parsed
		}
	}
	return nil
}

type vendorAirport struct {
	IATA             string `json:"iata"`
	ICAO             string `json:"icao"`
	ShortName        string `json:"shortName"`
	FullName         string `json:"fullName"`
	MunicipalityName string `json:"municipalityName"`
	Location         struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
	Country struct {
		Code string `json:"code"`
	} `json:"country"`
	TimeZone string `json:"timeZone"`
}

func (vf vendorFlight) normalize() providers.FlightStatus {
	return providers.FlightStatus{
		FlightNumber: normalizeFlightNumber(vf.Number),
		Airline:      vf.Airline.Name,
		State:        normalizeState(vf.Status),
		Departure:    vf.Departure.normalize(),
		Arrival:      vf.Arrival.normalize(),
		DistanceKm:   vf.GreatCircleDistance.KM,
	}
}

func (vm vendorMovement) normalize() providers.Movement {
	m := providers.Movement{
		AirportIATA: strings.ToUpper(vm.Airport.IATA),
		AirportName: vm.Airport.Name,
		Terminal:    vm.Terminal,
	}
	if t := vm.ScheduledTime.parse(); t != nil {
		m.ScheduledUTC = *t
	}
	if t := vm.ScheduledTime.parseLocal(); t != nil {
		m.ScheduledLocal = *t
	}
	// Runway time is the authoritative actual; the revised estimate is the
	// best available fallback for flights still in the air.
	if t := vm.RunwayTime.parse(); t != nil {
		m.ActualUTC = t
	} else if t := vm.RevisedTime.parse(); t != nil {
		m.ActualUTC = t
	}
	return m
}

func (va vendorAirport) normalize() providers.Airport {
	name := va.FullName
	if name == "" {
		name = va.ShortName
	}
	return providers.Airport{
		IATA:        strings.ToUpper(va.IATA),
		ICAO:        strings.ToUpper(va.ICAO),
		Name:        name,
		City:        va.MunicipalityName,
		CountryCode: va.Country.Code,
		Latitude:    va.Location.Lat,
		Longitude:   va.Location.Lon,
		TimeZone:    va.TimeZone,
	}
}

// normalizeState maps vendor status strings onto the internal state machine.
func normalizeState(status string) providers.FlightState {
	switch strings.ToLower(status) {
	case "expected", "checkin", "boarding", "gateclosed", "delayed", "scheduled":
		return providers.StateScheduled
	case "departed", "enroute", "approaching":
		return providers.StateActive
	case "arrived":
		return providers.StateLanded
	case "canceled", "cancelled", "canceleduncertain":
		return providers.StateCancelled
	case "diverted":
		return providers.StateDiverted
	default:
		return providers.StateUnknown
	}
}
