package pvoutput

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout  = "20060102"
	clockLayout = "15:04"
)

// Status holds the latest status information and live output data reported
// by a monitored system. Numeric fields are nil when the system did not
// report the reading (PVOutput sends "NaN" or an empty field).
type Status struct {
	ReportedAt time.Time

	EnergyGeneration  *int
	PowerGeneration   *int
	EnergyConsumption *int
	PowerConsumption  *int
	NormalizedOutput  *float64
	Temperature       *float64
	Voltage           *float64
}

// System holds descriptive metadata about a monitored PV installation.
type System struct {
	SystemName string

	SystemSize     *int
	Zipcode        *string
	Panels         *int
	PanelPower     *int
	PanelBrand     *string
	Inverters      *int
	InverterPower  *int
	InverterBrand  *string
	Orientation    *string
	ArrayTilt      *float64
	Shade          *string
	InstallDate    *time.Time
	Latitude       *float64
	Longitude      *float64
	StatusInterval *int
}

// field maps one positional CSV value onto a record attribute.
type field struct {
	name string
	set  func(value string) error
}

// decodeFields runs the positional decoder over one comma-separated line.
// The line must contain exactly len(fields) values; every value is either
// fully decoded or the whole record fails.
func decodeFields(line string, fields []field) error {
	values := strings.Split(line, ",")
	if len(values) != len(fields) {
		return fmt.Errorf("expected %d fields, got %d", len(fields), len(values))
	}
	for i, f := range fields {
		if err := f.set(values[i]); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func decodeStatus(body string) (Status, error) {
	var (
		s            Status
		reportedDate time.Time
		reportedTime time.Time
	)

	fields := []field{
		{"reported_date", setDate(&reportedDate)},
		{"reported_time", setClock(&reportedTime)},
		{"energy_generation", setOptInt(&s.EnergyGeneration)},
		{"power_generation", setOptInt(&s.PowerGeneration)},
		{"energy_consumption", setOptInt(&s.EnergyConsumption)},
		{"power_consumption", setOptInt(&s.PowerConsumption)},
		{"normalized_output", setOptFloat(&s.NormalizedOutput)},
		{"temperature", setOptFloat(&s.Temperature)},
		{"voltage", setOptFloat(&s.Voltage)},
	}

	if err := decodeFields(strings.TrimSpace(body), fields); err != nil {
		return Status{}, err
	}

	s.ReportedAt = time.Date(
		reportedDate.Year(), reportedDate.Month(), reportedDate.Day(),
		reportedTime.Hour(), reportedTime.Minute(), 0, 0, time.UTC,
	)
	return s, nil
}

func decodeSystem(body string) (System, error) {
	var s System

	fields := []field{
		{"system_name", setString(&s.SystemName)},
		{"system_size", setOptInt(&s.SystemSize)},
		{"zipcode", setOptString(&s.Zipcode)},
		{"panels", setOptInt(&s.Panels)},
		{"panel_power", setOptInt(&s.PanelPower)},
		{"panel_brand", setOptString(&s.PanelBrand)},
		{"inverters", setOptInt(&s.Inverters)},
		{"inverter_power", setOptInt(&s.InverterPower)},
		{"inverter_brand", setOptString(&s.InverterBrand)},
		{"orientation", setOptString(&s.Orientation)},
		{"array_tilt", setOptFloat(&s.ArrayTilt)},
		{"shade", setOptString(&s.Shade)},
		{"install_date", setOptDate(&s.InstallDate)},
		{"latitude", setOptFloat(&s.Latitude)},
		{"longitude", setOptFloat(&s.Longitude)},
		{"status_interval", setOptInt(&s.StatusInterval)},
	}

	// The system endpoint appends secondary sections after semicolons;
	// only the first section carries the system record.
	section, _, _ := strings.Cut(strings.TrimSpace(body), ";")
	if err := decodeFields(section, fields); err != nil {
		return System{}, err
	}
	return s, nil
}

// absent reports whether the wire value marks a missing reading.
func absent(value string) bool {
	return value == "" || value == "NaN"
}

func setDate(dst *time.Time) func(string) error {
	return func(value string) error {
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q", value)
		}
		*dst = t
		return nil
	}
}

func setOptDate(dst **time.Time) func(string) error {
	return func(value string) error {
		if absent(value) {
			return nil
		}
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q", value)
		}
		*dst = &t
		return nil
	}
}

func setClock(dst *time.Time) func(string) error {
	return func(value string) error {
		t, err := time.Parse(clockLayout, value)
		if err != nil {
			return fmt.Errorf("invalid time %q", value)
		}
		*dst = t
		return nil
	}
}

func setString(dst *string) func(string) error {
	return func(value string) error {
		*dst = value
		return nil
	}
}

func setOptString(dst **string) func(string) error {
	return func(value string) error {
		if absent(value) {
			return nil
		}
		v := value
		*dst = &v
		return nil
	}
}

func setOptInt(dst **int) func(string) error {
	return func(value string) error {
		if absent(value) {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		*dst = &n
		return nil
	}
}

func setOptFloat(dst **float64) func(string) error {
	return func(value string) error {
		if absent(value) {
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		*dst = &f
		return nil
	}
}
