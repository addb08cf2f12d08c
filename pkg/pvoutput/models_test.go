package pvoutput

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeStatusAllFieldsPresent(t *testing.T) {
	status, err := decodeStatus("20240615,11:35,12840,4250,9120,380,0.85,24.5,233.7")
	if err != nil {
		t.Fatalf("decodeStatus: %v", err)
	}

	want := time.Date(2024, time.June, 15, 11, 35, 0, 0, time.UTC)
	if !status.ReportedAt.Equal(want) {
		t.Fatalf("ReportedAt = %s, want %s", status.ReportedAt, want)
	}
	if *status.EnergyGeneration != 12840 || *status.PowerGeneration != 4250 {
		t.Fatalf("generation = %d/%d", *status.EnergyGeneration, *status.PowerGeneration)
	}
	if *status.EnergyConsumption != 9120 || *status.PowerConsumption != 380 {
		t.Fatalf("consumption = %d/%d", *status.EnergyConsumption, *status.PowerConsumption)
	}
	if *status.NormalizedOutput != 0.85 {
		t.Fatalf("NormalizedOutput = %v", *status.NormalizedOutput)
	}
	if *status.Temperature != 24.5 || *status.Voltage != 233.7 {
		t.Fatalf("temperature/voltage = %v/%v", *status.Temperature, *status.Voltage)
	}
}

func TestDecodeStatusFieldCount(t *testing.T) {
	cases := []string{
		"",
		"20240615",
		"20240615,11:35,12840,4250,9120,380,0.85,24.5",
		"20240615,11:35,12840,4250,9120,380,0.85,24.5,233.7,extra",
	}
	for _, line := range cases {
		if _, err := decodeStatus(line); err == nil {
			t.Fatalf("expected field count error for %q", line)
		} else if !strings.Contains(err.Error(), "fields") {
			t.Fatalf("unexpected error for %q: %v", line, err)
		}
	}
}

func TestDecodeStatusRequiredTimestamp(t *testing.T) {
	if _, err := decodeStatus(",11:35,12840,4250,9120,380,0.85,24.5,233.7"); err == nil {
		t.Fatal("expected error for empty date")
	}
	if _, err := decodeStatus("20240615,,12840,4250,9120,380,0.85,24.5,233.7"); err == nil {
		t.Fatal("expected error for empty time")
	}
	if _, err := decodeStatus("2024-06-15,11:35,12840,4250,9120,380,0.85,24.5,233.7"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestDecodeStatusBadNumber(t *testing.T) {
	_, err := decodeStatus("20240615,11:35,twelve,4250,9120,380,0.85,24.5,233.7")
	if err == nil {
		t.Fatal("expected error for non-numeric field")
	}
	if !strings.Contains(err.Error(), "energy_generation") {
		t.Fatalf("error should name the offending field, got %v", err)
	}
}

func TestDecodeSystemIgnoresTrailingSections(t *testing.T) {
	system, err := decodeSystem("Home,3000,,12,250,Longi,1,3000,Fronius,NW,15.0,No,20200301,52.1,4.3,5;;0")
	if err != nil {
		t.Fatalf("decodeSystem: %v", err)
	}
	if system.SystemName != "Home" {
		t.Fatalf("SystemName = %q", system.SystemName)
	}
	if system.Zipcode != nil {
		t.Fatalf("Zipcode should be absent, got %v", *system.Zipcode)
	}
	if system.Orientation == nil || *system.Orientation != "NW" {
		t.Fatalf("Orientation = %v", system.Orientation)
	}
}

func TestDecodeSystemFieldCount(t *testing.T) {
	if _, err := decodeSystem("Home,3000,1234"); err == nil {
		t.Fatal("expected field count error")
	}
}
