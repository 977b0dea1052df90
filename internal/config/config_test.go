package config

import (
	"reflect"
	"testing"
)

func TestParseZoneRangeMixedRangesAndSingles(t *testing.T) {
	got, err := ParseZoneRange("1-3,20,10-12")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3, 10, 11, 12, 20}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseZoneRangeDeduplicates(t *testing.T) {
	got, err := ParseZoneRange("1-3,2,3")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseZoneRangeRejectsInvertedRange(t *testing.T) {
	if _, err := ParseZoneRange("5-3"); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestNormalizePasswordZeroPads(t *testing.T) {
	cfg := &Config{AlarmPassword: "12", PasswordLength: 4}
	if err := cfg.normalizePassword(); err != nil {
		t.Fatal(err)
	}
	if cfg.AlarmPassword != "0012" {
		t.Errorf("got %q, want 0012", cfg.AlarmPassword)
	}
}

func TestNormalizePasswordRejectsNonDigits(t *testing.T) {
	cfg := &Config{AlarmPassword: "12a4", PasswordLength: 4}
	if err := cfg.normalizePassword(); err == nil {
		t.Error("expected error for non-digit password")
	}
}

func TestValidateRequiresMQTTBroker(t *testing.T) {
	cfg := defaults()
	cfg.AlarmPassword = "1234"
	if err := cfg.validate(); err == nil {
		t.Error("expected error when MQTTBroker is empty")
	}
}

func TestZoneIDsPrefersRangeOverCount(t *testing.T) {
	cfg := &Config{ZoneRange: "1-2", ZoneCount: 10}
	ids, err := cfg.ZoneIDs()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Errorf("got %v", ids)
	}
}
