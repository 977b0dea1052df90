package bridge

import (
	"testing"

	"github.com/intelbras/alarm-bridge/internal/legacy"
)

func TestLegacyStateLabelPriority(t *testing.T) {
	firing := &legacy.Status{ZonesFiring: true, ArmedAway: true}
	if got := legacyStateLabel(firing); got != "Disparada" {
		t.Errorf("got %q, want Disparada", got)
	}

	partial := &legacy.Status{ArmedPartial: true}
	if got := legacyStateLabel(partial); got != "Armada Parcial" {
		t.Errorf("got %q, want Armada Parcial", got)
	}

	disarmed := &legacy.Status{}
	if got := legacyStateLabel(disarmed); got != "Desarmada" {
		t.Errorf("got %q, want Desarmada", got)
	}
}

func TestOnOff(t *testing.T) {
	if onOff(true) != "on" || onOff(false) != "off" {
		t.Error("onOff mapping wrong")
	}
}
