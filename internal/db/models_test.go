package db_test

import (
	"testing"

	"github.com/solarops/tamper-detection-worker/internal/db"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    db.TamperEventStatus
		to      db.TamperEventStatus
		allowed bool
	}{
		{db.StatusNew, db.StatusAcknowledged, true},
		{db.StatusNew, db.StatusResolved, true},
		{db.StatusAcknowledged, db.StatusResolved, true},
		{db.StatusAcknowledged, db.StatusNew, false},
		{db.StatusResolved, db.StatusNew, false},
		{db.StatusResolved, db.StatusAcknowledged, false},
		{db.StatusResolved, db.StatusResolved, false},
		{db.StatusNew, db.StatusNew, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.allowed, got)
		}
	}
}

func TestTamperEventTypeValid(t *testing.T) {
	valid := []db.TamperEventType{
		db.EventPhysicalMovement,
		db.EventConnectionTampering,
		db.EventPanelAccess,
		db.EventVoltageFluctuation,
		db.EventLocationChange,
		db.EventCommunicationInterference,
		db.EventUnauthorizedAccess,
	}
	for _, et := range valid {
		if !et.Valid() {
			t.Errorf("Expected %s to be valid", et)
		}
	}

	if db.TamperEventType("SOLAR_FLARE").Valid() {
		t.Error("Expected unknown event type to be invalid")
	}
	if db.TamperEventType("").Valid() {
		t.Error("Expected empty event type to be invalid")
	}
}

func TestResponseTypeValid(t *testing.T) {
	if !db.ResponseServiceSuspended.Valid() {
		t.Error("Expected SERVICE_SUSPENDED to be valid")
	}
	if db.ResponseType("SHUTDOWN").Valid() {
		t.Error("Expected unknown response type to be invalid")
	}
}
