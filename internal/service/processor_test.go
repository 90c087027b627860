package service_test

import (
	"context"
	"testing"

	"github.com/solarops/tamper-detection-worker/internal/service"
	"go.uber.org/zap"
)

// Rejection paths run before any database or detector access, so a processor
// without wired dependencies is enough to exercise them.
func TestProcessMessage_MalformedJSON(t *testing.T) {
	processor := service.NewProcessorService(nil, zap.NewNop())

	err := processor.ProcessMessage(context.Background(), []byte("{not json"))
	if err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestProcessMessage_MissingInstallationID(t *testing.T) {
	processor := service.NewProcessorService(nil, zap.NewNop())

	body := []byte(`{
		"request_id": "req-1",
		"readings": [{"event_type": "PHYSICAL_MOVEMENT", "value": 1.5}]
	}`)

	err := processor.ProcessMessage(context.Background(), body)
	if err == nil {
		t.Error("Expected error for missing installation_id")
	}
}

func TestProcessMessage_EmptyReadings(t *testing.T) {
	processor := service.NewProcessorService(nil, zap.NewNop())

	body := []byte(`{
		"request_id": "req-2",
		"installation_id": "0d7e1fd4-9a0f-4bbe-86fc-41ac95d6aa71",
		"readings": []
	}`)

	err := processor.ProcessMessage(context.Background(), body)
	if err == nil {
		t.Error("Expected error for empty readings")
	}
}

func TestProcessMessage_ReadingWithoutEventType(t *testing.T) {
	processor := service.NewProcessorService(nil, zap.NewNop())

	body := []byte(`{
		"request_id": "req-3",
		"installation_id": "0d7e1fd4-9a0f-4bbe-86fc-41ac95d6aa71",
		"readings": [{"value": 1.5}]
	}`)

	err := processor.ProcessMessage(context.Background(), body)
	if err == nil {
		t.Error("Expected error for reading without event_type")
	}
}
