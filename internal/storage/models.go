package storage

import (
	"encoding/json"
	"time"

	"tripwatch/internal/alerting"
)

// AlertRecord is the persisted form of one emitted alert, written by the
// archive callback for auditing and display.
type AlertRecord struct {
	ID          int64
	AlertID     string
	Type        string
	Severity    string
	Title       string
	Message     string
	Metadata    json.RawMessage
	TriggeredAt time.Time
	CreatedAt   time.Time
}

// RecordFromAlert converts the engine's serializable alert form into an
// archive record. Metadata that fails to marshal is dropped rather than
// blocking persistence.
func RecordFromAlert(alert alerting.Alert) AlertRecord {
	record := AlertRecord{
		AlertID:     alert.ID,
		Type:        string(alert.Type),
		Severity:    string(alert.Severity),
		Title:       alert.Title,
		Message:     alert.Message,
		TriggeredAt: alert.TriggeredAt,
		CreatedAt:   alert.CreatedAt,
	}
	if alert.Metadata != nil {
		if raw, err := json.Marshal(alert.Metadata); err == nil {
			record.Metadata = raw
		}
	}
	return record
}
