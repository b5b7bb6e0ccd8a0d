package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tripwatch/internal/alerting"
)

const archiveTimeout = 5 * time.Second

// ArchiveCallback adapts an AlertArchive into an alert callback so every
// emitted alert is persisted. Archive failures are logged and swallowed;
// persistence must never block alert delivery.
func ArchiveCallback(archive AlertArchive, logger zerolog.Logger) alerting.Callback {
	return func(alert alerting.Alert) {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := archive.InsertAlert(ctx, RecordFromAlert(alert)); err != nil {
			logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("alert_type", string(alert.Type)).
				Msg("failed to archive alert")
		}
	}
}
