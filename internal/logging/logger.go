package logging

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// New builds the console logger used by the service.
func New(level string) arbor.ILogger {
	if level == "" {
		level = "info"
	}
	return arbor.NewLogger().
		WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       true,
			DisableTimestamp: false,
		}).
		WithLevelFromString(level)
}
