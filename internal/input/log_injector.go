package input

import (
	"github.com/rs/zerolog"

	"magicmouse/internal/protocol"
)

// LogInjector writes every injected action to a logger instead of the
// desktop. It backs the position dump mode and headless subscribers.
type LogInjector struct {
	logger zerolog.Logger
}

// NewLogInjector creates an injector that logs at info level.
func NewLogInjector(logger zerolog.Logger) *LogInjector {
	return &LogInjector{logger: logger}
}

func (l *LogInjector) MoveTo(x, y int32) error {
	l.logger.Info().Int32("x", x).Int32("y", y).Msg("pos")
	return nil
}

func (l *LogInjector) Warp(x, y int32) error {
	l.logger.Info().Int32("x", x).Int32("y", y).Msg("warp")
	return nil
}

func (l *LogInjector) Button(button protocol.Button, down bool) error {
	l.logger.Info().Str("button", button.String()).Bool("down", down).Msg("button")
	return nil
}

func (l *LogInjector) SetCursorVisible(visible bool) error {
	l.logger.Info().Bool("visible", visible).Msg("visibility")
	return nil
}
