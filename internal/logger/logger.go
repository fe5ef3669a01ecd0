package logger

import (
	"os"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// BuildMessages logs esbuild diagnostics at the given level, one event per message
func BuildMessages(logger *zerolog.Logger, level zerolog.Level, msgs []api.Message) {
	for _, msg := range msgs {
		ev := logger.WithLevel(level).Str("text", msg.Text)
		if msg.PluginName != "" {
			ev = ev.Str("plugin", msg.PluginName)
		}
		if loc := msg.Location; loc != nil {
			ev = ev.Str("file", loc.File).
				Int("line", loc.Line).
				Int("column", loc.Column).
				Str("source", loc.LineText)
		}
		for _, note := range msg.Notes {
			ev = ev.Str("note", note.Text)
		}
		ev.Msg(describe(level))
	}
}

func describe(level zerolog.Level) string {
	switch level {
	case zerolog.ErrorLevel:
		return "Build error"
	case zerolog.WarnLevel:
		return "Build warning"
	default:
		return "Build message"
	}
}
