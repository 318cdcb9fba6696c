// Package logging builds the root hclog logger every component derives a Named logger from.
package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// New returns the root logger. Unknown levels fall back to info.
func New(name, level string, json bool, out io.Writer) hclog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           lvl,
		Output:          out,
		JSONFormat:      json,
		IncludeLocation: lvl <= hclog.Debug,
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
	})
}
