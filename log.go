package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// logger is the process-wide structured logger, written to stderr so user
// facing summaries on stdout stay clean. main swaps it once flags and
// config have settled on a level.
var logger = newLogger("info")

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

var green = color.New(color.FgGreen).SprintFunc()

// announce prints a user-facing summary line to stdout.
func announce(format string, a ...interface{}) {
	fmt.Println(green(fmt.Sprintf(format, a...)))
}
