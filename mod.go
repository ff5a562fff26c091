// Package cnotes is the root of a native smart contract that keeps a
// tamper-evident log of short notes and messages in a compressed Merkle tree.
//
// Only the leaves live in the tree. The content of each note is published
// through the event log so that an observer can rebuild the history.
package cnotes

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.InfoLevel)

// PromCollectors exposes Prometheus collectors created by the packages of the
// module. A binary can register them to any registry it exposes.
var PromCollectors []prometheus.Collector

// SetLevel parses the level and applies it to the global logger.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	Logger = Logger.Level(lvl)

	return nil
}
