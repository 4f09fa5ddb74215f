// Package logging wraps logrus with the per-component entries ringkeep's
// subsystems (gossip, coordinator, replica, nodestate, listener, ...) log
// through.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()
var instanceID string

// SetInstanceID tags every subsequent log entry with a process instance
// ID, so log lines from two restarts of the same node address can still
// be told apart in a shared log aggregator.
func SetInstanceID(id string) {
	instanceID = id
}

// Init configures the shared logrus instance from RINGKEEP_LOG_LEVEL
// ("debug", "info", "warn", "error"; defaults to "info").
func Init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	switch strings.ToLower(os.Getenv("RINGKEEP_LOG_LEVEL")) {
	case "debug":
		level = logrus.DebugLevel
	case "warn":
		level = logrus.WarnLevel
	case "error":
		level = logrus.ErrorLevel
	}
	base.SetLevel(level)
}

// For returns a component-scoped logger, e.g. For("gossip") tags every
// entry with component=gossip.
func For(component string) *logrus.Entry {
	entry := base.WithField("component", component)
	if instanceID != "" {
		entry = entry.WithField("instance", instanceID)
	}
	return entry
}
