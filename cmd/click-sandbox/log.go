package main

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	envDebug    = "CLICK_SANDBOX_DEBUG"
	envLogLevel = "CLICK_SANDBOX_LOG_LEVEL"
)

// newLogger returns the supervisor's logger. Records go to out, which
// is the sandbox's own stderr, so the default level keeps it quiet.
func newLogger(out io.Writer, debug bool, lookup func(string) (string, bool)) *logrus.Entry {
	log := logrus.New()
	log.Out = out
	log.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	log.SetLevel(getLogLevel(lookup))
	if v, _ := lookup(envDebug); debug || v != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log.WithFields(logrus.Fields{
		"version": version,
	})
}

func getLogLevel(lookup func(string) (string, bool)) logrus.Level {
	strLevel, _ := lookup(envLogLevel)
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}
