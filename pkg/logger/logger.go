package logger

import (
	"github.com/sirupsen/logrus"
)

// Init initializes the structured logger. Unknown levels fall back to info.
func Init(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.WithField("level", lvl.String()).Info("Logger initialized")
}
