package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.ErrorLevel)
	logg.SetOutput(os.Stdout)
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}

// LogDataIntegrity flags corrupted reference data (e.g. a recipe pointing at a
// deleted ingredient). These are operator alerts, not user errors, so they get
// their own marker field for log-based alerting.
func LogDataIntegrity(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	logger.WithFields(logrus.Fields{
		"module":         moduleName,
		"funcName":       funcName,
		"context":        context,
		"data":           data,
		"data_integrity": true,
	}).Error(err.Error())
}
