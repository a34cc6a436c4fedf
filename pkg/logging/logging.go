package logging

import (
	"go.uber.org/zap"
)

// Setup builds the application logger. Debug mode switches to the
// human-readable development config with debug-level output enabled.
func Setup(debug bool, appName, appVersion string) (*zap.Logger, error) {
	var cfg zap.Config

	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	// Add default fields
	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample(), err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}
