package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/pkg/config"
)

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose. Without either flag the level
// comes from the configuration file when one was given, otherwise the logger
// stays silent so that it does not interfere with command output.
func configureLogger(cmd *cobra.Command, fileCfg *config.Config) (*logrus.Logger, error) {
	var logger *logrus.Logger
	if fileCfg != nil {
		logger = fileCfg.NewLogger()
	} else {
		// Default to panic level (essentially silent for normal operations)
		logger = config.DefaultConfig().NewLogger()
		logger.SetLevel(logrus.PanicLevel)
	}

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			logger.SetLevel(logrus.DebugLevel)
		case "info":
			logger.SetLevel(logrus.InfoLevel)
		case "warn":
			logger.SetLevel(logrus.WarnLevel)
		case "error":
			logger.SetLevel(logrus.ErrorLevel)
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
