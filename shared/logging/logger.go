// shared/logging/logger.go
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger. APP_ENV=development gets a human-readable
// console logger; everything else gets JSON production output.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
