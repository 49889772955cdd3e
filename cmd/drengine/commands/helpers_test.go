package commands

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func nopLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
}
