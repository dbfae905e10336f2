package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerIsSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Infof("hello %s", "world")
		Sync()
	})
}

func TestProductionCoreDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := zap.New(newCore(false, zapcore.AddSync(&buf))).Sugar()

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO shown")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestDevelopmentCoreKeepsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := zap.New(newCore(true, zapcore.AddSync(&buf))).Sugar()

	log.Debug("visible")

	assert.Contains(t, buf.String(), "visible")
}
