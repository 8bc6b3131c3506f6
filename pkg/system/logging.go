package system

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Debug switches to the development
// config and lowers the level; both variants write human readable lines to
// stdout so they interleave with the workflow step output.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stdout"}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// RunFields returns key/value pairs identifying a run, suitable for
// SugaredLogger.With. An empty phase is omitted.
func RunFields(runID, phase string) []interface{} {
	if phase == "" {
		return []interface{}{"runID", runID}
	}
	return []interface{}{"runID", runID, "phase", phase}
}
