// Package logging builds the CLI's zap logger.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// DefaultLevel is used when no level is given.
const DefaultLevel = "warn"

// New returns a console logger writing to stderr at level.
func New(level string) (*zap.Logger, error) {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter returns a console logger writing to w at level. Accepted
// levels are debug, info, warn and error.
func NewWithWriter(level string, w io.Writer) (*zap.Logger, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeValidation, err, "invalid log level %q", level)
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}
