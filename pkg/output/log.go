package output

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

/* Verbosity:
 * 0: only things that went wrong
 * 1: each pipeline step, TLS agreement, DNS detail
 * 2+: protocol detail and debug dumps
 */
func NewLogger(verbosity int, colour bool) (logr.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	zc.DisableCaller = verbosity < 2
	if colour {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), err
	}

	return zapr.NewLogger(zl), nil
}
