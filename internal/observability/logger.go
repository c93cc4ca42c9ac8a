package observability

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/bizease/internal/config"
)

const instrumentationScope = "github.com/rl1809/bizease"

// NewLogger builds the process logger. Development mode switches to the console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	core, err := consoleCore(level, development)
	if err != nil {
		return nil, err
	}
	return newLogger(core, development), nil
}

// WithOTelBridge tees the console output into the global OpenTelemetry logger provider,
// so call it after SetupLogging.
func WithOTelBridge(level string, development bool) (*zap.Logger, error) {
	core, err := consoleCore(level, development)
	if err != nil {
		return nil, err
	}
	otelCore := otelzap.NewCore(instrumentationScope, otelzap.WithLoggerProvider(global.GetLoggerProvider()))
	return newLogger(zapcore.NewTee(core, otelCore), development), nil
}

func consoleCore(level string, development bool) (zapcore.Core, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl), nil
}

func newLogger(core zapcore.Core, development bool) *zap.Logger {
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	}
	if development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...)
}
