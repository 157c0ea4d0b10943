package logflags

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func PatcherLogger() Logger {
	return makeLogger("patcher", patcher)
}

func HTTPLogger() Logger {
	return makeLogger("http", http)
}

func GRPCLogger() Logger {
	return makeLogger("grpc", grpc)
}

func TerminalLogger() Logger {
	return makeLogger("terminal", terminal)
}

func makeLogger(name string, enabled bool) Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:      "timestamp",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "message",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
		EncodeName:   zapcore.FullNameEncoder,
	}
	if colored {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.ErrorLevel
	if enabled {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(logOut)),
		level,
	)

	return zap.New(core, zap.AddCaller()).Named(name).Sugar()
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return zap.NewNop().Sugar()
}
