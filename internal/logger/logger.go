package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log общий логгер процесса. До InitForEnv пишет в stderr на уровне info.
var Log = logrus.New()

// InitForEnv настраивает логгер: в production JSON для сборщика логов, локально читаемый текст.
// level ("debug", "warn", ...) перекрывает уровень по умолчанию, пустой или неизвестный игнорируется.
func InitForEnv(env, level string) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if env == "production" {
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if lvl, err := logrus.ParseLevel(level); err == nil && level != "" {
		l.SetLevel(lvl)
	}

	Log = l
}

// Discard глушит вывод. Для тестов.
func Discard() {
	Log = logrus.New()
	Log.SetOutput(io.Discard)
}

// Errorf реализует goroutine.Logger.
func Errorf(format string, args ...any) {
	Log.Errorf(format, args...)
}
