package cronrunner

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

// CronLogger bridges robfig/cron's logger to zap. Routine wake-ups go to
// debug so they stay out of production logs.
func CronLogger(logger *zap.Logger) cron.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapCronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
