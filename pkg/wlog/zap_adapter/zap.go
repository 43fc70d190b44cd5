// Package zapadapter lets a *zap.Logger serve as a wlog.Logger.
package zapadapter

import "go.uber.org/zap"

type Adapter struct {
	logger *zap.SugaredLogger
}

func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a *Adapter) Info(msg string, keysAndValues ...any) {
	a.logger.Infow(msg, keysAndValues...)
}

func (a *Adapter) Error(msg string, keysAndValues ...any) {
	a.logger.Errorw(msg, keysAndValues...)
}

func (a *Adapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debugw(msg, keysAndValues...)
}

func (a *Adapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warnw(msg, keysAndValues...)
}
