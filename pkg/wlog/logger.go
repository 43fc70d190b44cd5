// Package wlog is the logging seam of wrym. Components log through Logger and
// never depend on a concrete logging library.
package wlog

type Logger interface {
	Info(msg string, keyValues ...any)
	Error(msg string, keyValues ...any)
	Debug(msg string, keyValues ...any)
	Warn(msg string, keyValues ...any)
}

type nop struct{}

func (nop) Info(string, ...any)  {}
func (nop) Error(string, ...any) {}
func (nop) Debug(string, ...any) {}
func (nop) Warn(string, ...any)  {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or a discarding logger if l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop{}
	}
	return l
}
