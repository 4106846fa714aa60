package runtimeext

import (
	"github.com/sirupsen/logrus"
)

// LoggingCapability is stateless per spec.md §4.6's table, but emits a
// trace at the start and end of every guest invocation — the teacher's
// logrus.WithField idiom (core/central_banking_node.go, core/ipfs.go)
// applied to the runtime's own event lifecycle rather than chain state.
type LoggingCapability struct {
	Logger *logrus.Logger
}

// NewLoggingCapability wraps lg, or a fresh default logger if nil.
func NewLoggingCapability(lg *logrus.Logger) *LoggingCapability {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &LoggingCapability{Logger: lg}
}

func (l *LoggingCapability) Name() string     { return "logging" }
func (l *LoggingCapability) Priority() int     { return PriorityLogging }
func (l *LoggingCapability) AppInit(RuntimeContext) error { return nil }
func (l *LoggingCapability) AppFini(RuntimeContext) error { return nil }

func (l *LoggingCapability) EventInit(ctx RuntimeContext) {
	l.Logger.WithFields(logrus.Fields{
		"app":    ctx.AppName,
		"module": ctx.ModuleID,
		"event":  ctx.EventName,
		"exec":   ctx.ExecCounter,
	}).Trace("event dispatch start")
}

func (l *LoggingCapability) EventFini(ctx RuntimeContext) {
	l.Logger.WithFields(logrus.Fields{
		"app":    ctx.AppName,
		"module": ctx.ModuleID,
		"event":  ctx.EventName,
		"exec":   ctx.ExecCounter,
	}).Trace("event dispatch end")
}
