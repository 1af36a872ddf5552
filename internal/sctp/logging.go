package sctp

import pionlog "github.com/pion/logging"

// sctpLoggerFactory bridges pion/sctp's LoggerFactory interface onto this
// module's own Logger, so SCTP's internal diagnostics flow through the same
// destination (stderr console, or the roll-forward log file) as the rest of
// the peer daemon.
type sctpLoggerFactory struct{}

func (sctpLoggerFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return sctpLogger{log.WithTag("sctp." + scope)}
}

type sctpLogger struct {
	l interface {
		Error(format string, a ...interface{})
		Warn(format string, a ...interface{})
		Info(format string, a ...interface{})
		Debug(format string, a ...interface{})
		Trace(n int, format string, a ...interface{})
	}
}

func (s sctpLogger) Trace(msg string)                          { s.l.Trace(5, "%s", msg) }
func (s sctpLogger) Tracef(format string, args ...interface{}) { s.l.Trace(5, format, args...) }
func (s sctpLogger) Debug(msg string)                          { s.l.Debug("%s", msg) }
func (s sctpLogger) Debugf(format string, args ...interface{}) { s.l.Debug(format, args...) }
func (s sctpLogger) Info(msg string)                           { s.l.Info("%s", msg) }
func (s sctpLogger) Infof(format string, args ...interface{})  { s.l.Info(format, args...) }
func (s sctpLogger) Warn(msg string)                           { s.l.Warn("%s", msg) }
func (s sctpLogger) Warnf(format string, args ...interface{})  { s.l.Warn(format, args...) }
func (s sctpLogger) Error(msg string)                          { s.l.Error("%s", msg) }
func (s sctpLogger) Errorf(format string, args ...interface{}) { s.l.Error(format, args...) }
