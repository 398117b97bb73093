package ahkdump

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Severity of a log event emitted to an Observer.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Observer receives progress and log events from the extraction core.
// Implementations are called from multiple goroutines concurrently.
type Observer interface {
	// OnProgress reports the cumulative number of bytes scanned in the
	// current pass over the process with the given pid.
	OnProgress(pid int, bytesScanned uint64)
	OnLog(severity Severity, message string)
}

type nopObserver struct{}

func (nopObserver) OnProgress(int, uint64) {}
func (nopObserver) OnLog(Severity, string) {}

// NopObserver returns an Observer discarding all events.
func NopObserver() Observer {
	return nopObserver{}
}

type logrusObserver struct {
	logger *logrus.Logger
}

// NewLogrusObserver returns an Observer which forwards all events to the
// given logger, or the standard logrus logger if logger is nil.
func NewLogrusObserver(logger *logrus.Logger) Observer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &logrusObserver{logger: logger}
}

func (o *logrusObserver) OnProgress(pid int, bytesScanned uint64) {
	o.logger.WithFields(logrus.Fields{
		"pid":          pid,
		"bytesScanned": bytesScanned,
	}).Trace("Scan progress.")
}

func (o *logrusObserver) OnLog(severity Severity, message string) {
	switch severity {
	case SeverityWarning:
		o.logger.Warn(message)
	case SeverityError:
		o.logger.Error(message)
	case SeveritySuccess:
		o.logger.WithField("success", true).Info(message)
	default:
		o.logger.Info(message)
	}
}

type multiObserver struct {
	mux       sync.Mutex
	observers []Observer
}

// NewMultiObserver returns an Observer which forwards every event to all
// given observers, in order. Nil observers are ignored.
func NewMultiObserver(observers ...Observer) Observer {
	obs := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &multiObserver{observers: obs}
}

func (m *multiObserver) OnProgress(pid int, bytesScanned uint64) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, o := range m.observers {
		o.OnProgress(pid, bytesScanned)
	}
}

func (m *multiObserver) OnLog(severity Severity, message string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, o := range m.observers {
		o.OnLog(severity, message)
	}
}

func logf(obs Observer, severity Severity, format string, args ...interface{}) {
	obs.OnLog(severity, fmt.Sprintf(format, args...))
}
