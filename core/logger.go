package core

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ProductionLogger implements Logger and ComponentAwareLogger on top of logrus.
// JSON output uses the timestamp/severity/message field names expected by
// log aggregators; text output is meant for a terminal.
type ProductionLogger struct {
	entry     *logrus.Entry
	component string
}

// NewProductionLogger builds a logger from the logging and development settings.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	return NewProductionLoggerWithOutput(logging, dev, serviceName, outputFor(logging.Output))
}

// NewProductionLoggerWithOutput is NewProductionLogger writing to out.
func NewProductionLoggerWithOutput(logging LoggingConfig, dev DevelopmentConfig, serviceName string, out io.Writer) Logger {
	l := logrus.New()
	l.Out = out

	level, err := logrus.ParseLevel(strings.ToLower(logging.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.Level = level

	if logging.Format == "text" || dev.PrettyLogs {
		l.Formatter = &logrus.TextFormatter{
			FullTimestamp: true,
		}
	} else {
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		}
	}

	entry := logrus.NewEntry(l)
	if serviceName != "" {
		entry = entry.WithField("service", serviceName)
	}
	return &ProductionLogger{entry: entry}
}

func outputFor(name string) io.Writer {
	switch name {
	case "stdout":
		return os.Stdout
	case "discard":
		return io.Discard
	default:
		return os.Stderr
	}
}

// WithComponent returns a child logger tagged with the component name.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		entry:     p.entry.WithField("component", component),
		component: component,
	}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.entry.WithFields(fields).Info(msg)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.entry.WithFields(fields).Error(msg)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.entry.WithFields(fields).Warn(msg)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.entry.WithFields(fields).Debug(msg)
}
