package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
)

const (
	format = "2006-01-02 15:04:05.000"
)

var std = newLogger()

func newLogger() *log.Logger {
	l := log.New()
	l.SetFormatter(&Formatter{})
	l.SetLevel(log.InfoLevel)

	return l
}

// Logger returns the process wide logger every package writes to
func Logger() *log.Logger {
	return std
}

// SetLevel parses a logrus level name ("debug", "info", ...) and applies it
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", name, err)
	}

	std.SetLevel(lvl)
	return nil
}

func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// For returns an entry scoped to a single participant
func For(id int) *log.Entry {
	return std.WithField("participant", id)
}

func Trace(msg string) {
	std.Trace(msg)
}

func Tracef(msg string, args ...interface{}) {
	std.Tracef(msg, args...)
}

func Debug(msg string) {
	std.Debug(msg)
}

func Debugf(msg string, args ...interface{}) {
	std.Debugf(msg, args...)
}

func Info(msg string) {
	std.Info(msg)
}

func Infof(msg string, args ...interface{}) {
	std.Infof(msg, args...)
}

func Warning(msg string) {
	std.Warning(msg)
}

func Warningf(msg string, args ...interface{}) {
	std.Warningf(msg, args...)
}

func Error(msg string) {
	std.Error(msg)
}

func Errorf(msg string, args ...interface{}) {
	std.Errorf(msg, args...)
}

// Formatter renders entries as "<time> <LEVEL> <msg> k=v..." colored by level
type Formatter struct{}

var levels = map[log.Level]struct {
	label string
	c     *color.Color
}{
	log.TraceLevel: {"TRACE", color.New(color.FgCyan)},
	log.DebugLevel: {"DEBUG", color.New(color.FgGreen)},
	log.InfoLevel:  {"INFO", color.New(color.FgWhite)},
	log.WarnLevel:  {"WARN", color.New(color.FgBlue)},
	log.ErrorLevel: {"ERROR", color.New(color.FgRed)},
	log.FatalLevel: {"ERROR", color.New(color.FgRed)},
	log.PanicLevel: {"ERROR", color.New(color.FgRed)},
}

func (f *Formatter) Format(e *log.Entry) ([]byte, error) {
	l, ok := levels[e.Level]
	if !ok {
		l = levels[log.InfoLevel]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%v %s %s", e.Time.Format(format), l.label, e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}

	return []byte(l.c.Sprint(b.String()) + "\n"), nil
}
