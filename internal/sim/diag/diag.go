// Package diag carries configuration problems out of the simulation so a
// misconfigured component is reported instead of silently never firing.
package diag

import (
	"errors"
	"fmt"
)

// ConfigurationError disables the named component; the session keeps running.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Component, e.Reason)
}

func Configf(component, format string, args ...any) error {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Entry is one diagnostic surfaced to operators and clients.
type Entry struct {
	Tick      uint64 `json:"tick"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Log is an append-only diagnostics buffer with a cap on retained entries.
type Log struct {
	max     int
	entries []Entry
	dropped int
}

func NewLog(max int) *Log {
	if max <= 0 {
		max = 256
	}
	return &Log{max: max}
}

func (l *Log) Add(tick uint64, component, msg string) {
	if len(l.entries) >= l.max {
		l.entries = l.entries[1:]
		l.dropped++
	}
	l.entries = append(l.entries, Entry{Tick: tick, Component: component, Message: msg})
}

// AddError records err; configuration errors keep their component name.
func (l *Log) AddError(tick uint64, err error) {
	if err == nil {
		return
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		l.Add(tick, ce.Component, ce.Reason)
		return
	}
	l.Add(tick, "", err.Error())
}

func (l *Log) Entries() []Entry { return append([]Entry(nil), l.entries...) }
func (l *Log) Dropped() int     { return l.dropped }
