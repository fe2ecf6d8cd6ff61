/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging provides centralized logging that adapts to CLI vs
// server (stdio dispatcher) contexts. In server mode the tool-call
// transport owns stdout, so every log line goes to stderr in a
// single-line key=value shape instead of pterm's decorated CLI output.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Success = *pterm.Success.WithPrefix(pterm.Prefix{
		Text:  "SUCCESS",
		Style: pterm.NewStyle(pterm.FgGreen),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARNING",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "DEBUG",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

// Level is the severity of a log record.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Mode determines how log records are rendered.
type Mode int

const (
	// ModeCLI uses pterm for colorized, human-facing output.
	ModeCLI Mode = iota
	// ModeServer writes structured single-line records to stderr so the
	// dispatcher's stdout stays reserved for the tool-call transport.
	ModeServer
)

// Logger is safe for concurrent use; the dispatcher, LSP pool, and
// executor all log from their own goroutines.
type Logger struct {
	mu           sync.RWMutex
	mode         Mode
	component    string
	debugEnabled bool
	quietEnabled bool
	out          *os.File
}

var globalLogger = &Logger{mode: ModeCLI, out: os.Stderr}

// GetLogger returns the process-wide logger instance.
func GetLogger() *Logger { return globalLogger }

// Named returns a logger bound to a component name for ModeServer's
// "component=" field; in ModeCLI the component name is not printed, so
// its output is indistinguishable from the unnamed logger's.
func (l *Logger) Named(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{mode: l.mode, component: component, debugEnabled: l.debugEnabled, quietEnabled: l.quietEnabled, out: l.out}
}

func (l *Logger) SetMode(mode Mode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = mode
}

func (l *Logger) SetDebugEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugEnabled = enabled
}

func (l *Logger) IsDebugEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debugEnabled
}

func (l *Logger) SetQuietEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quietEnabled = enabled
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarning, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.RLock()
	mode, debugEnabled, quietEnabled, component, out := l.mode, l.debugEnabled, l.quietEnabled, l.component, l.out
	l.mu.RUnlock()

	if level == LevelDebug && !debugEnabled {
		return
	}
	if quietEnabled && level <= LevelInfo {
		return
	}

	message := fmt.Sprintf(format, args...)

	switch mode {
	case ModeCLI:
		switch level {
		case LevelDebug:
			pterm.Debug.Println(message)
		case LevelInfo:
			pterm.Info.Println(message)
		case LevelWarning:
			pterm.Warning.Println(message)
		case LevelError:
			pterm.Error.Println(message)
		}
	case ModeServer:
		var b strings.Builder
		fmt.Fprintf(&b, "ts=%s level=%s", time.Now().UTC().Format(time.RFC3339Nano), level)
		if component != "" {
			fmt.Fprintf(&b, " component=%s", component)
		}
		fmt.Fprintf(&b, " msg=%q\n", message)
		if out == nil {
			out = os.Stderr
		}
		_, _ = out.WriteString(b.String())
	}
}
