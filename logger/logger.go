/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package logger

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger is the minimal call surface every component uses: named, leveled,
// structured logging. One instance per component instance (gateway,
// session, heartbeat), obtained via Named.
type Logger struct {
	hc hclog.Logger
}

var std = hclog.New(&hclog.LoggerOptions{
	Name:       "uniset2",
	Level:      hclog.Info,
	Output:     os.Stderr,
	JSONFormat: false,
})

// Default returns the process-wide root logger.
func Default() Logger { return Logger{hc: std} }

// SetLevel adjusts the process-wide root logger's level; components that
// already took a Named() child observe the change too since hclog.Named
// shares the parent's level pointer.
func SetLevel(l Level) { std.SetLevel(l.hc()) }

// Named returns a child logger tagged with name, e.g. Default().Named("egress").
func (l Logger) Named(name string) Logger {
	return Logger{hc: l.hc.Named(name)}
}

// With returns a child logger with the given key/value pairs attached to
// every subsequent line.
func (l Logger) With(args ...interface{}) Logger {
	return Logger{hc: l.hc.With(args...)}
}

func (l Logger) Debug(msg string, args ...interface{}) { l.hc.Debug(msg, args...) }
func (l Logger) Info(msg string, args ...interface{})  { l.hc.Info(msg, args...) }
func (l Logger) Warn(msg string, args ...interface{})  { l.hc.Warn(msg, args...) }
func (l Logger) Error(msg string, args ...interface{}) { l.hc.Error(msg, args...) }

// Crit logs at error level tagged with a "crit" marker — hclog has no
// dedicated fatal/critical level, matching the teacher's own mapping in
// logger/hclog.go where everything above Warn collapses onto hclog.Error.
func (l Logger) Crit(msg string, args ...interface{}) {
	l.hc.Error(msg, append([]interface{}{"severity", "crit"}, args...)...)
}

// Logf is a printf-style convenience used by call sites that build a
// formatted message instead of structured key/value pairs, matching the
// InfoLevel.Logf style used throughout the teacher's httpserver package.
func (l Logger) Logf(level Level, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	switch level {
	case DebugLevel:
		l.Debug(msg)
	case InfoLevel:
		l.Info(msg)
	case WarnLevel:
		l.Warn(msg)
	default:
		l.Error(msg)
	}
}
