/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package logger wraps github.com/sirupsen/logrus behind a small interface
// so the rest of the module depends on Logger, not on logrus directly.
package logger

import "github.com/sirupsen/logrus"

// FuncLog lazily resolves a Logger. Components accept a FuncLog instead of
// a Logger so the concrete logger can be swapped (or not yet constructed)
// at wiring time.
type FuncLog func() Logger

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the structured logging surface used throughout the module.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	SetFields(f Fields) Logger
	WithField(key string, val interface{}) Logger

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warning(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
}

type logger struct {
	e *logrus.Entry
}

// New returns a Logger backed by a fresh logrus instance at the given level.
func New(lvl Level) Logger {
	l := logrus.New()
	l.SetLevel(lvl.toLogrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &logger{e: logrus.NewEntry(l)}
}

func (l *logger) SetLevel(lvl Level) {
	l.e.Logger.SetLevel(lvl.toLogrus())
}

func (l *logger) GetLevel() Level {
	return fromLogrus(l.e.Logger.GetLevel())
}

func (l *logger) SetFields(f Fields) Logger {
	return &logger{e: l.e.Logger.WithFields(logrus.Fields(f))}
}

func (l *logger) WithField(key string, val interface{}) Logger {
	return &logger{e: l.e.WithField(key, val)}
}

func (l *logger) Debug(args ...interface{})                 { l.e.Debug(args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l *logger) Info(args ...interface{})                  { l.e.Info(args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l *logger) Warning(args ...interface{})               { l.e.Warning(args...) }
func (l *logger) Warningf(format string, args ...interface{}) {
	l.e.Warningf(format, args...)
}
func (l *logger) Error(args ...interface{})                 { l.e.Error(args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }
func (l *logger) Fatal(args ...interface{})                 { l.e.Fatal(args...) }
