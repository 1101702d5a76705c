// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log supports structured and unstructured logging with levels,
// matching the six levels the catalog reader's external interface (§6.1)
// requires: Debug, Verbose, Information, Minimal, Warning, Error.
package log

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/logging"

	"github.com/nugetmirror/catalogmirror/internal/config"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
)

// Level is one of the six severities the Fetch Fabric's logger interface
// (spec §6.1) is defined over. The underlying values are chosen so that
// they map directly onto cloud.google.com/go/logging.Severity when the
// Stackdriver sink is in use.
type Level logging.Severity

const (
	Debug       Level = Level(logging.Debug)           // 100
	Verbose     Level = Level(logging.Debug) + 50       // 150
	Information Level = Level(logging.Info)             // 200
	Minimal     Level = Level(logging.Notice)            // 300
	Warning     Level = Level(logging.Warning)           // 400
	Error       Level = Level(logging.Error)             // 500
)

// Info is an alias for Information, matching common shorthand usage.
const Info = Information

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Verbose:
		return "VERBOSE"
	case Information:
		return "INFO"
	case Minimal:
		return "MINIMAL"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

var (
	mu     sync.Mutex
	logger interface {
		log(context.Context, Level, any)
	} = stdlibLogger{}

	// currentLevel holds the current log level; logs below it are dropped.
	currentLevel = Debug
)

type (
	// traceIDKey is the type of the context key for trace IDs.
	traceIDKey struct{}

	// labelsKey is the type of the context key for labels.
	labelsKey struct{}
)

// SetLevel sets the minimum level that will be logged.
func SetLevel(v string) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = toLevel(v)
}

func getLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel
}

// NewContextWithTraceID creates a new context from ctx that adds the trace ID.
func NewContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// NewContextWithLabel creates a new context from ctx that adds a label that
// will appear in the log entry.
func NewContextWithLabel(ctx context.Context, key, value string) context.Context {
	oldLabels, _ := ctx.Value(labelsKey{}).(map[string]string)
	newLabels := map[string]string{}
	for k, v := range oldLabels {
		newLabels[k] = v
	}
	newLabels[key] = value
	return context.WithValue(ctx, labelsKey{}, newLabels)
}

// stackdriverLogger logs to GCP Cloud Logging.
type stackdriverLogger struct {
	sdlogger *logging.Logger
}

func (l *stackdriverLogger) log(ctx context.Context, lv Level, payload any) {
	if err, ok := payload.(error); ok {
		payload = err.Error() // errors serialize as {} otherwise
	}
	traceID, _ := ctx.Value(traceIDKey{}).(string)
	labels, _ := ctx.Value(labelsKey{}).(map[string]string)
	l.sdlogger.Log(logging.Entry{
		Severity: logging.Severity(lv),
		Labels:   labels,
		Payload:  payload,
		Trace:    traceID,
	})
}

// stdlibLogger uses the Go standard library logger. It is the default sink;
// the Stackdriver sink is opted into via UseStackdriver when
// GOOGLE_CLOUD_PROJECT names a project to log to.
type stdlibLogger struct{}

func (stdlibLogger) log(ctx context.Context, lv Level, payload any) {
	var extras []string
	if traceID, _ := ctx.Value(traceIDKey{}).(string); traceID != "" {
		extras = append(extras, fmt.Sprintf("traceID %s", traceID))
	}
	if labels, ok := ctx.Value(labelsKey{}).(map[string]string); ok {
		extras = append(extras, fmt.Sprint(labels))
	}
	var extra string
	if len(extras) > 0 {
		extra = " (" + strings.Join(extras, ", ") + ")"
	}
	log.Printf("%s%s: %+v", lv, extra, payload)
}

// UseStackdriver switches from the default stdlib logger to a Cloud Logging
// logger for projectID. It can only be called once.
func UseStackdriver(ctx context.Context, cfg *config.Config, logName string) (_ *logging.Logger, err error) {
	defer derrors.Wrap(&err, "UseStackdriver(ctx, %q)", logName)

	client, err := logging.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	parent := client.Logger(logName)
	child := client.Logger(logName + "-child")
	mu.Lock()
	defer mu.Unlock()
	if _, ok := logger.(*stackdriverLogger); ok {
		return nil, errors.New("already called once")
	}
	logger = &stackdriverLogger{child}
	return parent, nil
}

// Debugf logs a formatted string at Debug.
func Debugf(ctx context.Context, format string, args ...any) { logf(ctx, Debug, format, args) }

// Verbosef logs a formatted string at Verbose.
func Verbosef(ctx context.Context, format string, args ...any) { logf(ctx, Verbose, format, args) }

// Infof logs a formatted string at Information.
func Infof(ctx context.Context, format string, args ...any) { logf(ctx, Information, format, args) }

// Warningf logs a formatted string at Warning.
func Warningf(ctx context.Context, format string, args ...any) { logf(ctx, Warning, format, args) }

// Errorf logs a formatted string at Error.
func Errorf(ctx context.Context, format string, args ...any) { logf(ctx, Error, format, args) }

// Fatalf logs a formatted string at Error, then exits the process.
func Fatalf(ctx context.Context, format string, args ...any) {
	logf(ctx, Error, format, args)
	die()
}

func logf(ctx context.Context, lv Level, format string, args []any) {
	doLog(ctx, lv, fmt.Sprintf(format, args...))
}

// Debug logs arg at Debug.
func Debug(ctx context.Context, arg any) { doLog(ctx, Debug, arg) }

// Info logs arg at Information.
func Info(ctx context.Context, arg any) { doLog(ctx, Information, arg) }

// Warning logs arg at Warning.
func Warning(ctx context.Context, arg any) { doLog(ctx, Warning, arg) }

// Error logs arg at Error.
func Error(ctx context.Context, arg any) { doLog(ctx, Error, arg) }

// Fatal logs arg at Error, then exits the process.
func Fatal(ctx context.Context, arg any) {
	doLog(ctx, Error, arg)
	die()
}

func doLog(ctx context.Context, lv Level, payload any) {
	if getLevel() > lv {
		return
	}
	mu.Lock()
	l := logger
	mu.Unlock()
	l.log(ctx, lv, payload)
}

func die() {
	mu.Lock()
	if sl, ok := logger.(*stackdriverLogger); ok {
		sl.sdlogger.Flush()
	}
	mu.Unlock()
	os.Exit(1)
}

// toLevel returns the Level for a given string: "debug", "verbose",
// "information" (or "info"), "minimal", "warning", "error". An empty or
// unrecognized string maps to Debug (log everything), matching the
// teacher's "default level prints everything" convention.
func toLevel(v string) Level {
	switch strings.ToLower(v) {
	case "":
		return Debug
	case "debug":
		return Debug
	case "verbose":
		return Verbose
	case "info", "information":
		return Information
	case "minimal":
		return Minimal
	case "warning":
		return Warning
	case "error":
		return Error
	}
	log.Printf("log: %q is not a valid level; using debug", v)
	return Debug
}
