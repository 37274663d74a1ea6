// Copyright 2020 Hewlett Packard Enterprise Development LP

package logger

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go/config"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = TextFormat
	DefaultMaxLogFiles = 10
	MaxFilesLimit      = 20
	DefaultMaxLogSize  = 100  // in MB
	MaxLogSizeLimit    = 1024 // in MB
	JSONFormat         = "json"
	TextFormat         = "text"
)

// LogParams to configure logging
type LogParams struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxFiles   int    `mapstructure:"maxFiles"`
	MaxSizeMiB int    `mapstructure:"maxSizeMiB"`
	Format     string `mapstructure:"format"`
}

var (
	logParams LogParams
	initMutex sync.Mutex
)

func (l LogParams) isValidLevel() bool {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func (l LogParams) isValidLogFormat() bool {
	switch l.Format {
	case JSONFormat, TextFormat:
		return true
	default:
		return false
	}
}

func (l LogParams) isValidMaxLogFiles() bool {
	return l.MaxFiles > 0 && l.MaxFiles <= MaxFilesLimit
}

func (l LogParams) isValidMaxLogSize() bool {
	return l.MaxSizeMiB > 0 && l.MaxSizeMiB <= MaxLogSizeLimit
}

func (l LogParams) GetLevel() string {
	if !l.isValidLevel() {
		return DefaultLogLevel
	}
	return l.Level
}

func (l LogParams) GetFile() string {
	return l.File
}

func (l LogParams) GetMaxFiles() int {
	if !l.isValidMaxLogFiles() {
		return DefaultMaxLogFiles
	}
	return l.MaxFiles
}

func (l LogParams) GetMaxSize() int {
	if !l.isValidMaxLogSize() {
		return DefaultMaxLogSize
	}
	return l.MaxSizeMiB
}

func (l LogParams) GetLogFormat() string {
	if !l.isValidLogFormat() {
		return DefaultLogFormat
	}
	return l.Format
}

func (l LogParams) UseTextFormatter() bool {
	return l.GetLogFormat() == TextFormat
}

// Formatter returns the logrus formatter for the configured format
func (l LogParams) Formatter(callerPrettyfier func(*runtime.Frame) (string, string)) log.Formatter {
	if l.UseTextFormatter() {
		return &log.TextFormatter{FullTimestamp: true, CallerPrettyfier: callerPrettyfier}
	}
	return &log.JSONFormatter{CallerPrettyfier: callerPrettyfier}
}

type Fields = log.Fields

func updateLogParamsFromEnv() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logParams.Level = level
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		logParams.File = logFile
	}

	if maxSize := os.Getenv("LOG_MAX_SIZE"); maxSize != "" {
		if size, err := strconv.ParseInt(maxSize, 0, 0); err == nil {
			logParams.MaxSizeMiB = int(size)
		}
	}

	if maxFiles := os.Getenv("LOG_MAX_FILES"); maxFiles != "" {
		if fileCount, err := strconv.ParseInt(maxFiles, 0, 0); err == nil {
			logParams.MaxFiles = int(fileCount)
		}
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		logParams.Format = logFormat
	}
}

// InitOpentracing returns a jaeger backed opentracing tracer for the given service
func InitOpentracing(service string) (opentracing.Tracer, io.Closer, error) {
	cfg := &config.Configuration{
		ServiceName: service,
		Sampler: &config.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			LogSpans: true,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot init tracing: %v", err)
	}
	return tracer, closer, nil
}

// InitLogging initializes logging with the given params.  When initTracing is set, a jaeger
// tracer is installed as the opentracing global tracer and its closer is returned; the caller
// must Close it on exit.
func InitLogging(logName string, params *LogParams, alsoLogToStderr bool, initTracing bool) (closer io.Closer, err error) {
	initMutex.Lock()
	defer initMutex.Unlock()

	// if logParams is not provided, then initialize from defaults
	if params == nil {
		logParams = LogParams{
			Level:      DefaultLogLevel,
			MaxSizeMiB: DefaultMaxLogSize,
			MaxFiles:   DefaultMaxLogFiles,
			Format:     DefaultLogFormat,
		}
	} else {
		logParams = *params
	}

	if logName != "" {
		logParams.File = logName
	}

	// check any overrides from env and apply
	updateLogParamsFromEnv()

	// No output except for the hooks
	log.SetOutput(ioutil.Discard)
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	if logParams.GetFile() != "" {
		if err = AddFileHook(); err != nil {
			return nil, err
		}
	}
	if alsoLogToStderr {
		AddConsoleHook()
	}

	level, err := log.ParseLevel(logParams.GetLevel())
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	// Remind users where the log file lives
	log.WithFields(log.Fields{
		"logLevel":        log.GetLevel().String(),
		"logFileLocation": logParams.GetFile(),
		"alsoLogToStderr": alsoLogToStderr,
	}).Info("Initialized logging.")

	if initTracing {
		tracer, tracerCloser, err := InitOpentracing(path.Base(os.Args[0]))
		if err != nil {
			return nil, err
		}
		opentracing.SetGlobalTracer(tracer)
		closer = tracerCloser
	}

	return closer, nil
}

// SetLevel changes the log level of the standard logger after initialization.  An invalid level
// leaves the current level unchanged.
func SetLevel(level string) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	logParams.Level = level
	log.SetLevel(parsed)
	return nil
}

// CurrentParams returns a copy of the effective logging parameters
func CurrentParams() LogParams {
	initMutex.Lock()
	defer initMutex.Unlock()
	return logParams
}

func AddConsoleHook() {
	log.AddHook(NewConsoleHook())
}

func AddFileHook() error {
	logFileHook, err := NewFileHook()
	if err != nil {
		return fmt.Errorf("could not initialize logging to file %s: %v", logParams.GetFile(), err)
	}
	log.AddHook(logFileHook)
	return nil
}

// ConsoleHook sends log entries to stdout.
type ConsoleHook struct {
	formatter log.Formatter
}

// NewConsoleHook creates a new log hook for writing to stdout/stderr.
func NewConsoleHook() *ConsoleHook {
	return &ConsoleHook{logParams.Formatter(CustomCallerPrettyfier)}
}

func (hook *ConsoleHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *ConsoleHook) checkIfTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return terminal.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func (hook *ConsoleHook) Fire(entry *log.Entry) error {
	var logWriter io.Writer
	switch entry.Level {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.TraceLevel:
		logWriter = os.Stdout
	default:
		logWriter = os.Stderr
	}

	//https://github.com/sirupsen/logrus/issues/172
	if textFormatter, ok := hook.formatter.(*log.TextFormatter); ok && runtime.GOOS != "windows" {
		textFormatter.ForceColors = hook.checkIfTerminal(logWriter)
	}

	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read entry, %v", err)
		return err
	}
	logWriter.Write(lineBytes)
	return nil
}

// FileHook sends log entries to a file.
type FileHook struct {
	formatter log.Formatter
	mutex     sync.Mutex
	logWriter io.Writer
}

func CustomCallerPrettyfier(f *runtime.Frame) (string, string) {
	s := strings.Split(f.Function, ".")
	funcname := s[len(s)-1]
	_, filename := path.Split(f.File)
	return funcname, filename
}

// NewFileHook creates a new log hook for writing to a rotated file.
func NewFileHook() (*FileHook, error) {
	if logParams.GetFile() == "" {
		return nil, fmt.Errorf("no log file configured")
	}

	hook := &FileHook{formatter: logParams.Formatter(nil)}

	// use lumberjack for log rotation
	hook.logWriter = &lumberjack.Logger{
		Filename:   logParams.GetFile(),
		MaxSize:    logParams.GetMaxSize(),
		MaxBackups: logParams.GetMaxFiles(),
		MaxAge:     30,
		Compress:   true,
	}
	return hook, nil
}

func (hook *FileHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *FileHook) Fire(entry *log.Entry) error {
	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read log entry. %v", err)
		return err
	}

	// Windows text files end lines with CRLF
	if runtime.GOOS == "windows" && len(lineBytes) > 0 && lineBytes[len(lineBytes)-1] == '\n' {
		if len(lineBytes) == 1 || lineBytes[len(lineBytes)-2] != '\r' {
			lineBytes = append(lineBytes[:len(lineBytes)-1], '\r', '\n')
		}
	}

	hook.mutex.Lock()
	defer hook.mutex.Unlock()
	_, err = hook.logWriter.Write(lineBytes)
	return err
}

// GetLevel returns the standard logger level.
func GetLevel() log.Level {
	return log.GetLevel()
}

// IsLevelEnabled checks if the log level of the standard logger is greater than the level param
func IsLevelEnabled(level log.Level) bool {
	return log.IsLevelEnabled(level)
}

// WithError creates an entry from the standard logger and adds an error to it.
func WithError(err error) *log.Entry {
	return sourced().WithField(log.ErrorKey, err)
}

// WithContext creates an entry from the standard logger and adds a context to it.
func WithContext(ctx context.Context) *log.Entry {
	return sourced().WithContext(ctx)
}

// WithField creates an entry from the standard logger and adds a field to it.
func WithField(key string, value interface{}) *log.Entry {
	return sourced().WithField(key, value)
}

// WithFields creates an entry from the standard logger and adds multiple fields to it.
func WithFields(fields Fields) *log.Entry {
	return sourced().WithFields(fields)
}

// HTTPLogger : wrapper for http logging
func HTTPLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panicked := true
		defer func() {
			if panicked {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				sourced().Errorf("HTTPLogger: panic serving %v:\n%s", name, buf)
			}
		}()

		sourced().Infof(">>>>> %s %s - %s", r.Method, r.RequestURI, name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		sourced().Infof("<<<<< %s %s - %s %s", r.Method, r.RequestURI, name, time.Since(start))

		panicked = false
	})
}

// sourced adds a source field to the logger that contains
// the file name and line where the logging happened.
func sourced() *log.Entry {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "<???>"
		line = 1
	} else {
		slash := strings.LastIndex(file, "/")
		file = file[slash+1:]
	}
	return log.WithField("file", fmt.Sprintf("%s:%d", file, line))
}

// Trace logs a message at level Trace on the standard logger.
func Trace(args ...interface{}) {
	sourced().Trace(args...)
}

// Debug logs a message at level Debug on the standard logger.
func Debug(args ...interface{}) {
	sourced().Debug(args...)
}

// Info logs a message at level Info on the standard logger.
func Info(args ...interface{}) {
	sourced().Info(args...)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...interface{}) {
	sourced().Warn(args...)
}

// Error logs a message at level Error on the standard logger.
func Error(args ...interface{}) {
	sourced().Error(args...)
}

// Panic logs a message at level Panic on the standard logger.
func Panic(args ...interface{}) {
	sourced().Panic(args...)
}

// Fatal logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatal(args ...interface{}) {
	sourced().Fatal(args...)
}

// Tracef logs a message at level Trace on the standard logger.
func Tracef(format string, args ...interface{}) {
	sourced().Tracef(format, args...)
}

// Debugf logs a message at level Debug on the standard logger.
func Debugf(format string, args ...interface{}) {
	sourced().Debugf(format, args...)
}

// Infof logs a message at level Info on the standard logger.
func Infof(format string, args ...interface{}) {
	sourced().Infof(format, args...)
}

// Warnf logs a message at level Warn on the standard logger.
func Warnf(format string, args ...interface{}) {
	sourced().Warnf(format, args...)
}

// Errorf logs a message at level Error on the standard logger.
func Errorf(format string, args ...interface{}) {
	sourced().Errorf(format, args...)
}

// Fatalf logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatalf(format string, args ...interface{}) {
	sourced().Fatalf(format, args...)
}

// Errorln logs a message at level Error on the standard logger.
func Errorln(args ...interface{}) {
	sourced().Errorln(args...)
}
