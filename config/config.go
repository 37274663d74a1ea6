// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Package config loads the wmiquery service configuration file.
package config

import (
	"encoding/json"
	"io/ioutil"
	"net"
	"path/filepath"

	notify "github.com/fsnotify/fsnotify"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/hpe-storage/wmi-query-libs/util"
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultListen keeps the service local to the host unless configured otherwise
	DefaultListen = "127.0.0.1:8088"

	// AccessKeyHeader carries the access key on every HTTP request
	AccessKeyHeader = "WMIQueryAccessKey"
)

// Config is the wmiquery service configuration
type Config struct {
	// Listen is the host:port the HTTP surface binds to
	Listen string `mapstructure:"listen"`
	// Namespace is used by requests that don't name one
	Namespace string `mapstructure:"namespace"`
	// AccessKey, when set, must be sent in the AccessKeyHeader of every HTTP request
	AccessKey string `mapstructure:"accessKey"`
	// Tracing installs a jaeger tracer as the opentracing global tracer
	Tracing bool          `mapstructure:"tracing"`
	Log     log.LogParams `mapstructure:"log"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Listen:    DefaultListen,
		Namespace: wmi.DefaultNamespace,
		Log: log.LogParams{
			Level:      log.DefaultLogLevel,
			MaxFiles:   log.DefaultMaxLogFiles,
			MaxSizeMiB: log.DefaultMaxLogSize,
			Format:     log.DefaultLogFormat,
		},
	}
}

// Load reads the JSON configuration file at path over the defaults.  Unknown keys are rejected.
func Load(path string) (*Config, error) {
	log.Tracef(">>>>> Load, path=%v", path)
	defer log.Trace("<<<<< Load")

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewWmiError(cerrors.InvalidArgument, "unable to read configuration file "+path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON configuration document over the defaults
func Parse(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, cerrors.NewWmiError(cerrors.InvalidArgument, "invalid configuration document", err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, cerrors.NewWmiError(cerrors.Internal, err)
	}
	if err = decoder.Decode(raw); err != nil {
		return nil, cerrors.NewWmiError(cerrors.InvalidArgument, "invalid configuration document", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that can't be defaulted
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return cerrors.NewWmiError(cerrors.InvalidArgument, "invalid listen address "+c.Listen, err)
	}
	if c.Namespace == "" {
		c.Namespace = wmi.DefaultNamespace
	}
	if c.Log.Level == "" {
		c.Log.Level = log.DefaultLogLevel
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return cerrors.NewWmiError(cerrors.InvalidArgument, "invalid log level "+c.Log.Level, err)
	}
	return nil
}

// Watch reloads the file at path whenever it is written or replaced, applies the new log level and
// hands the new configuration to onChange.  A file that fails to load is logged and otherwise
// ignored.  The caller must stop the returned watcher.
func Watch(path string, onChange func(*Config)) (*util.FileWatch, error) {
	log.Tracef(">>>>> Watch, path=%v", path)
	defer log.Trace("<<<<< Watch")

	// The directory is watched so that a file replaced by rename keeps being followed
	path = filepath.Clean(path)
	watch, err := util.InitializeWatcher(func(event notify.Event) {
		if filepath.Clean(event.Name) != path {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Warnf("Ignoring configuration change, err=%v", err)
			return
		}
		if err = log.SetLevel(cfg.Log.GetLevel()); err != nil {
			log.Warnf("Unable to apply log level %v, err=%v", cfg.Log.Level, err)
		}
		if onChange != nil {
			onChange(cfg)
		}
	}, util.DefaultSettleInterval)
	if err != nil {
		return nil, err
	}
	if err = watch.AddWatchList([]string{filepath.Dir(path)}); err != nil {
		watch.StopWatcher()
		return nil, err
	}
	watch.StartWatcher()
	return watch, nil
}
