// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hpe-storage/wmi-query-libs/config"
	"github.com/hpe-storage/wmi-query-libs/handler"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath  string
	generateKey bool
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON configuration file")
	serveCmd.Flags().BoolVar(&generateKey, "generate-key", false, "require a random access key and print it on startup")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve WMI queries over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svr, err := startServer()
		if err != nil {
			return err
		}

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigc)

		select {
		case err = <-svr.errc:
			svr.cleanup()
			return err
		case sig := <-sigc:
			log.Infof("Received %s os signal. Exiting...", sig)
		}
		return svr.stop()
	},
}

// server is a running HTTP surface together with everything that must be released with it
type server struct {
	httpServer *http.Server
	errc       chan error
	closers    []func()
	stopOnce   sync.Once
}

// startServer loads the configuration, initializes logging and COM, and starts serving in the
// background.  Serve errors are delivered on errc.
func startServer() (*server, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	svr := &server{errc: make(chan error, 1)}
	closer, err := log.InitLogging(cfg.Log.GetFile(), &cfg.Log, true, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		svr.closers = append(svr.closers, func() { closer.Close() })
	}

	if err = wmi.Initialize(); err != nil {
		svr.cleanup()
		return nil, err
	}
	svr.closers = append(svr.closers, wmi.Cleanup)

	if configPath != "" {
		watch, err := config.Watch(configPath, func(c *config.Config) {
			log.Infof("Configuration reloaded, logLevel=%v", c.Log.GetLevel())
		})
		if err != nil {
			log.Warnf("Configuration changes will not be followed, err=%v", err)
		} else {
			svr.closers = append(svr.closers, watch.StopWatcher)
		}
	}

	svr.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: handler.NewRouter(handler.New(cfg, requestOptions...)),
	}
	go func() {
		log.Infof("Serving WMI queries on %v", cfg.Listen)
		if err := svr.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			svr.errc <- err
		}
	}()
	return svr, nil
}

// stop shuts the HTTP server down and releases everything startServer acquired
func (svr *server) stop() (err error) {
	svr.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = svr.httpServer.Shutdown(ctx)
		svr.cleanup()
	})
	return err
}

// cleanup runs the closers in reverse order of acquisition
func (svr *server) cleanup() {
	for i := len(svr.closers) - 1; i >= 0; i-- {
		svr.closers[i]()
	}
	svr.closers = nil
}

// loadConfig returns the configuration file contents, or the defaults, with command line overrides
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if generateKey {
		cfg.AccessKey = uuid.NewV4().String()
		log.Infof("Access key for the %v header: %v", config.AccessKeyHeader, cfg.AccessKey)
	}
	return cfg, cfg.Validate()
}
