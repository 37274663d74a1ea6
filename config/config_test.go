// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    func() *Config
		wantErr bool
	}{
		{
			name: "empty document keeps defaults",
			doc:  `{}`,
			want: Default,
		},
		{
			name: "overrides",
			doc:  `{"listen": ":9090", "namespace": "ROOT\\StandardCimv2", "accessKey": "secret", "log": {"level": "debug", "maxFiles": "5"}}`,
			want: func() *Config {
				c := Default()
				c.Listen = ":9090"
				c.Namespace = `ROOT\StandardCimv2`
				c.AccessKey = "secret"
				c.Log.Level = "debug"
				c.Log.MaxFiles = 5
				return c
			},
		},
		{name: "unknown key", doc: `{"listne": ":9090"}`, wantErr: true},
		{name: "bad listen", doc: `{"listen": "nowhere"}`, wantErr: true},
		{name: "bad level", doc: `{"log": {"level": "chatty"}}`, wantErr: true},
		{name: "not json", doc: `listen=:9090`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.doc))
			if tt.wantErr {
				assert.Equal(t, cerrors.InvalidArgument, cerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want(), got)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, cerrors.InvalidArgument, cerrors.CodeOf(err))
}

func TestWatch(t *testing.T) {
	_, err := log.InitLogging("", nil, false, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wmiquery.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": {"level": "info"}}`), 0600))

	changes := make(chan *Config, 10)
	watch, err := Watch(path, func(c *Config) { changes <- c })
	require.NoError(t, err)
	defer watch.StopWatcher()

	// Replace the file the way editors and config management tools do
	staged := path + ".new"
	require.NoError(t, os.WriteFile(staged, []byte(`{"log": {"level": "trace"}}`), 0600))
	require.NoError(t, os.Rename(staged, path))

	select {
	case c := <-changes:
		assert.Equal(t, "trace", c.Log.Level)
		assert.Equal(t, logrus.TraceLevel, log.GetLevel())
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change not delivered")
	}
}
