// Copyright 2020 Hewlett Packard Enterprise Development LP

package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	notify "github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatch(t *testing.T) {
	file := filepath.Join(t.TempDir(), "wmiquery.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0600))

	events := make(chan notify.Event, 10)
	watch, err := InitializeWatcher(func(e notify.Event) { events <- e }, 0)
	require.NoError(t, err)
	require.NoError(t, watch.AddWatchList([]string{file}))
	watch.StartWatcher()
	defer watch.StopWatcher()

	require.NoError(t, os.WriteFile(file, []byte(`{"logLevel":"debug"}`), 0600))

	select {
	case e := <-events:
		assert.Equal(t, file, e.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch notification received")
	}
}

func TestFileWatchErrors(t *testing.T) {
	_, err := InitializeWatcher(nil, 0)
	assert.Error(t, err)

	watch, err := InitializeWatcher(func(notify.Event) {}, 0)
	require.NoError(t, err)
	defer watch.StopWatcher()

	assert.Error(t, watch.AddWatchList(nil))
	assert.Error(t, watch.AddWatchList([]string{filepath.Join(t.TempDir(), "missing.json")}))
}

func TestFileWatchStopTwice(t *testing.T) {
	watch, err := InitializeWatcher(func(notify.Event) {}, time.Second)
	require.NoError(t, err)
	watch.StartWatcher()
	watch.StopWatcher()
	watch.StopWatcher()
}
