package template_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semremodel/template"
)

func TestWatchConfig_GetDebounceDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, template.WatchConfig{}.GetDebounceDelay())
	assert.Equal(t, 500*time.Millisecond, template.WatchConfig{DebounceDelay: "bogus"}.GetDebounceDelay())
	assert.Equal(t, 2*time.Second, template.WatchConfig{DebounceDelay: "2s"}.GetDebounceDelay())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	b := snapshot(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infection.yaml"), []byte(infectionYAML), 0o644))

	reg := template.NewRegistry(nil)
	require.NoError(t, reg.LoadDir(dir, "", b.Store()))

	w, err := template.NewWatcher(template.WatchConfig{Dir: dir, DebounceDelay: "50ms"}, reg, b.Store(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"),
		[]byte("name: site-only\ngroups: [{attributes: [{type: finding-site}]}]"), 0o644))

	select {
	case err := <-w.Reloads():
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.Equal(t, []string{"infection-by-organism", "site-only"}, reg.Names())
}
