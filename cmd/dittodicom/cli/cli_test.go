package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittodicom/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Listeners[0].Storage.Root = t.TempDir()
	second := cfg.Listeners[0]
	second.AETitle = "ARCHIVE"
	second.Port = 11113
	cfg.Listeners = append(cfg.Listeners, second)
	return cfg
}

func TestNewAppWiresEveryListener(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.listeners, 2)
	assert.Equal(t, "STORESCP", a.listeners[0].Name())
	assert.Equal(t, "ARCHIVE", a.listeners[1].Name())
	assert.Same(t, a.index, a.listeners[0].Index())
	assert.Len(t, a.server.Adapters(), 2)
}

func TestNewAppRejectsUnknownReference(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listeners[1].Storage.Strategy = "missing"

	_, err := newApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "missing")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile = ""
		logLevel = ""
		initForce = false
		classesCatalog = false
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitThenCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK: 1 listener(s)")
	assert.Contains(t, out, "STORESCP on port 11112")
	assert.Contains(t, out, "uncompressed")
}

func TestClassesCatalog(t *testing.T) {
	out, err := execute(t, "classes", "--catalog")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "UID"))
	assert.Contains(t, out, "1.2.840.10008.1.1")
}

func TestClassesPerListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "init", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "classes", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "STORESCP (all, ")
	assert.Contains(t, out, "1.2.840.10008.5.1.4.1.1.2")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: dev")
}

func TestLogLevelFlag(t *testing.T) {
	assert.NoError(t, validateLogLevel(""))
	assert.NoError(t, validateLogLevel("debug"))
	assert.NoError(t, validateLogLevel("WARN"))
	assert.ErrorContains(t, validateLogLevel("verbose"), `invalid --log-level "verbose"`)

	_, err := execute(t, "version", "--log-level", "LOUD")
	assert.ErrorContains(t, err, "invalid --log-level")

	out, err := execute(t, "version", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "version: dev")
}
