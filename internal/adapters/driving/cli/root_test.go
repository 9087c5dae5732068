package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/app"
	"github.com/custodia-labs/plancite/internal/core/domain"
)

// execute runs rootCmd with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// stubLoadApp replaces the service bootstrap for one test.
func stubLoadApp(t *testing.T, fn func(context.Context, string) (*app.App, error)) {
	t.Helper()
	old := loadApp
	loadApp = fn
	t.Cleanup(func() {
		loadApp = old
		teardown()
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	})
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "json"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "c", rootCmd.PersistentFlags().Lookup("config").Shorthand)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"index", "search", "ask", "structure", "highlight", "watch", "serve", "mcp", "document", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSetup_LoadError(t *testing.T) {
	stubLoadApp(t, func(context.Context, string) (*app.App, error) {
		return nil, errors.New("bad config")
	})

	_, err := execute(t, "search", "closer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load services: bad config")
}

func TestSetup_PassesConfigPath(t *testing.T) {
	var got string
	stubLoadApp(t, func(_ context.Context, path string) (*app.App, error) {
		got = path
		return nil, errors.New("stop")
	})

	_, _ = execute(t, "--config", "/tmp/plancite.toml", "document", "list")
	assert.Equal(t, "/tmp/plancite.toml", got)
}

func TestSetup_WiresRealServices(t *testing.T) {
	stubLoadApp(t, func(ctx context.Context, _ string) (*app.App, error) {
		s := domain.DefaultSettings()
		s.Storage.DataDir = t.TempDir()
		s.Embedding.Provider = ""
		s.LLM.Provider = ""
		return app.New(ctx, s)
	})

	out, err := execute(t, "document", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed.")
	assert.NotNil(t, closeServices)

	teardown()
	assert.Nil(t, closeServices)
	assert.Nil(t, retrievalService)
}

func TestRequireService(t *testing.T) {
	assert.NoError(t, requireService("x", true))
	err := requireService("retrieval", false)
	assert.ErrorIs(t, err, errNotConfigured)
	assert.Equal(t, "retrieval service not configured", err.Error())
}
