package cmd

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/application"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStoreAndGetAppContext(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "root"}
	appCtx := &AppContext{DataDir: "/tmp/seca"}

	storeAppContext(cmd, appCtx)

	assert.Same(t, appCtx, getAppContext(cmd))
}

func TestGetAppContextDefaults(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()
	globalAppContext = nil

	appCtx := getAppContext(nil)

	require.NotNil(t, appCtx)
	assert.NotNil(t, appCtx.Logger)
	assert.Same(t, cliConfig, appCtx.Config)
}

func TestAppContextContainerIsLazyAndReused(t *testing.T) {
	cfg := newCLIConfig()
	cfg.History.Backend = application.HistoryNone
	appCtx := &AppContext{
		Logger:  zaptest.NewLogger(t),
		DataDir: t.TempDir(),
		Config:  cfg,
	}
	assert.Nil(t, appCtx.Services)

	first, err := appCtx.Container(context.Background())
	require.NoError(t, err)
	second, err := appCtx.Container(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Nil(t, first.History)

	appCtx.Close()
	assert.Nil(t, appCtx.Services)
}

func TestAppContextContainerRejectsBadBackend(t *testing.T) {
	cfg := newCLIConfig()
	cfg.History.Backend = "sqlite"
	appCtx := &AppContext{Logger: zaptest.NewLogger(t), DataDir: t.TempDir(), Config: cfg}

	_, err := appCtx.Container(context.Background())

	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	require.NoError(t, versionCmd.RunE(versionCmd, nil))

	assert.Equal(t, "seca-guard version "+currentVersion().Version+"\n", out.String())
}

func TestVersionCommandJSON(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	require.NoError(t, versionCmd.Flags().Set("json", "true"))
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		_ = versionCmd.Flags().Set("json", "false")
	})

	require.NoError(t, versionCmd.RunE(versionCmd, nil))

	var info versionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}
