package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/ha"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { cfgFile = "" })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok: 3 providers, default aws")
	assert.Contains(t, out, "gcp")
}

func TestValidateCommand_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_provider: oracle\n"), 0o600))

	_, err := run(t, "validate", "--config", path)
	assert.Error(t, err)
}

func TestEventsCommand_EmptyLog(t *testing.T) {
	t.Setenv("DRENGINE_DATA_DIR", t.TempDir())

	out, err := run(t, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM")
}

func TestBuildEngine_Wiring(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.File.Dir = t.TempDir()
	cfg.Logging.Level = "error"

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg, nopLogger(t))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, provider.ID("aws"), eng.controller.ActiveProvider().Current)
	assert.ElementsMatch(t,
		[]string{ha.TaskHealthProbe, ha.TaskPerformanceRefresh, ha.TaskFailoverTick},
		eng.scheduler().Tasks())

	// the simulator drives the same controller
	for _, id := range []provider.ID{"aws", "azure", "gcp"} {
		for i := 0; i < health.HistorySize; i++ {
			eng.monitor.RecordAndAppend(health.Sample{Provider: id, Healthy: true})
		}
	}
	res, err := eng.simulator.Execute(ctx, ha.ScenarioProviderFailure)
	require.NoError(t, err)
	assert.True(t, res.FailoverTriggered)
	assert.NotEqual(t, provider.ID("aws"), eng.controller.ActiveProvider().Current)
}

func TestBuildEngine_UnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.File.Dir = t.TempDir()
	cfg.Performance.Source = "carrier-pigeon"

	_, err := buildEngine(context.Background(), cfg, nopLogger(t))
	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)
}
