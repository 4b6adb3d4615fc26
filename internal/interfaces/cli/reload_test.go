package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/internal/config"
	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/testutil"
)

func reloadFixture(t *testing.T) (*CLIContext, *pipeline, string) {
	t.Helper()
	cfgPath := writeTestConfig(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cc := &CLIContext{Config: cfg, ConfigPath: cfgPath, Logger: testutil.NewMockLogger()}
	p, err := buildPipeline(context.Background(), cc, pipelineOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close(context.Background()) })
	return cc, p, cfgPath
}

func fragmentNames(t *testing.T, p *pipeline) []string {
	t.Helper()
	names, _, ok := p.Service().Schema().FamilyColumns(descriptor.FamilyFragment)
	require.True(t, ok)
	return names
}

func writePatternTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.tsv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestApplyConfig_ReloadsPatternTable(t *testing.T) {
	cc, p, _ := reloadFixture(t)
	before := p.Service()

	next := *cc.Config
	next.Pipeline.PatternTable = writePatternTable(t, "[CX3](=O)[OX2H1]\tcarboxylic_acid\n[CX3](=O)[NX3]\tamide\n")
	applyConfig(cc, p, &next)

	assert.NotSame(t, before, p.Service())
	assert.Equal(t, []string{"carboxylic_acid", "amide"}, fragmentNames(t, p))
}

func TestApplyConfig_KeepsServiceOnBadTable(t *testing.T) {
	cc, p, _ := reloadFixture(t)
	want := fragmentNames(t, p)

	next := *cc.Config
	next.Pipeline.PatternTable = writePatternTable(t, "[NX3]\tN\n")
	applyConfig(cc, p, &next)

	assert.Equal(t, want, fragmentNames(t, p))
	logger := cc.Logger.(*testutil.MockLogger)
	assert.True(t, logger.HasMessage("warn", "descriptor families not reloaded, keeping current"))
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	cc, p, cfgPath := reloadFixture(t)
	require.NoError(t, watchConfig(cc, p))

	table := writePatternTable(t, "[CX3](=O)[NX3]\tamide\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigYAML+"  pattern_table: "+table+"\n"), 0o644))

	assert.Eventually(t, func() bool {
		names, _, _ := p.Service().Schema().FamilyColumns(descriptor.FamilyFragment)
		return len(names) == 1 && names[0] == "amide"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchConfig_WithoutFile(t *testing.T) {
	cc, p, _ := reloadFixture(t)
	cc.ConfigPath = ""
	assert.NoError(t, watchConfig(cc, p))
}
