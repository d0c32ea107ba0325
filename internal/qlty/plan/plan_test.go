package plan

import (
	"testing"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolveTool(root string) ResolveTool {
	return func(name string, plugin config.PluginDef, version string) (*tool.Tool, error) {
		return &tool.Tool{
			NameValue:     name,
			VersionValue:  version,
			ToolsRoot:     root,
			WorkspaceRoot: root,
			Plugin:        &plugin,
		}, nil
	}
}

func basicConfig() config.QltyConfig {
	return config.QltyConfig{
		EnabledPlugins: []config.EnabledPlugin{
			{Name: "eslint"},
		},
		Plugins: config.PluginsConfig{
			Definitions: map[string]config.PluginDef{
				"eslint": {
					Drivers: map[string]config.DriverDef{
						"lint": {
							DriverType: config.DriverTypeLinter,
							FileTypes:  []string{"js"},
							Batch:      true,
						},
					},
				},
			},
		},
	}
}

func TestBuildSkipsDisabledPlugin(t *testing.T) {
	cfg := basicConfig()
	cfg.EnabledPlugins[0].Mode = config.IssueModeDisabled

	p := &Planner{Config: cfg, Entries: []string{"a.js"}, ResolveTool: testResolveTool(t.TempDir())}
	plans, err := p.Build()
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestBuildSkipsUpstreamDiffWhenSkipUpstream(t *testing.T) {
	cfg := basicConfig()
	skip := true
	cfg.EnabledPlugins[0].SkipUpstream = &skip

	p := &Planner{Config: cfg, Entries: []string{"a.js"}, Mode: ModeUpstreamDiff, ResolveTool: testResolveTool(t.TempDir())}
	plans, err := p.Build()
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestBuildFiltersByFileType(t *testing.T) {
	cfg := basicConfig()

	p := &Planner{Config: cfg, Entries: []string{"a.js", "b.rb"}, ResolveTool: testResolveTool(t.TempDir())}
	plans, err := p.Build()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"a.js"}, plans[0].Targets)
}

func TestBuildRespectsNameFilter(t *testing.T) {
	cfg := basicConfig()

	p := &Planner{Config: cfg, Entries: []string{"a.js"}, NameFilters: []string{"other"}, ResolveTool: testResolveTool(t.TempDir())}
	plans, err := p.Build()
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestBatchTargetsCapsAtMaxBatch(t *testing.T) {
	driver := config.DriverDef{Batch: true, MaxBatch: 2}
	targets := []string{"a.js", "b.js", "c.js", "d.js", "e.js"}

	batches := batchTargets(targets, driver)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestBatchTargetsNonBatchingDriverOneTargetEach(t *testing.T) {
	driver := config.DriverDef{Batch: false}
	targets := []string{"a.js", "b.js"}

	batches := batchTargets(targets, driver)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 1)
	assert.Len(t, batches[1], 1)
}

func TestResolveDriverVersionFallsBackWithoutOverrides(t *testing.T) {
	driver := config.DriverDef{Script: "base"}
	resolved, err := resolveDriverVersion(driver, "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "base", resolved.Script)
}

func TestResolveDriverVersionSelectsMatchingOverride(t *testing.T) {
	driver := config.DriverDef{
		Script: "base",
		Version: []config.DriverDef{
			{Script: "v2-script", VersionMatcher: ">= 2.0.0"},
			{Script: "v1-script", VersionMatcher: "< 2.0.0"},
		},
	}

	resolved, err := resolveDriverVersion(driver, "1.5.0")
	require.NoError(t, err)
	assert.Equal(t, "v1-script", resolved.Script)

	resolved, err = resolveDriverVersion(driver, "2.5.0")
	require.NoError(t, err)
	assert.Equal(t, "v2-script", resolved.Script)
}

func TestResolveDriverVersionErrorsWhenNoMatch(t *testing.T) {
	driver := config.DriverDef{
		Version: []config.DriverDef{
			{Script: "v2-script", VersionMatcher: ">= 2.0.0"},
		},
	}

	_, err := resolveDriverVersion(driver, "1.0.0")
	assert.Error(t, err)
}

func TestFindAncestorWithUsesStubbedFilesystem(t *testing.T) {
	orig := fsExists
	defer func() { fsExists = orig }()

	fsExists = func(path string) bool {
		return path == "/repo/pkg/.eslintrc"
	}

	got := findAncestorWith("/repo/pkg/sub", ".eslintrc")
	assert.Equal(t, "/repo/pkg", got)
}

func TestFindAncestorWithReturnsEmptyWhenNotFound(t *testing.T) {
	orig := fsExists
	defer func() { fsExists = orig }()

	fsExists = func(path string) bool { return false }

	got := findAncestorWith("/repo/pkg/sub", ".eslintrc")
	assert.Empty(t, got)
}
