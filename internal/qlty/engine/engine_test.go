package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
)

type noopInstaller struct{ calls int }

func (n *noopInstaller) PreInstall(ctx context.Context, t *tool.Tool, out *os.File) error { return nil }
func (n *noopInstaller) Install(ctx context.Context, t *tool.Tool, out *os.File) error {
	n.calls++
	return nil
}
func (n *noopInstaller) PostInstall(ctx context.Context, t *tool.Tool, out *os.File) error {
	return nil
}

func newTestWorkspace(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.txt"), []byte("hello\n"), 0o644))
	return dir
}

func newTestEngine(workspace string, installer tool.Installer) *Engine {
	return &Engine{
		WorkspaceRoot: workspace,
		ToolsRoot:     filepath.Join(workspace, ".qlty-tools"),
		Entries:       []string{"main.txt"},
		Jobs:          1,
		Installers:    map[tool.Kind]tool.Installer{tool.KindRuntime: installer},
		Config: config.QltyConfig{
			EnabledPlugins: []config.EnabledPlugin{{Name: "noop"}},
			Plugins: config.PluginsConfig{
				Definitions: map[string]config.PluginDef{
					"noop": {
						Drivers: map[string]config.DriverDef{
							"lint": {
								Script:       "echo -n ''",
								Output:       config.OutputStdout,
								OutputFormat: config.FormatRegex,
								OutputRegex:  `(?P<path>\S+): (?P<message>.+)`,
								DriverType:   config.DriverTypeLinter,
								CacheResults: false,
							},
						},
					},
				},
			},
		},
	}
}

func TestEngineRunProducesEmptyResultsForPassingLinter(t *testing.T) {
	workspace := newTestWorkspace(t)
	installer := &noopInstaller{}
	e := newTestEngine(workspace, installer)

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results.Issues)
	require.Len(t, results.Invocations, 1)
	assert.Equal(t, 1, installer.calls, "tool should be installed exactly once")
}

func TestEngineRunInstallsEachDistinctToolOnlyOnce(t *testing.T) {
	workspace := newTestWorkspace(t)
	installer := &noopInstaller{}
	e := newTestEngine(workspace, installer)
	e.Config.EnabledPlugins = append(e.Config.EnabledPlugins, config.EnabledPlugin{Name: "noop", Version: "latest"})

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, installer.calls, "same plugin/version resolves to the same tool directory")
}

func TestEngineRunStagesFilesWhenStageIsSet(t *testing.T) {
	workspace := newTestWorkspace(t)
	installer := &noopInstaller{}
	e := newTestEngine(workspace, installer)
	e.Stage = true

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results.Issues)
}

func TestResolveToolInfersRuntimePackageKindAndChainsRuntime(t *testing.T) {
	workspace := t.TempDir()
	e := &Engine{
		WorkspaceRoot: workspace,
		ToolsRoot:     filepath.Join(workspace, ".qlty-tools"),
		Config: config.QltyConfig{
			Runtimes: config.EnabledRuntimes{Enabled: map[config.Runtime]string{config.RuntimeNode: "20.0.0"}},
		},
	}

	tl, err := e.resolveTool("eslint", config.PluginDef{Runtime: config.RuntimeNode}, "8.0.0")
	require.NoError(t, err)
	assert.Equal(t, tool.KindRuntimePackage, tl.ToolKind())
	require.NotNil(t, tl.Runtime)
	assert.Equal(t, "node", tl.Runtime.Name())
	assert.Equal(t, "20.0.0", tl.Runtime.Version())
}

func TestResolveToolInfersGitHubReleaseKind(t *testing.T) {
	e := &Engine{}
	tl, err := e.resolveTool("ripgrep", config.PluginDef{RunnableArchiveURL: "https://example.com/rg.tar.gz"}, "13.0.0")
	require.NoError(t, err)
	assert.Equal(t, tool.KindGitHubRelease, tl.ToolKind())
}

func TestResolveToolInfersDownloadKind(t *testing.T) {
	e := &Engine{}
	tl, err := e.resolveTool("shellcheck", config.PluginDef{Downloads: []string{"https://example.com/shellcheck"}}, "0.9.0")
	require.NoError(t, err)
	assert.Equal(t, tool.KindDownload, tl.ToolKind())
}

func TestResolveToolDefaultsToRuntimeKind(t *testing.T) {
	e := &Engine{}
	tl, err := e.resolveTool("python", config.PluginDef{}, "3.12.0")
	require.NoError(t, err)
	assert.Equal(t, tool.KindRuntime, tl.ToolKind())
}

func TestStagePathsIncludesEntriesAndInWorkspaceConfigFiles(t *testing.T) {
	workspace := t.TempDir()
	e := &Engine{WorkspaceRoot: workspace, Entries: []string{"a.go", "b.go"}}

	invocations := []plan.InvocationPlan{
		{ConfigFiles: []string{filepath.Join(workspace, ".eslintrc"), "/etc/outside"}},
	}

	paths := e.stagePaths(invocations)
	assert.Contains(t, paths, "a.go")
	assert.Contains(t, paths, "b.go")
	assert.Contains(t, paths, ".eslintrc")
	assert.NotContains(t, paths, "/etc/outside")
}

func TestStagePathsDeduplicates(t *testing.T) {
	e := &Engine{WorkspaceRoot: t.TempDir(), Entries: []string{"a.go", "a.go"}}
	paths := e.stagePaths(nil)
	assert.Equal(t, []string{"a.go"}, paths)
}
