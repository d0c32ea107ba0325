// Package engine wires every other package in this module into the
// single run spec.md §2 describes: Planner -> ToolManager.install ->
// StagingArea.stage -> Executor.run -> cache lookup/write -> aggregate.
// It is the one package allowed to know about all the others.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/cache"
	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/execute"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/internal/qlty/stage"
	"github.com/qlty-sh/qlty/internal/qlty/suppress"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
	"github.com/qlty-sh/qlty/internal/qlty/transform"
)

// Engine owns the one piece of orchestration none of the other
// packages do on their own: deciding which tool needs installing,
// staging the files a run touches, and handing the resolved plan to
// the executor with a cache and transformer chain attached.
//
// Configuration-file loading and plugin-source fetching are out of
// scope per spec.md §1, so Config arrives already parsed and
// Installers already implements the package-specific fetch/build
// steps; Entries arrives already discovered (workspace entry walking
// is the CLI's job, not this engine's).
type Engine struct {
	WorkspaceRoot string
	ToolsRoot     string
	Config        config.QltyConfig
	Entries       []string
	Trigger       config.CheckTrigger
	NameFilters   []string
	Mode          plan.Mode
	Installers    map[tool.Kind]tool.Installer
	Jobs          int
	// Filters scopes issues to specific tool/rule names the way a CLI
	// -filter flag would; empty means every issue passes.
	Filters            []string
	SkipErroredPlugins bool
	// Stage runs the plan against a scratch copy of the workspace
	// (spec.md §4.3) rather than in place. Off by default: most of
	// this engine's own tests run directly against a temp workspace.
	Stage bool
}

// Run builds the invocation plan, installs whatever tools it needs,
// optionally stages the run, then executes it.
func (e *Engine) Run(ctx context.Context) (*execute.Results, error) {
	manager := tool.NewManager(e.Installers)

	planner := &plan.Planner{
		Config:      e.Config,
		Entries:     e.Entries,
		Trigger:     e.Trigger,
		NameFilters: e.NameFilters,
		Mode:        e.Mode,
		ResolveTool: e.resolveTool,
	}

	invocations, err := planner.Build()
	if err != nil {
		return nil, fmt.Errorf("engine: planning: %w", err)
	}

	if err := e.installTools(ctx, manager, invocations); err != nil {
		return nil, err
	}

	reader := suppress.SourceReader(suppress.SourceReaderFs{Root: e.WorkspaceRoot})
	if e.Stage {
		reader, err = e.stageRun(invocations)
		if err != nil {
			return nil, err
		}
	}

	executor := execute.NewExecutor(invocations, e.Jobs)
	executor.Transformers = toExecuteTransformers(transform.Chain(e.Filters, reader))
	executor.Cache = cache.NewIssueCache(e.WorkspaceRoot)
	executor.SkipErroredPlugins = e.SkipErroredPlugins

	return executor.Run(ctx)
}

// installTools installs every distinct tool the plan references.
// Distinctness is keyed by install directory, since two invocations
// of the same plugin at the same version/fingerprint resolve to the
// same *tool.Tool directory and only need installing once.
func (e *Engine) installTools(ctx context.Context, manager *tool.Manager, invocations []plan.InvocationPlan) error {
	installed := make(map[string]bool)
	for i := range invocations {
		t := invocations[i].Tool
		if t == nil || installed[t.Directory()] {
			continue
		}
		if err := manager.Setup(ctx, t); err != nil {
			return fmt.Errorf("engine: installing %s: %w", t.Name(), err)
		}
		installed[t.Directory()] = true
	}
	return nil
}

// stageRun materializes every workspace entry and config file the
// plan touches into a fresh staging area, then rewrites each plan's
// TargetRoot to the staging destination so the executor and its
// transformer chain read from the stable copy instead of the live
// workspace.
func (e *Engine) stageRun(invocations []plan.InvocationPlan) (suppress.SourceReader, error) {
	area, err := stage.NewArea(e.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("engine: creating staging area: %w", err)
	}

	if err := area.StageAll(e.stagePaths(invocations)); err != nil {
		return nil, fmt.Errorf("engine: staging: %w", err)
	}

	for i := range invocations {
		invocations[i].TargetRoot = area.DestinationDirectory
	}

	return suppress.SourceReaderFs{Root: area.DestinationDirectory}, nil
}

// stagePaths collects every workspace-relative path a run needs:
// every entry the caller handed in, plus every plugin's config files
// that live inside the workspace (an absolute config file outside the
// workspace, e.g. a user's home directory, is read in place and never
// staged).
func (e *Engine) stagePaths(invocations []plan.InvocationPlan) []string {
	seen := make(map[string]bool)
	var paths []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, entry := range e.Entries {
		add(entry)
	}

	for _, inv := range invocations {
		for _, cf := range inv.ConfigFiles {
			rel, err := filepath.Rel(e.WorkspaceRoot, cf)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			add(rel)
		}
	}

	return paths
}

// resolveTool builds the *tool.Tool a plan needs to run a given
// plugin, inferring its Kind from which source fields the plugin
// definition carries. Concrete package-fetch/build logic never lives
// here: e.Installers supplies it, the same way Entries supplies
// workspace discovery.
func (e *Engine) resolveTool(pluginName string, def config.PluginDef, version string) (*tool.Tool, error) {
	t := &tool.Tool{
		NameValue:       pluginName,
		VersionValue:    version,
		ToolsRoot:       e.ToolsRoot,
		WorkspaceRoot:   e.WorkspaceRoot,
		Plugin:          &def,
		VersionCommand:  def.VersionCommand,
		VersionRegexStr: def.VersionRegex,
	}

	switch {
	case def.RunnableArchiveURL != "" || len(def.Releases) > 0:
		t.KindValue = tool.KindGitHubRelease
	case len(def.Downloads) > 0:
		t.KindValue = tool.KindDownload
	case def.Runtime != "":
		t.KindValue = tool.KindRuntimePackage
		runtimeTool, err := e.resolveRuntime(def.Runtime)
		if err != nil {
			return nil, err
		}
		t.Runtime = runtimeTool
	default:
		t.KindValue = tool.KindRuntime
	}

	return t, nil
}

// resolveRuntime builds the Tool for a plugin's language runtime
// dependency, pinned to whatever version the config's runtimes.enabled
// map carries for it (falling back to "latest" semantics the way an
// unpinned plugin version does, by leaving VersionValue empty).
func (e *Engine) resolveRuntime(rt config.Runtime) (*tool.Tool, error) {
	return &tool.Tool{
		NameValue:     string(rt),
		VersionValue:  e.Config.Runtimes.Enabled[rt],
		KindValue:     tool.KindRuntime,
		ToolsRoot:     e.ToolsRoot,
		WorkspaceRoot: e.WorkspaceRoot,
	}, nil
}

// toExecuteTransformers re-views a transform.Chain's stages as
// execute.Transformer values. transform.Transformer and
// execute.Transformer share an identical method set by design (see
// transform package doc comment), so no adapter type is needed, only
// the conversion of the slice's static element type.
func toExecuteTransformers(stages []transform.Transformer) []execute.Transformer {
	out := make([]execute.Transformer, len(stages))
	for i, s := range stages {
		out[i] = s
	}
	return out
}
