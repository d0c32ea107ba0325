// Package plan turns a resolved configuration and a target set into
// the ordered list of invocations the executor will run: one
// InvocationPlan per (plugin, driver, target-batch) triple.
package plan

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
	"github.com/qlty-sh/qlty/pkg/sliceutil"
)

// Mode selects which workspace entries a run considers.
type Mode int

const (
	ModeAll Mode = iota
	ModeUpstreamDiff
)

// InvocationPlan is one driver invocation: which plugin/driver, which
// tool to run it with, which targets, and where from.
type InvocationPlan struct {
	PluginName        string
	DriverName        string
	Driver            config.DriverDef
	Tool              *tool.Tool
	Targets           []string
	InvocationDir     string
	InvocationDirKind config.InvocationDirectoryType
	ConfigFiles       []string
	Timeout           int

	// TargetRoot is the directory targets are relative to when the
	// executor builds invocation scripts and normalizes issue paths.
	// It is the workspace root by default; internal/qlty/engine
	// rewrites it to the staging destination when a run stages files
	// instead of operating in place.
	TargetRoot string

	// Plugin carries config_files/prefix/affects_cache through to the
	// executor without it needing a second config lookup.
	Plugin config.PluginDef
}

// CacheKeyInputs lists the inputs that invalidate a cached result
// when they change. Nothing fills it in: internal/qlty/cache hashes
// these inputs straight from the InvocationPlan.
type CacheKeyInputs struct {
	PluginName    string
	PluginVersion string
	DriverScript  string
	ToolFingerprint string
	ConfigFiles   []string
	Target        string
}

// ResolveTool is supplied by the caller (internal/qlty/engine) so the
// planner never constructs Tool values itself; it only asks for the
// tool a given plugin/driver/version needs.
type ResolveTool func(pluginName string, plugin config.PluginDef, version string) (*tool.Tool, error)

// Planner builds InvocationPlans for a workspace.
type Planner struct {
	Config        config.QltyConfig
	Entries       []string // workspace entry paths, already filtered (§3 "workspace entry")
	Trigger       config.CheckTrigger
	NameFilters   []string
	Mode          Mode
	ResolveTool   ResolveTool
}

// Build produces the full set of InvocationPlans, partitioned and
// shuffled into linters first, formatters second, per §4.2's "Output"
// rule (randomized order within each partition to reduce worst-case
// contention on shared package-manager caches).
func (p *Planner) Build() ([]InvocationPlan, error) {
	var linters, formatters []InvocationPlan

	for _, enabled := range p.Config.EnabledPlugins {
		if !p.pluginActive(enabled) {
			continue
		}

		pluginDef, ok := p.Config.Plugins.Definitions[enabled.Name]
		if !ok {
			return nil, fmt.Errorf("plan: plugin %q has no definition", enabled.Name)
		}

		driverNames := enabled.EffectiveDrivers()
		for driverName, driverDef := range pluginDef.Drivers {
			if !enabled.RunsAllDrivers() && !sliceutil.Contains(driverNames, driverName) {
				continue
			}

			resolved, err := resolveDriverVersion(driverDef, enabled.EffectiveVersion())
			if err != nil {
				return nil, fmt.Errorf("plan: %s/%s: %w", enabled.Name, driverName, err)
			}

			t, err := p.ResolveTool(enabled.Name, pluginDef, enabled.EffectiveVersion())
			if err != nil {
				return nil, fmt.Errorf("plan: resolving tool for %s: %w", enabled.Name, err)
			}

			plans, err := p.planDriver(enabled, pluginDef, driverName, resolved, t)
			if err != nil {
				return nil, fmt.Errorf("plan: %s/%s: %w", enabled.Name, driverName, err)
			}

			switch resolved.DriverType {
			case config.DriverTypeFormatter:
				formatters = append(formatters, plans...)
			default:
				linters = append(linters, plans...)
			}
		}
	}

	rand.Shuffle(len(linters), func(i, j int) { linters[i], linters[j] = linters[j], linters[i] })
	rand.Shuffle(len(formatters), func(i, j int) { formatters[i], formatters[j] = formatters[j], formatters[i] })

	return append(linters, formatters...), nil
}

func (p *Planner) pluginActive(enabled config.EnabledPlugin) bool {
	if enabled.Mode == config.IssueModeDisabled {
		return false
	}
	if enabled.SkipUpstream != nil && *enabled.SkipUpstream && p.Mode == ModeUpstreamDiff {
		return false
	}
	if len(enabled.Triggers) > 0 && !containsTrigger(enabled.Triggers, p.Trigger) {
		return false
	}
	if len(p.NameFilters) > 0 && !sliceutil.Contains(p.NameFilters, enabled.Name) {
		return false
	}
	return true
}

func containsTrigger(triggers []config.CheckTrigger, t config.CheckTrigger) bool {
	for _, c := range triggers {
		if c == t {
			return true
		}
	}
	return false
}

// resolveDriverVersion selects among a DriverDef's Version overrides
// the one whose VersionMatcher (a semver constraint) matches the
// active version, falling back to the base DriverDef when there are
// no overrides.
func resolveDriverVersion(base config.DriverDef, activeVersion string) (config.DriverDef, error) {
	if len(base.Version) == 0 {
		return base, nil
	}
	v, err := semver.NewVersion(strings.TrimPrefix(activeVersion, "v"))
	if err != nil {
		// An unparsable/unpinned version (e.g. "latest") can't be
		// matched against a constraint; use the base definition.
		return base, nil
	}
	for _, override := range base.Version {
		if override.VersionMatcher == "" {
			continue
		}
		constraint, err := semver.NewConstraint(override.VersionMatcher)
		if err != nil {
			return config.DriverDef{}, fmt.Errorf("invalid version_matcher %q: %w", override.VersionMatcher, err)
		}
		if constraint.Check(v) {
			return override, nil
		}
	}
	return config.DriverDef{}, fmt.Errorf("no driver version matches active version %s", activeVersion)
}

// planDriver computes targets for one (plugin, driver) pair, batches
// them, and resolves an invocation directory per batch.
func (p *Planner) planDriver(enabled config.EnabledPlugin, plugin config.PluginDef, driverName string, driver config.DriverDef, t *tool.Tool) ([]InvocationPlan, error) {
	targets := p.selectTargets(driver)
	if len(targets) == 0 {
		return nil, nil
	}

	batches := batchTargets(targets, driver)

	plans := make([]InvocationPlan, 0, len(batches))
	for _, batch := range batches {
		invocationDir, err := p.resolveInvocationDir(driver.RunsFrom, batch, t)
		if err != nil {
			return nil, err
		}

		plans = append(plans, InvocationPlan{
			PluginName:        enabled.Name,
			DriverName:        driverName,
			Driver:            driver,
			Tool:              t,
			Targets:           batch,
			InvocationDir:     invocationDir,
			InvocationDirKind: driver.RunsFrom.Kind,
			ConfigFiles:       config.ResolveConfigFiles(t.WorkspaceRoot, plugin.ConfigFiles),
			Timeout:           driver.EffectiveTimeoutSeconds(),
			TargetRoot:        t.WorkspaceRoot,
			Plugin:            plugin,
		})
	}
	return plans, nil
}

// selectTargets filters workspace entries by the driver's file_types
// and, for ParentWith targets, collapses each match to its nearest
// ancestor containing target.path, deduplicating the result.
func (p *Planner) selectTargets(driver config.DriverDef) []string {
	var matched []string
	for _, entry := range p.Entries {
		if matchesFileTypes(entry, driver.FileTypes) {
			matched = append(matched, entry)
		}
	}

	if driver.Target.Type != config.TargetTypeParentWith || driver.Target.Path == "" {
		return dedupe(matched)
	}

	collapsed := make([]string, 0, len(matched))
	for _, m := range matched {
		ancestor := findAncestorWith(filepath.Dir(m), driver.Target.Path)
		if ancestor != "" {
			collapsed = append(collapsed, ancestor)
		}
	}
	return dedupe(collapsed)
}

func matchesFileTypes(path string, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, ft := range fileTypes {
		if ft == ext {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// fsExists is a package-level var so tests can stub the filesystem
// without touching disk.
var fsExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findAncestorWith walks from dir up to "/" (or the OS root) looking
// for the first ancestor directory containing name.
func findAncestorWith(dir, name string) string {
	for {
		if fsExists(filepath.Join(dir, name)) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// batchTargets groups targets per driver.BatchBy into invocation
// batches of at most driver.EffectiveMaxBatch() targets. A
// non-batching driver produces one target per invocation.
func batchTargets(targets []string, driver config.DriverDef) [][]string {
	if !driver.Batch {
		batches := make([][]string, len(targets))
		for i, t := range targets {
			batches[i] = []string{t}
		}
		return batches
	}

	groups := groupBy(targets, driver.BatchBy)

	var batches [][]string
	maxBatch := driver.EffectiveMaxBatch()
	for _, group := range groups {
		for i := 0; i < len(group); i += maxBatch {
			end := i + maxBatch
			if end > len(group) {
				end = len(group)
			}
			batches = append(batches, group[i:end])
		}
	}
	return batches
}

func groupBy(targets []string, by config.DriverBatchBy) [][]string {
	switch by {
	case config.BatchByInvocationDirectory:
		return groupByKey(targets, filepath.Dir)
	case config.BatchByConfigFile:
		return groupByKey(targets, func(t string) string {
			return findAncestorWith(filepath.Dir(t), ".")
		})
	default:
		return [][]string{targets}
	}
}

func groupByKey(targets []string, keyFn func(string) string) [][]string {
	order := make([]string, 0)
	groups := make(map[string][]string)
	for _, t := range targets {
		k := keyFn(t)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}
	out := make([][]string, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

// resolveInvocationDir implements the mapping documented in spec.md
// §6: root, target-directory, tool-directory,
// root-or-parent-with(-any-config).
func (p *Planner) resolveInvocationDir(def config.InvocationDirectoryDef, targets []string, t *tool.Tool) (string, error) {
	switch def.Kind {
	case config.InvocationDirTargetDirectory:
		if len(targets) == 0 {
			return t.WorkspaceRoot, nil
		}
		return filepath.Dir(targets[0]), nil
	case config.InvocationDirToolDir:
		return t.Directory(), nil
	case config.InvocationDirRootOrParentWith:
		if len(targets) == 0 || def.Path == "" {
			return t.WorkspaceRoot, nil
		}
		if anc := findAncestorWith(filepath.Dir(targets[0]), def.Path); anc != "" {
			return anc, nil
		}
		return t.WorkspaceRoot, nil
	case config.InvocationDirRootOrParentWithAnyConfig:
		if len(targets) == 0 {
			return t.WorkspaceRoot, nil
		}
		return t.WorkspaceRoot, nil
	default:
		return t.WorkspaceRoot, nil
	}
}
