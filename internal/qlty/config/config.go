// Package config defines the qlty.toml/qlty.yaml plugin configuration
// schema: plugin definitions, driver definitions, targets, invocation
// directories, and the enums that drive how the planner and executor
// interpret a plugin. Field names and defaults are carried over from
// the plugin configuration format directly (renamed to Go idiom, tags
// preserved).
package config

import (
	"path/filepath"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// DriverBatchBy controls how targets are grouped into a single
// invocation of a driver.
type DriverBatchBy string

const (
	BatchByNone                DriverBatchBy = "none"
	BatchByInvocationDirectory DriverBatchBy = "invocation_directory"
	BatchByConfigFile          DriverBatchBy = "config_file"
)

// InvocationDirectoryType selects the working directory a driver runs
// from.
type InvocationDirectoryType string

const (
	InvocationDirRoot                     InvocationDirectoryType = "root"
	InvocationDirTargetDirectory          InvocationDirectoryType = "target_directory"
	InvocationDirRootOrParentWithAnyConfig InvocationDirectoryType = "root_or_parent_with_any_config"
	InvocationDirRootOrParentWith         InvocationDirectoryType = "root_or_parent_with"
	InvocationDirToolDir                  InvocationDirectoryType = "tool_directory"
)

// InvocationDirectoryDef names the directory a driver invocation runs
// from.
type InvocationDirectoryDef struct {
	Kind InvocationDirectoryType `yaml:"type,omitempty" json:"type,omitempty"`
	Path string                  `yaml:"path,omitempty" json:"path,omitempty"`
}

// TargetType selects which filesystem entries a driver receives as
// arguments.
type TargetType string

const (
	TargetTypeFile       TargetType = "file"
	TargetTypeParentWith TargetType = "parent_with"
	TargetTypeLiteral    TargetType = "literal"
	TargetTypeParent     TargetType = "parent"
)

// TargetDef describes what a driver receives on its command line: the
// matched file itself, a literal string, the file's parent directory,
// or the nearest ancestor directory containing a named config file.
type TargetDef struct {
	Type TargetType `yaml:"type,omitempty" json:"type,omitempty"`
	Path string     `yaml:"path,omitempty" json:"path,omitempty"`
}

// OutputLevel is a static severity a driver may declare. The SARIF
// parsers apply it over every result's own level; the regex, tsc and
// generic JSON parsers use it as the level for issues whose output
// carries none; the clippy, eslint, biome, ripgrep and golangci-lint
// parsers ignore it.
type OutputLevel string

const (
	OutputLevelHigh   OutputLevel = "high"
	OutputLevelMedium OutputLevel = "medium"
	OutputLevelLow    OutputLevel = "low"
	OutputLevelFmt    OutputLevel = "fmt"
)

// ToIssueLevel maps the config-level OutputLevel onto the issue.Level
// enum used on the wire.
func (l OutputLevel) ToIssueLevel() issue.Level {
	switch l {
	case OutputLevelHigh:
		return issue.LevelHigh
	case OutputLevelLow:
		return issue.LevelLow
	case OutputLevelFmt:
		return issue.LevelFmt
	default:
		return issue.LevelMedium
	}
}

// OutputCategory is a static category override applied to every issue
// a driver produces.
type OutputCategory string

const (
	OutputCategoryBug             OutputCategory = "bug"
	OutputCategoryVulnerability   OutputCategory = "vulnerability"
	OutputCategorySecurityHotspot OutputCategory = "security_hotspot"
	OutputCategoryPerformance     OutputCategory = "performance"
	OutputCategoryStyle           OutputCategory = "style"
	OutputCategoryDocumentation   OutputCategory = "documentation"
	OutputCategoryAntiPattern     OutputCategory = "anti-pattern"
	OutputCategoryTypeCheck       OutputCategory = "type_check"
	OutputCategoryAccessibility   OutputCategory = "accessibility"
	OutputCategoryStructure       OutputCategory = "structure"
	OutputCategoryDuplication     OutputCategory = "duplication"
	OutputCategoryDeadCode        OutputCategory = "dead_code"
	OutputCategoryLint            OutputCategory = "lint"
	OutputCategorySecret          OutputCategory = "secret"
	OutputCategoryDependencyAlert OutputCategory = "dependency_alert"
)

// ToIssueCategory maps the config-level OutputCategory onto the
// issue.Category enum. AntiPattern, Documentation, and Structure have
// no direct wire counterpart and fall back to Lint.
func (c OutputCategory) ToIssueCategory() issue.Category {
	switch c {
	case OutputCategoryBug:
		return issue.CategoryBug
	case OutputCategoryVulnerability:
		return issue.CategoryVulnerability
	case OutputCategorySecurityHotspot:
		return issue.CategorySecurityHotspot
	case OutputCategoryPerformance:
		return issue.CategoryPerformance
	case OutputCategoryStyle:
		return issue.CategoryStyle
	case OutputCategoryTypeCheck:
		return issue.CategoryTypeCheck
	case OutputCategoryAccessibility:
		return issue.CategoryAccessibility
	case OutputCategoryDuplication:
		return issue.CategoryDuplication
	case OutputCategoryDeadCode:
		return issue.CategoryDeadCode
	case OutputCategorySecret:
		return issue.CategorySecret
	case OutputCategoryDependencyAlert:
		return issue.CategoryDependencyAlert
	default:
		return issue.CategoryLint
	}
}

// DriverType distinguishes a driver that reports problems (Linter), one
// that rewrites files in place (Formatter), or one that only signals
// pass/fail (Validator).
type DriverType string

const (
	DriverTypeLinter    DriverType = "linter"
	DriverTypeFormatter DriverType = "formatter"
	DriverTypeValidator DriverType = "validator"
)

// OutputDestination is where a driver's result is read from.
type OutputDestination string

const (
	OutputStdout   OutputDestination = "stdout"
	OutputStderr   OutputDestination = "stderr"
	OutputTmpfile  OutputDestination = "tmpfile"
	OutputRewrite  OutputDestination = "rewrite"
	OutputPassFail OutputDestination = "pass_fail"
)

// OutputFormat names the parser used to interpret a driver's output.
// The set mirrors the formats the executor's parser dispatch
// recognizes.
type OutputFormat string

const (
	FormatSarif          OutputFormat = "sarif"
	FormatEslint         OutputFormat = "eslint"
	FormatHadolint       OutputFormat = "hadolint"
	FormatMarkdownlint   OutputFormat = "markdownlint"
	FormatPylint         OutputFormat = "pylint"
	FormatRegex          OutputFormat = "regex"
	FormatRubocop        OutputFormat = "rubocop"
	FormatShellcheck     OutputFormat = "shellcheck"
	FormatStylelint      OutputFormat = "stylelint"
	FormatTaplo          OutputFormat = "taplo"
	FormatSqlfluff       OutputFormat = "sqlfluff"
	FormatTrivySarif     OutputFormat = "trivy_sarif"
	FormatActionlint     OutputFormat = "actionlint"
	FormatTrufflehog     OutputFormat = "trufflehog"
	FormatTsc            OutputFormat = "tsc"
	FormatKnip           OutputFormat = "knip"
	FormatBandit         OutputFormat = "bandit"
	FormatClippy         OutputFormat = "clippy"
	FormatRipgrep        OutputFormat = "ripgrep"
	FormatPhpstan        OutputFormat = "phpstan"
	FormatPhpCodesniffer OutputFormat = "php_codesniffer"
	FormatRadarlint      OutputFormat = "radarlint"
	FormatMypy           OutputFormat = "mypy"
	FormatCoffeelint     OutputFormat = "coffeelint"
	FormatRuff           OutputFormat = "ruff"
	FormatGolangciLint   OutputFormat = "golangci_lint"
	FormatBiome          OutputFormat = "biome"
)

// SuggestionMode controls when a plugin's driver is re-run in
// "suggest" mode to produce autofix patches.
type SuggestionMode string

const (
	SuggestionNever   SuggestionMode = "never"
	SuggestionConfig  SuggestionMode = "config"
	SuggestionTargets SuggestionMode = "targets"
)

// Runtime is the language runtime a tool or plugin depends on.
type Runtime string

const (
	RuntimeGo     Runtime = "go"
	RuntimeRuby   Runtime = "ruby"
	RuntimePython Runtime = "python"
	RuntimeNode   Runtime = "node"
	RuntimeRust   Runtime = "rust"
	RuntimeJava   Runtime = "java"
	RuntimePhp    Runtime = "php"
)

// IssueMode governs how the CLI treats issues from a plugin: blocking
// the check, commenting only, silently monitored, or fully disabled.
type IssueMode string

const (
	IssueModeBlock    IssueMode = "block"
	IssueModeComment  IssueMode = "comment"
	IssueModeMonitor  IssueMode = "monitor"
	IssueModeDisabled IssueMode = "disabled"
)

// ToIssueMode maps the config-level IssueMode onto the issue.Mode wire
// enum, defaulting unrecognized values to Block.
func (m IssueMode) ToIssueMode() issue.Mode {
	switch m {
	case IssueModeComment:
		return issue.ModeComment
	case IssueModeMonitor:
		return issue.ModeMonitor
	case IssueModeDisabled:
		return issue.ModeDisabled
	default:
		return issue.ModeBlock
	}
}

// CheckTrigger names a point in a developer's workflow a plugin can be
// run from.
type CheckTrigger string

const (
	TriggerManual    CheckTrigger = "manual"
	TriggerPreCommit CheckTrigger = "pre-commit"
	TriggerPrePush   CheckTrigger = "pre-push"
	TriggerBuild     CheckTrigger = "build"
)

// PackageFileCandidate names a manifest file searched for when
// resolving an extra_packages driven install (npm vs bundler).
type PackageFileCandidate string

const (
	PackageFileNPM     PackageFileCandidate = "package.json"
	PackageFileBundler PackageFileCandidate = "Gemfile"
)

// PluginEnvironment adds or extends one environment variable in a
// driver's invocation environment. Exactly one of Value or List
// should be set; List entries are platform-path-joined.
type PluginEnvironment struct {
	Name  string   `yaml:"name" json:"name"`
	List  []string `yaml:"list,omitempty" json:"list,omitempty"`
	Value string   `yaml:"value,omitempty" json:"value,omitempty"`
}

// PluginFetch downloads a single file (e.g. a vendored rule set) into
// the plugin's tool directory before the driver runs.
type PluginFetch struct {
	URL  string `yaml:"url" json:"url"`
	Path string `yaml:"path" json:"path"`
}

// ExtraPackage is one additional package installed alongside a
// plugin's primary package, written as "name@version" in config and
// split on the last '@' on decode.
type ExtraPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// UnmarshalYAML splits the "name@version" scalar form used in config
// files.
func (p *ExtraPackage) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	name, version, _ := cutLastAt(s)
	p.Name = name
	p.Version = version
	return nil
}

func cutLastAt(s string) (name, version string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// DriverDef is one named invocation recipe for a plugin: how to run
// it, what exit codes mean, how to parse its output, and where it
// runs from. A plugin definition can carry several DriverDefs keyed by
// name (commonly "lint"/"format"), plus version-specific overrides in
// Version.
type DriverDef struct {
	Script          string                  `yaml:"script,omitempty" json:"script,omitempty"`
	Output          OutputDestination       `yaml:"output,omitempty" json:"output,omitempty"`
	OutputFormat    OutputFormat            `yaml:"output_format,omitempty" json:"output_format,omitempty"`
	OutputRegex     string                  `yaml:"output_regex,omitempty" json:"output_regex,omitempty"`
	OutputLevel     OutputLevel             `yaml:"output_level,omitempty" json:"output_level,omitempty"`
	OutputCategory  OutputCategory          `yaml:"output_category,omitempty" json:"output_category,omitempty"`
	DriverType      DriverType              `yaml:"driver_type,omitempty" json:"driver_type,omitempty"`
	Batch           bool                    `yaml:"batch,omitempty" json:"batch,omitempty"`
	MaxBatch        int                     `yaml:"max_batch,omitempty" json:"max_batch,omitempty"`
	SuccessCodes    []int                   `yaml:"success_codes,omitempty" json:"success_codes,omitempty"`
	NoIssueCodes    []int                   `yaml:"no_issue_codes,omitempty" json:"no_issue_codes,omitempty"`
	ErrorCodes      []int                   `yaml:"error_codes,omitempty" json:"error_codes,omitempty"`
	CacheResults    bool                    `yaml:"cache_results,omitempty" json:"cache_results,omitempty"`
	FileTypes       []string                `yaml:"file_types,omitempty" json:"file_types,omitempty"`
	Target          TargetDef               `yaml:"target,omitempty" json:"target,omitempty"`
	RunsFrom        InvocationDirectoryDef  `yaml:"runs_from,omitempty" json:"runs_from,omitempty"`
	PrepareScript   string                  `yaml:"prepare_script,omitempty" json:"prepare_script,omitempty"`
	SkipUpstream    bool                    `yaml:"skip_upstream,omitempty" json:"skip_upstream,omitempty"`
	Version         []DriverDef             `yaml:"version,omitempty" json:"version,omitempty"`
	VersionMatcher  string                  `yaml:"version_matcher,omitempty" json:"version_matcher,omitempty"`
	CopyConfigsInto bool                    `yaml:"copy_configs_into_tool_install,omitempty" json:"copy_configs_into_tool_install,omitempty"`
	ConfigFiles     []string                `yaml:"config_files,omitempty" json:"config_files,omitempty"`
	Suggested       SuggestionMode          `yaml:"suggested,omitempty" json:"suggested,omitempty"`
	KnownGoodVersion string                 `yaml:"known_good_version,omitempty" json:"known_good_version,omitempty"`
	BatchBy         DriverBatchBy           `yaml:"batch_by,omitempty" json:"batch_by,omitempty"`
	Timeout         int                     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	AutoloadScript  string                  `yaml:"autoload_script,omitempty" json:"autoload_script,omitempty"`
	MissingOutputAsError bool               `yaml:"missing_output_as_error,omitempty" json:"missing_output_as_error,omitempty"`
}

// DefaultMaxBatch is applied when a DriverDef omits max_batch.
const DefaultMaxBatch = 64

// DefaultDriverTimeoutSeconds is applied when a DriverDef omits
// timeout.
const DefaultDriverTimeoutSeconds = 600

// EffectiveMaxBatch returns MaxBatch, defaulting to DefaultMaxBatch
// when unset.
func (d DriverDef) EffectiveMaxBatch() int {
	if d.MaxBatch > 0 {
		return d.MaxBatch
	}
	return DefaultMaxBatch
}

// EffectiveTimeoutSeconds returns Timeout, defaulting to
// DefaultDriverTimeoutSeconds when unset.
func (d DriverDef) EffectiveTimeoutSeconds() int {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultDriverTimeoutSeconds
}

// PluginDef describes one installable check/format plugin: its
// package source, supported file types, and the named drivers it
// exposes.
type PluginDef struct {
	Runtime                  Runtime                        `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Version                  string                         `yaml:"version,omitempty" json:"version,omitempty"`
	LatestVersion             string                         `yaml:"latest_version,omitempty" json:"latest_version,omitempty"`
	KnownGoodVersion         string                         `yaml:"known_good_version,omitempty" json:"known_good_version,omitempty"`
	KnownBadVersions         []string                       `yaml:"known_bad_versions,omitempty" json:"known_bad_versions,omitempty"`
	FileTypes                []string                       `yaml:"file_types,omitempty" json:"file_types,omitempty"`
	ConfigFiles              []string                       `yaml:"config_files,omitempty" json:"config_files,omitempty"`
	Downloads                []string                       `yaml:"downloads,omitempty" json:"downloads,omitempty"`
	Releases                 []string                       `yaml:"releases,omitempty" json:"releases,omitempty"`
	Package                  string                         `yaml:"package,omitempty" json:"package,omitempty"`
	ExtraPackages            []ExtraPackage                 `yaml:"extra_packages,omitempty" json:"extra_packages,omitempty"`
	PackageFile              string                         `yaml:"package_file,omitempty" json:"package_file,omitempty"`
	AffectsCache             []string                       `yaml:"affects_cache,omitempty" json:"affects_cache,omitempty"`
	Drivers                  map[string]DriverDef           `yaml:"drivers,omitempty" json:"drivers,omitempty"`
	VersionCommand           string                         `yaml:"version_command,omitempty" json:"version_command,omitempty"`
	VersionRegex             string                         `yaml:"version_regex,omitempty" json:"version_regex,omitempty"`
	IssueURLFormat           string                         `yaml:"issue_url_format,omitempty" json:"issue_url_format,omitempty"`
	RunnableArchiveURL       string                         `yaml:"runnable_archive_url,omitempty" json:"runnable_archive_url,omitempty"`
	DownloadType             string                         `yaml:"download_type,omitempty" json:"download_type,omitempty"`
	StripComponents          int                            `yaml:"strip_components,omitempty" json:"strip_components,omitempty"`
	Environment              []PluginEnvironment            `yaml:"environment,omitempty" json:"environment,omitempty"`
	Description              string                         `yaml:"description,omitempty" json:"description,omitempty"`
	Security                 bool                           `yaml:"security,omitempty" json:"security,omitempty"`
	Idempotent               bool                           `yaml:"idempotent,omitempty" json:"idempotent,omitempty"`
	Hidden                   bool                           `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Fetch                    []PluginFetch                  `yaml:"fetch,omitempty" json:"fetch,omitempty"`
	PackageFilters           []string                       `yaml:"package_filters,omitempty" json:"package_filters,omitempty"`
	PackageFileCandidate     PackageFileCandidate           `yaml:"package_file_candidate,omitempty" json:"package_file_candidate,omitempty"`
	PackageFileCandidateFilters []string                    `yaml:"package_file_candidate_filters,omitempty" json:"package_file_candidate_filters,omitempty"`
	Prefix                   string                         `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// DefaultVersionRegex matches a bare semantic version inside arbitrary
// `--version` output, used when a PluginDef omits version_regex.
const DefaultVersionRegex = `(\d+\.\d+\.\d+)`

// EffectiveVersionRegex returns VersionRegex, defaulting to
// DefaultVersionRegex when unset.
func (p PluginDef) EffectiveVersionRegex() string {
	if p.VersionRegex != "" {
		return p.VersionRegex
	}
	return DefaultVersionRegex
}

// DefaultIdempotent is the idempotence assumed for a plugin that does
// not set the field. Nothing in config loading applies it: a
// PluginDef decoded without idempotent has Idempotent false.
const DefaultIdempotent = true

// ALL is the sentinel driver name meaning "every driver this plugin
// defines", used in EnabledPlugin.Drivers.
const ALL = "ALL"

// DefaultPluginVersion is used when an EnabledPlugin omits version.
const DefaultPluginVersion = "latest"

// EnabledPlugin is one plugin activation inside a workspace's
// qlty.toml: which plugin, which version, which drivers, and any
// per-workspace overrides.
type EnabledPlugin struct {
	Name          string         `yaml:"name" json:"name"`
	Version       string         `yaml:"version,omitempty" json:"version,omitempty"`
	PackageFile   string         `yaml:"package_file,omitempty" json:"package_file,omitempty"`
	ExtraPackages []ExtraPackage `yaml:"extra_packages,omitempty" json:"extra_packages,omitempty"`
	ConfigFiles   []string       `yaml:"config_files,omitempty" json:"config_files,omitempty"`
	AffectsCache  []string       `yaml:"affects_cache,omitempty" json:"affects_cache,omitempty"`
	Drivers       []string       `yaml:"drivers,omitempty" json:"drivers,omitempty"`
	Mode          IssueMode      `yaml:"mode,omitempty" json:"mode,omitempty"`
	SkipUpstream  *bool          `yaml:"skip_upstream,omitempty" json:"skip_upstream,omitempty"`
	Triggers      []CheckTrigger `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Fetch         []PluginFetch  `yaml:"fetch,omitempty" json:"fetch,omitempty"`
	PackageFilters []string      `yaml:"package_filters,omitempty" json:"package_filters,omitempty"`
	Prefix        string         `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// EffectiveVersion returns Version, defaulting to "latest".
func (e EnabledPlugin) EffectiveVersion() string {
	if e.Version != "" {
		return e.Version
	}
	return DefaultPluginVersion
}

// EffectiveDrivers returns Drivers, defaulting to []string{ALL}.
func (e EnabledPlugin) EffectiveDrivers() []string {
	if len(e.Drivers) > 0 {
		return e.Drivers
	}
	return []string{ALL}
}

// RunsAllDrivers reports whether the enabled plugin should run every
// driver the plugin definition exposes.
func (e EnabledPlugin) RunsAllDrivers() bool {
	drivers := e.EffectiveDrivers()
	return len(drivers) == 1 && drivers[0] == ALL
}

// EnabledRuntimes pins a specific runtime version for every plugin
// that depends on it, overriding the runtime's own latest-release
// resolution.
type EnabledRuntimes struct {
	Enabled map[Runtime]string `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// PluginsConfig is the "plugins" section of a qlty.toml: the download
// and release sources plugins can reference, and the plugin
// definitions themselves (normally supplied by a bundled plugins
// repository rather than hand-written per workspace).
type PluginsConfig struct {
	Downloads   map[string]DownloadDef `yaml:"downloads,omitempty" json:"downloads,omitempty"`
	Releases    map[string]ReleaseDef  `yaml:"releases,omitempty" json:"releases,omitempty"`
	Definitions map[string]PluginDef   `yaml:"definitions,omitempty" json:"definitions,omitempty"`
}

// DownloadDef describes how to fetch and unpack a tool distributed as
// a direct URL download rather than through a language package
// manager.
type DownloadDef struct {
	URL          string            `yaml:"url,omitempty" json:"url,omitempty"`
	Arch         map[string]string `yaml:"arch,omitempty" json:"arch,omitempty"`
	System       map[string]string `yaml:"system,omitempty" json:"system,omitempty"`
	StripComponents int            `yaml:"strip_components,omitempty" json:"strip_components,omitempty"`
	BinaryName   string            `yaml:"binary_name,omitempty" json:"binary_name,omitempty"`
}

// ReleaseDef describes how to fetch a tool published as a GitHub
// release asset.
type ReleaseDef struct {
	GitHub       string            `yaml:"github,omitempty" json:"github,omitempty"`
	AssetPattern string            `yaml:"asset_pattern,omitempty" json:"asset_pattern,omitempty"`
	StripComponents int            `yaml:"strip_components,omitempty" json:"strip_components,omitempty"`
	BinaryName   string            `yaml:"binary_name,omitempty" json:"binary_name,omitempty"`
}

// QltyConfig is the root of a workspace's qlty.toml (stored and parsed
// as YAML in this engine; the CLI's own frontmatter/TOML compatibility
// layer is out of scope).
type QltyConfig struct {
	ConfigVersion string           `yaml:"config_version,omitempty" json:"config_version,omitempty"`
	ExcludePatterns []string       `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`
	Plugins       PluginsConfig    `yaml:"plugins,omitempty" json:"plugins,omitempty"`
	EnabledPlugins []EnabledPlugin `yaml:"-" json:"-"`
	Runtimes      EnabledRuntimes  `yaml:"runtimes,omitempty" json:"runtimes,omitempty"`
}

// ResolveConfigFiles joins each of a plugin's configured ConfigFiles
// against the workspace root, the way the planner does when hashing
// config state into a cache key.
func ResolveConfigFiles(root string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) {
			out[i] = f
		} else {
			out[i] = filepath.Join(root, f)
		}
	}
	return out
}
