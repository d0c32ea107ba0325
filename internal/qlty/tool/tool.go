// Package tool models an installable plugin tool: its identity,
// on-disk layout, invocation environment, and fingerprint. A Tool is
// a value, not a running process; internal/qlty/execute drives it.
package tool

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/pkg/constants"
)

// Kind distinguishes how a tool's package is obtained.
type Kind int

const (
	KindRuntime Kind = iota
	KindDownload
	KindRuntimePackage
	KindGitHubRelease
)

func (k Kind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindDownload:
		return "download"
	case KindRuntimePackage:
		return "runtime_package"
	case KindGitHubRelease:
		return "github_release"
	default:
		return "unknown"
	}
}

// envAllowlist is the subset of the ambient process environment a
// tool invocation inherits, platform-specific. Everything else is
// built explicitly so a driver's environment is reproducible.
var envAllowlist = unixEnvAllowlist

var unixEnvAllowlist = []string{"HOME"}

var windowsEnvAllowlist = []string{
	"SYSTEMROOT", "SYSTEMDRIVE", "WINDIR", "TEMP", "TMP", "USERPROFILE",
	"COMSPEC", "LOCALAPPDATA", "APPDATA", "CommonProgramFiles",
	"CommonProgramFiles(x86)", "CommonProgramW6432", "ProgramData",
	"ProgramFiles", "ProgramFiles(x86)", "HOMEDRIVE", "HOMEPATH",
}

// baseShellPath seeds a tool's PATH with the platform's system
// binary directories, ahead of any tool-specific bin directories.
var unixBaseShellPath = []string{"/usr/local/bin", "/usr/bin", "/bin", "/usr/sbin", "/sbin"}

var windowsBaseShellPath = []string{
	`%SYSTEMROOT%\System32`, `%SYSTEMROOT%`, `%SYSTEMROOT%\System32\Wbem`,
}

func init() {
	if runtime.GOOS == "windows" {
		envAllowlist = windowsEnvAllowlist
	}
}

func baseShellPath() []string {
	if runtime.GOOS == "windows" {
		expanded := make([]string, len(windowsBaseShellPath))
		for i, p := range windowsBaseShellPath {
			expanded[i] = os.Expand(strings.ReplaceAll(p, "%SYSTEMROOT%", "${SYSTEMROOT}"), os.Getenv)
		}
		return expanded
	}
	return unixBaseShellPath
}

// MaxInstallAttempts bounds the retry loop around a tool's install
// step.
const MaxInstallAttempts = constants.MaxToolInstallAttempts

// Tool is one installable plugin component: a language runtime
// (Node, Python, Ruby, ...), a package run through a runtime, a
// direct URL download, or a GitHub release asset.
type Tool struct {
	NameValue    string
	VersionValue string
	KindValue    Kind
	Runtime      *Tool // non-nil when this tool runs through a language runtime
	Plugin       *config.PluginDef
	ToolsRoot    string // cache-root/tools
	WorkspaceRoot string

	// VersionCommand/VersionRegex drive post-install validation
	// (installed_version extraction and comparison against Version).
	VersionCommand string
	VersionRegexStr string
}

// DefaultVersionRegex matches a bare (optionally v-prefixed) semantic
// version out of arbitrary `--version` output.
const DefaultVersionRegex = `v?(\d+\.\d+\.\d+)`

func (t *Tool) versionRegex() string {
	if t.VersionRegexStr != "" {
		return t.VersionRegexStr
	}
	return DefaultVersionRegex
}

// Name is the plugin/runtime name, e.g. "clippy" or "node".
func (t *Tool) Name() string { return t.NameValue }

// Version is the declared version, empty for "latest"/unpinned.
func (t *Tool) Version() string { return t.VersionValue }

// ToolKind reports which install strategy this tool uses.
func (t *Tool) ToolKind() Kind { return t.KindValue }

// ParentDirectory is <tools-root>/<name>, the directory every version
// of this tool installs a sibling directory under.
func (t *Tool) ParentDirectory() string {
	return filepath.Join(t.ToolsRoot, t.NameValue)
}

// DirectoryName is "<version>-<fingerprint>", or "generic-<fingerprint>"
// when no version is declared (e.g. a tool pinned only by config
// content).
func (t *Tool) DirectoryName() string {
	v := t.VersionValue
	if v == "" {
		v = "generic"
	}
	return fmt.Sprintf("%s-%s", v, t.Fingerprint())
}

// Directory is the tool's install directory.
func (t *Tool) Directory() string {
	return filepath.Join(t.ParentDirectory(), t.DirectoryName())
}

// Fingerprint is the first 12 hex characters of a SHA-256 digest over
// everything that would make two installs of the "same" tool actually
// different on disk: the runtime's own fingerprint (recursively), the
// plugin package name/version, sorted extra packages, the package
// file's contents, and package filters.
func (t *Tool) Fingerprint() string {
	h := sha256.New()
	t.updateHash(h)
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

func (t *Tool) updateHash(h interface{ Write([]byte) (int, error) }) {
	if t.Runtime != nil {
		t.Runtime.updateHash(h)
	}
	if t.Plugin == nil {
		return
	}
	p := t.Plugin
	fmt.Fprint(h, p.Package)
	fmt.Fprint(h, p.Version)

	extra := append([]config.ExtraPackage(nil), p.ExtraPackages...)
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	for _, pkg := range extra {
		fmt.Fprint(h, pkg.Name)
		fmt.Fprint(h, pkg.Version)
	}

	if p.PackageFile != "" {
		if data, err := os.ReadFile(p.PackageFile); err == nil {
			h.Write(data)
		}
	}

	for _, filter := range p.PackageFilters {
		fmt.Fprint(h, filter)
	}
}

// InstallLogPath is where stdout/stderr of this tool's install
// attempts accumulate, named after the tool's directory so a failed
// install's log survives the failed directory being cleaned up.
func (t *Tool) InstallLogPath() string {
	return filepath.Join(t.ParentDirectory(), t.DirectoryName()+"-install.log")
}

func (t *Tool) lockfilePath() string {
	return t.Directory() + ".lock"
}

func (t *Tool) donefilePath() string {
	return t.Directory() + ".done"
}

// ExtraEnvPaths are the tool-specific directories prepended to PATH:
// its own bin/ directory and its install directory itself (so a
// single-binary download is directly runnable).
func (t *Tool) ExtraEnvPaths() []string {
	return []string{filepath.Join(t.Directory(), "bin"), t.Directory()}
}

// Env composes the full environment a driver invocation for this
// tool runs with: the platform env allow-list, PATH assembled from
// the runtime's paths plus this tool's own, and any plugin
// environment overrides.
func (t *Tool) Env() map[string]string {
	env := make(map[string]string)

	for _, key := range envAllowlist {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}

	env["PATH"] = strings.Join(t.envPaths(), string(os.PathListSeparator))

	for k, v := range t.pluginEnvVars() {
		env[k] = v
	}

	return env
}

func (t *Tool) envPaths() []string {
	var paths []string
	if t.Runtime != nil {
		paths = append(paths, t.Runtime.envPaths()...)
	} else {
		paths = append(paths, baseShellPath()...)
	}
	paths = append(paths, t.ExtraEnvPaths()...)
	return paths
}

func (t *Tool) pluginEnvVars() map[string]string {
	env := make(map[string]string)
	if t.Plugin == nil {
		return env
	}
	for _, pe := range t.Plugin.Environment {
		if pe.Name == "PATH" {
			continue
		}
		value := strings.TrimSpace(t.InterpolateVariables(pe.Value))
		if value != "" {
			env[pe.Name] = value
		}
	}
	return env
}

var envVarRefPattern = regexp.MustCompile(`\$\{env\.(.+?)\}`)

// InterpolateVariables substitutes the driver script placeholders
// documented in spec.md §6: ${env.VAR}, ${linter}, ${runtime},
// ${cachedir}. ${target} is substituted by the planner/executor per
// invocation, not here.
func (t *Tool) InterpolateVariables(value string) string {
	result := envVarRefPattern.ReplaceAllStringFunc(value, func(m string) string {
		key := envVarRefPattern.FindStringSubmatch(m)[1]
		return os.Getenv(key)
	})

	result = strings.ReplaceAll(result, "${linter}", t.Directory())

	cacheDir := filepath.Join(t.WorkspaceRoot, ".qlty", constants.ResultsSubdir)
	result = strings.ReplaceAll(result, "${cachedir}", cacheDir)

	if t.Runtime != nil {
		result = strings.ReplaceAll(result, "${runtime}", t.Runtime.Directory())
	}

	return result
}
