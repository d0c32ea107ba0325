// Package constants holds process-wide limits and well-known paths
// shared across the qlty engine's packages.
package constants

// MaxIssues is the total number of issues a single run will collect
// across all invocations before remaining plans are skipped.
const MaxIssues = 10_000

// MaxIssuesPerFile is the per-file cap applied to each invocation's
// parsed results before its transformers run; files producing more
// than this many issues have their issues discarded wholesale.
const MaxIssuesPerFile = 100

// MaxOutputSizeBytes is the largest driver output that is parsed;
// larger output is rejected with an error, not truncated.
const MaxOutputSizeBytes = 1024 * 1024 * 100

// MaxToolInstallAttempts bounds the retry loop around a tool's
// install step.
const MaxToolInstallAttempts = 3

// ToolsSubdir is the cache-root subdirectory tool installs live
// under.
const ToolsSubdir = "tools"

// ResultsSubdir is the cache-root subdirectory the issue and plan
// caches live under.
const ResultsSubdir = "results"

// CLIExtensionPrefix identifies this engine in user-facing log lines
// and error messages.
const CLIExtensionPrefix = "qlty"
