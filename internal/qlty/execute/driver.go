package execute

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/parser"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/internal/qlty/procs"
	"github.com/qlty-sh/qlty/pkg/constants"
)

// DefaultSuccessExitCode is treated as success when a driver declares
// no explicit success_codes.
const DefaultSuccessExitCode = 0

// MaxOutputSizeBytes bounds what Parse will attempt to hand a parser;
// oversized output is almost always a runaway process, not real
// findings.
const MaxOutputSizeBytes = constants.MaxOutputSizeBytes

// Driver wraps a resolved config.DriverDef with the behavior needed
// to run it: script rendering, process supervision, exit-code
// classification, and output parsing.
type Driver struct {
	Def config.DriverDef
}

// NewDriver adapts a DriverDef for execution.
func NewDriver(def config.DriverDef) Driver {
	return Driver{Def: def}
}

// ComputeInvocationScript renders a driver's script for one
// invocation: tool/env placeholders via Tool.InterpolateVariables,
// then ${target} against the invocation's target list.
func ComputeInvocationScript(p *plan.InvocationPlan) (string, error) {
	if p.Driver.Script == "" {
		return "", fmt.Errorf("execute: %s/%s has no script", p.PluginName, p.DriverName)
	}

	script := p.Tool.InterpolateVariables(p.Driver.Script)
	script = strings.ReplaceAll(script, "${target}", PlanTargetList(p))
	return script, nil
}

// PlanTargetList renders a plan's targets as a shell-ready,
// space-separated list of absolute paths rooted at TargetRoot,
// quoting any target whose path contains whitespace.
func PlanTargetList(p *plan.InvocationPlan) string {
	parts := make([]string, 0, len(p.Targets))
	for _, t := range p.Targets {
		abs := t
		if !filepath.IsAbs(t) {
			abs = filepath.Join(p.TargetRoot, t)
		}
		if strings.ContainsAny(abs, " \t") {
			abs = strconv.Quote(abs)
		}
		parts = append(parts, abs)
	}
	return strings.Join(parts, " ")
}

// Run renders and executes one invocation, enforcing its timeout and
// returning the parsed result. Run does not see the run-wide MaxIssues
// ceiling; the Executor enforces it across invocations.
func (d Driver) Run(ctx context.Context, p *plan.InvocationPlan) (*InvocationResult, error) {
	script, err := ComputeInvocationScript(p)
	if err != nil {
		return nil, err
	}

	result := &InvocationResult{
		ID:         fmt.Sprintf("%s/%s", p.PluginName, p.DriverName),
		PluginName: p.PluginName,
		DriverName: p.DriverName,
		Script:     script,
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
	cmd.Dir = p.InvocationDir

	env := os.Environ()
	for k, v := range p.Tool.Env() {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	timeout := time.Duration(p.Driver.EffectiveTimeoutSeconds()) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := runInvocation(runCtx, cmd)
	result.DurationSecs = time.Since(start).Seconds()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if timedOut {
		result.Status = InvocationStatusToolError
		result.pushMessage(MessageLevelError, "invocation.timeout",
			fmt.Sprintf("%s/%s timed out after %ds", p.PluginName, p.DriverName, p.Driver.EffectiveTimeoutSeconds()))
		return result, nil
	}

	code := cmd.ProcessState.ExitCode()
	result.ExitCode = &code

	exitResult, err := d.ClassifyExit(code)
	if err != nil {
		return nil, err
	}
	result.ExitResult = exitResult

	switch exitResult {
	case ExitResultSuccess, ExitResultNoIssues:
		result.Status = InvocationStatusSuccess
	default:
		result.Status = InvocationStatusLintError
	}

	output := d.selectOutput(result)
	fileResults, err := d.Parse(output, p)
	if err != nil {
		result.Status = InvocationStatusParseError
		result.pushMessage(MessageLevelError, "invocation.parse_error", err.Error())
		return result, nil
	}
	result.FileResults = fileResults

	if p.Driver.DriverType == config.DriverTypeFormatter && exitResult == ExitResultSuccess {
		result.Formatted = append(result.Formatted, p.Targets...)
	}

	return result, nil
}

// runInvocation runs cmd to completion, killing its whole process
// tree (leaf-first) if ctx's deadline arrives first. It reports
// whether the timeout fired.
func runInvocation(ctx context.Context, cmd *exec.Cmd) bool {
	if err := cmd.Start(); err != nil {
		return false
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return false
	case <-ctx.Done():
		procs.Terminate(cmd.Process.Pid)
		<-done
		return true
	}
}

// selectOutput picks which captured stream the parser reads.
// OutputTmpfile falls through to stdout: no tmpfile path is rendered
// into the script, so the parser reads what the tool printed.
func (d Driver) selectOutput(result *InvocationResult) string {
	switch d.Def.Output {
	case config.OutputStderr:
		return result.Stderr
	case config.OutputRewrite, config.OutputPassFail:
		return ""
	default:
		return result.Stdout
	}
}

// ClassifyExit maps a raw exit code onto an ExitResult per the
// driver's success_codes/error_codes/no_issue_codes lists, falling
// back to "0 is success" when success_codes is empty.
func (d Driver) ClassifyExit(code int) (ExitResult, error) {
	if containsCode(d.Def.SuccessCodes, code) {
		return ExitResultSuccess, nil
	}
	if len(d.Def.SuccessCodes) == 0 && code == DefaultSuccessExitCode {
		return ExitResultSuccess, nil
	}
	if containsCode(d.Def.ErrorCodes, code) {
		return ExitResultKnownError, nil
	}
	if containsCode(d.Def.NoIssueCodes, code) {
		return ExitResultNoIssues, nil
	}
	return ExitResultUnknownError, nil
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Parse dispatches a driver's raw output to the right parser,
// normalizes every issue's path against the invocation's target
// root, and regroups issues into one FileResult per target plus a
// pathless bucket and (for ParentWith drivers) a parent-directory
// bucket.
func (d Driver) Parse(output string, p *plan.InvocationPlan) ([]FileResult, error) {
	if d.Def.Output == config.OutputRewrite || d.Def.Output == config.OutputPassFail {
		return d.emptyFileResults(p), nil
	}

	if len(output) > MaxOutputSizeBytes {
		return nil, fmt.Errorf("execute: output size exceeds maximum allowed size of %d bytes", MaxOutputSizeBytes)
	}

	parserImpl, err := parser.Dispatch(d.Def)
	if err != nil {
		return nil, err
	}

	var issues []issue.Issue
	if strings.TrimSpace(output) != "" {
		issues, err = parserImpl.Parse(p.PluginName, output)
		if err != nil {
			return nil, err
		}
	}

	pathPrefix := d.pathPrefix(p)
	issuesByPath := make(map[string][]issue.Issue)
	for _, iss := range issues {
		fixed := d.fixIssuePath(iss, p, pathPrefix)
		issuesByPath[fixed.Path()] = append(issuesByPath[fixed.Path()], fixed)
	}

	var results []FileResult

	if parentResult := d.parentWithFileIssues(issuesByPath, pathPrefix); parentResult != nil {
		results = append(results, *parentResult)
	}

	if pathless, ok := issuesByPath[""]; ok && len(pathless) > 0 {
		results = append(results, FileResult{Path: "", Issues: pathless})
	}

	for _, target := range p.Targets {
		results = append(results, FileResult{Path: target, Issues: issuesByPath[target]})
	}

	return results, nil
}

func (d Driver) emptyFileResults(p *plan.InvocationPlan) []FileResult {
	results := make([]FileResult, 0, len(p.Targets))
	for _, target := range p.Targets {
		results = append(results, FileResult{Path: target})
	}
	return results
}

// pathPrefix is the invocation directory's offset from the target
// root, used to re-root issue paths a tool reported relative to its
// own (non-root) working directory.
func (d Driver) pathPrefix(p *plan.InvocationPlan) string {
	if p.InvocationDirKind == config.InvocationDirRoot {
		return ""
	}
	root := strings.TrimSuffix(p.TargetRoot, "/")
	rel, err := filepath.Rel(root, p.InvocationDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	if rel == "." {
		return ""
	}
	return rel
}

func (d Driver) parentWithFileIssues(issuesByPath map[string][]issue.Issue, pathPrefix string) *FileResult {
	if d.Def.Target.Type != config.TargetTypeParentWith || pathPrefix == "" || d.Def.Target.Path == "" {
		return nil
	}
	parentPath := filepath.Join(pathPrefix, d.Def.Target.Path)
	return &FileResult{Path: parentPath, Issues: issuesByPath[parentPath]}
}

// fixIssuePath implements the path-normalization chain a parser's raw
// location goes through before it can be matched against a workspace
// entry: prefixing with the invocation's directory offset, then
// stripping the "file://" scheme, a leading "./", the target root
// (with and without macOS's "/private" mount alias), and any leading
// slash left over, before finally applying the plugin's configured
// path prefix.
func (d Driver) fixIssuePath(iss issue.Issue, p *plan.InvocationPlan, pathPrefix string) issue.Issue {
	if iss.Location == nil || iss.Location.Path == "" {
		return iss
	}

	out := iss.Clone()
	path := out.Location.Path
	targetRoot := strings.TrimSuffix(p.TargetRoot, "/")

	if !filepath.IsAbs(path) && pathPrefix != "" {
		path = pathPrefix + "/" + path
	}

	path = strings.TrimPrefix(path, "file://")
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, targetRoot+"/")
	path = strings.TrimPrefix(path, "/private"+targetRoot+"/")
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimPrefix(path, strings.TrimPrefix(targetRoot, "/private/")+"/")

	if p.Plugin.Prefix != "" {
		path = p.Plugin.Prefix + "/" + path
	}

	out.Location.Path = path

	for si := range out.Suggestions {
		for ri := range out.Suggestions[si].Replacements {
			loc := out.Suggestions[si].Replacements[ri].Location
			if loc != nil && loc.Path != "" {
				loc.Path = relativeToRoot(loc.Path, targetRoot)
			}
		}
	}

	return out
}

func relativeToRoot(path, root string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// totalIssueCeiling is shared by the Executor across invocations; it
// lives here so Driver.Run's caller (Executor) can pass the same
// counter into every goroutine without exporting atomic machinery
// from this file.
type totalIssueCeiling struct {
	count *int64
	max   int64
}

func newTotalIssueCeiling(max int64) totalIssueCeiling {
	var n int64
	return totalIssueCeiling{count: &n, max: max}
}

func (c totalIssueCeiling) add(n int) {
	atomic.AddInt64(c.count, int64(n))
}

func (c totalIssueCeiling) exceeded() bool {
	return atomic.LoadInt64(c.count) > c.max
}
