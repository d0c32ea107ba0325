package execute

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/pkg/constants"
)

// MaxIssues is the run-wide ceiling on how many issues Results will
// carry; invocations stop being scheduled once it's exceeded, and any
// surplus already collected is truncated.
const MaxIssues = constants.MaxIssues

// MaxIssuesPerFile caps how many issues a single FileResult may keep;
// a file over the limit has all of its issues dropped and a Message
// recorded against the invocation.
const MaxIssuesPerFile = constants.MaxIssuesPerFile

// Transformer mutates (or drops) an issue after parsing, in the order
// an Executor was configured with. Returning ok=false drops the
// issue.
type Transformer interface {
	Transform(iss issue.Issue) (out issue.Issue, ok bool)
}

// CacheLookup is satisfied by internal/qlty/cache.IssueCache; it is
// declared here, not imported, so execute has no dependency on the
// cache package's on-disk format.
type CacheLookup interface {
	Get(p *plan.InvocationPlan) ([]issue.Issue, bool)
	Put(p *plan.InvocationPlan, issues []issue.Issue)
}

// Executor runs every invocation in a Plan: linters first, then
// formatters, each partition shuffled to spread load across shared
// package-manager caches, bounded by a jobs-sized worker pool and a
// run-wide issue ceiling.
type Executor struct {
	Invocations    []plan.InvocationPlan
	Jobs           int
	Transformers   []Transformer
	Cache          CacheLookup
	SkipErroredPlugins bool
}

// NewExecutor builds an Executor for a resolved invocation list.
func NewExecutor(invocations []plan.InvocationPlan, jobs int) *Executor {
	if jobs <= 0 {
		jobs = 1
	}
	return &Executor{Invocations: invocations, Jobs: jobs}
}

// Run executes every invocation and assembles the final Results.
func (e *Executor) Run(ctx context.Context) (*Results, error) {
	linters, formatters := e.partition()
	shuffle(linters)
	shuffle(formatters)

	ceiling := newTotalIssueCeiling(MaxIssues)

	invocationResults := make([]*InvocationResult, 0, len(e.Invocations))
	invocationResults = append(invocationResults, e.runPool(ctx, linters, ceiling)...)
	invocationResults = append(invocationResults, e.runPool(ctx, formatters, ceiling)...)

	return e.buildResults(invocationResults), nil
}

func (e *Executor) partition() (linters, formatters []*plan.InvocationPlan) {
	for i := range e.Invocations {
		p := &e.Invocations[i]
		if p.Driver.DriverType == config.DriverTypeFormatter {
			formatters = append(formatters, p)
		} else {
			linters = append(linters, p)
		}
	}
	return linters, formatters
}

func shuffle(plans []*plan.InvocationPlan) {
	rand.Shuffle(len(plans), func(i, j int) { plans[i], plans[j] = plans[j], plans[i] })
}

// runPool runs one partition's invocations through a jobs-sized
// worker pool, skipping any invocation once the shared issue ceiling
// has already been exceeded by a sibling invocation.
func (e *Executor) runPool(ctx context.Context, plans []*plan.InvocationPlan, ceiling totalIssueCeiling) []*InvocationResult {
	p := pool.NewWithResults[*InvocationResult]().WithMaxGoroutines(e.Jobs)

	for _, invocationPlan := range plans {
		invocationPlan := invocationPlan
		p.Go(func() *InvocationResult {
			if ceiling.exceeded() {
				return nil
			}
			result := e.runOne(ctx, invocationPlan)
			ceiling.add(result.IssuesCount())
			return result
		})
	}

	results := p.Wait()

	out := make([]*InvocationResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// runOne drives a single invocation: cache lookup, spawn-and-parse,
// per-file truncation, transformer application, and cache write-back.
func (e *Executor) runOne(ctx context.Context, p *plan.InvocationPlan) *InvocationResult {
	if e.Cache != nil && p.Driver.CacheResults {
		if cached, ok := e.Cache.Get(p); ok {
			return &InvocationResult{
				ID:          fmt.Sprintf("%s/%s", p.PluginName, p.DriverName),
				PluginName:  p.PluginName,
				DriverName:  p.DriverName,
				Status:      InvocationStatusSuccess,
				ExitResult:  ExitResultSuccess,
				FileResults: []FileResult{{Path: "", Issues: cached}},
				CacheHit:    true,
			}
		}
	}

	driver := NewDriver(p.Driver)
	result, err := driver.Run(ctx, p)
	if err != nil {
		return &InvocationResult{
			ID:         fmt.Sprintf("%s/%s", p.PluginName, p.DriverName),
			PluginName: p.PluginName,
			DriverName: p.DriverName,
			Status:     InvocationStatusToolError,
			Messages: []Message{{
				Module:  "qlty.execute",
				Type:    "invocation.spawn_error",
				Level:   MessageLevelError,
				Message: err.Error(),
			}},
		}
	}

	e.truncatePerFile(result, p)
	e.applyTransformers(result)

	if e.Cache != nil && p.Driver.CacheResults && result.Status == InvocationStatusSuccess {
		e.Cache.Put(p, flattenIssues(result.FileResults))
	}

	return result
}

func (e *Executor) truncatePerFile(result *InvocationResult, p *plan.InvocationPlan) {
	for i := range result.FileResults {
		fr := &result.FileResults[i]
		if len(fr.Issues) > MaxIssuesPerFile {
			result.pushMessage(MessageLevelError, "invocation.limit.issue_count",
				fmt.Sprintf("%s on %q produced %d results, over the limit of %d; dropping all of them.", p.PluginName, fr.Path, len(fr.Issues), MaxIssuesPerFile))
			fr.Issues = fr.Issues[:0]
		}
	}
}

func (e *Executor) applyTransformers(result *InvocationResult) {
	if len(e.Transformers) == 0 {
		return
	}
	for i := range result.FileResults {
		fr := &result.FileResults[i]
		kept := fr.Issues[:0]
		for _, iss := range fr.Issues {
			dropped := false
			for _, t := range e.Transformers {
				out, ok := t.Transform(iss)
				if !ok {
					dropped = true
					break
				}
				iss = out
			}
			if !dropped {
				kept = append(kept, iss)
			}
		}
		fr.Issues = kept
	}
}

func flattenIssues(fileResults []FileResult) []issue.Issue {
	var out []issue.Issue
	for _, fr := range fileResults {
		out = append(out, fr.Issues...)
	}
	return out
}

// buildResults assembles the final Results: total issue list (capped
// at MaxIssues, with errored plugins' issues dropped entirely when
// SkipErroredPlugins is set), formatted paths, and every structured
// message raised along the way.
func (e *Executor) buildResults(invocations []*InvocationResult) *Results {
	results := &Results{}

	erroredPlugins := make(map[string]bool)
	if e.SkipErroredPlugins {
		for _, inv := range invocations {
			if inv.Status != InvocationStatusSuccess {
				erroredPlugins[inv.PluginName] = true
			}
		}
	}

	var overflowed bool
issueLoop:
	for _, inv := range invocations {
		for _, fr := range inv.FileResults {
			for _, iss := range fr.Issues {
				if erroredPlugins[inv.PluginName] {
					continue
				}
				if len(results.Issues) >= MaxIssues {
					overflowed = true
					break issueLoop
				}
				results.Issues = append(results.Issues, iss)
			}
		}
	}

	if overflowed {
		results.Messages = append(results.Messages, Message{
			Module:  "qlty.execute",
			Type:    "executor.limit.total_issue_count",
			Level:   MessageLevelError,
			Message: fmt.Sprintf("Maximum issue count of %d reached, skipping any further issues.", MaxIssues),
		})
	}

	for _, inv := range invocations {
		results.Invocations = append(results.Invocations, *inv)
		results.Messages = append(results.Messages, inv.Messages...)
		results.FormattedPaths = append(results.FormattedPaths, inv.Formatted...)
	}

	return results
}
