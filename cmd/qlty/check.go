package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/engine"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
	"github.com/qlty-sh/qlty/pkg/constants"
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Run every enabled plugin against the given files and print the resulting issues as JSON",
	Long: `Loads qlty.toml, builds the invocation plan for the given files, runs it,
and writes the resulting execute.Results as JSON to stdout. With no files
given, no targets are planned.

Exit code is 0 for a completed run (linter-reported issues do not change
it) and 1 only when the run itself could not complete.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("workspace", ".", "workspace root")
	checkCmd.Flags().String("config", "", "path to qlty.toml (default: <workspace>/.qlty/qlty.toml)")
	checkCmd.Flags().String("tools-root", "", "directory tools are installed under (default: <workspace>/.qlty/tools)")
	checkCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "number of concurrent invocations")
	checkCmd.Flags().StringArray("filter", nil, "scope issues to a tool or tool/rule, repeatable")
	checkCmd.Flags().String("trigger", string(config.TriggerManual), "check trigger (manual, pre-commit, pre-push, build)")
	checkCmd.Flags().Bool("upstream-diff", false, "only run plugins that don't skip_upstream on a diff")
	checkCmd.Flags().Bool("stage", false, "run against a staged copy of the workspace instead of in place")
	checkCmd.Flags().Bool("skip-errored-plugins", false, "drop issues from any plugin whose invocation didn't succeed")
}

func runCheck(cmd *cobra.Command, args []string) error {
	workspace, _ := cmd.Flags().GetString("workspace")
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("qlty: resolving workspace %q: %w", workspace, err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(workspace, ".qlty", "qlty.toml")
	}

	toolsRoot, _ := cmd.Flags().GetString("tools-root")
	if toolsRoot == "" {
		toolsRoot = filepath.Join(workspace, ".qlty", constants.ToolsSubdir)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("qlty: loading %s: %w", configPath, err)
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	filters, _ := cmd.Flags().GetStringArray("filter")
	trigger, _ := cmd.Flags().GetString("trigger")
	upstreamDiff, _ := cmd.Flags().GetBool("upstream-diff")
	stage, _ := cmd.Flags().GetBool("stage")
	skipErrored, _ := cmd.Flags().GetBool("skip-errored-plugins")

	mode := plan.ModeAll
	if upstreamDiff {
		mode = plan.ModeUpstreamDiff
	}

	e := &engine.Engine{
		WorkspaceRoot:      workspace,
		ToolsRoot:          toolsRoot,
		Config:             *cfg,
		Entries:            args,
		Trigger:            config.CheckTrigger(trigger),
		Mode:               mode,
		Installers:         map[tool.Kind]tool.Installer{},
		Jobs:               jobs,
		Filters:            filters,
		SkipErroredPlugins: skipErrored,
		Stage:              stage,
	}

	results, err := e.Run(context.Background())
	if err != nil {
		return fmt.Errorf("qlty: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(results)
}
