// Package parser turns a driver's raw stdout/stderr into issue.Issue
// records. Each OutputFormat gets its own Parser implementation; most
// are dedicated ports of a specific tool's wire format, and the rest
// fall back to the two generic parsers (regex captures, or a uniform
// line/column JSON shape) that cover tools never seen in depth.
package parser

import (
	"fmt"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

// Parser converts one driver invocation's raw output into issues. The
// plugin name is threaded through so a generic parser shared across
// plugins can still stamp the right tool identity onto each issue.
type Parser interface {
	Parse(pluginName string, output string) ([]issue.Issue, error)
}

// For formats the pack only has generic JSON shapes for (no dedicated
// Rust source was retrieved), route everything through one parser
// that additionally needs the driver's level/category/regex
// overrides. Dispatch builds those from the DriverDef.

// Dispatch returns the Parser for a driver, configured from its
// DriverDef (static level/category overrides, and the output_regex
// pattern when the format is "regex").
func Dispatch(driver config.DriverDef) (Parser, error) {
	level := driver.OutputLevel.ToIssueLevel()
	category := driver.OutputCategory.ToIssueCategory()
	hasLevel := driver.OutputLevel != ""
	hasCategory := driver.OutputCategory != ""

	switch driver.OutputFormat {
	case config.FormatSarif:
		return NewSarif(overrideLevel(hasLevel, level), overrideCategory(hasCategory, category)), nil
	case config.FormatTrivySarif:
		cat := issue.CategoryVulnerability
		if hasCategory {
			cat = category
		}
		return NewSarif(overrideLevel(hasLevel, level), &cat), nil
	case config.FormatClippy:
		return Clippy{}, nil
	case config.FormatEslint:
		return Eslint{}, nil
	case config.FormatBiome:
		return Biome{}, nil
	case config.FormatRegex:
		if driver.OutputRegex == "" {
			return nil, fmt.Errorf("parser: driver uses regex output format but has no output_regex")
		}
		return NewRegex(driver.OutputRegex, levelOrDefault(hasLevel, level, issue.LevelMedium), categoryOrDefault(hasCategory, category, issue.CategoryLint))
	case config.FormatRipgrep:
		return Ripgrep{}, nil
	case config.FormatGolangciLint:
		return GolangciLint{}, nil
	case config.FormatTsc:
		return NewRegex(tscRegex, levelOrDefault(hasLevel, level, issue.LevelHigh), categoryOrDefault(hasCategory, category, issue.CategoryTypeCheck))
	default:
		return NewGenericJSON(pluginDefaultLevel(driver.OutputFormat, hasLevel, level), pluginDefaultCategory(driver.OutputFormat, hasCategory, category)), nil
	}
}

func overrideLevel(has bool, l issue.Level) *issue.Level {
	if !has {
		return nil
	}
	return &l
}

func overrideCategory(has bool, c issue.Category) *issue.Category {
	if !has {
		return nil
	}
	return &c
}

func levelOrDefault(has bool, l issue.Level, def issue.Level) issue.Level {
	if has {
		return l
	}
	return def
}

func categoryOrDefault(has bool, c issue.Category, def issue.Category) issue.Category {
	if has {
		return c
	}
	return def
}

// pluginDefaultLevel/pluginDefaultCategory give the generic JSON
// parser a reasonable default per format when the plugin config
// itself leaves output_level/output_category unset, matching the
// per-plugin categories the upstream plugin defs assign even though
// their parser source wasn't part of the retrieved pack.
func pluginDefaultLevel(format config.OutputFormat, has bool, l issue.Level) issue.Level {
	if has {
		return l
	}
	switch format {
	case config.FormatTrufflehog, config.FormatBandit:
		return issue.LevelHigh
	default:
		return issue.LevelMedium
	}
}

func pluginDefaultCategory(format config.OutputFormat, has bool, c issue.Category) issue.Category {
	if has {
		return c
	}
	switch format {
	case config.FormatTrufflehog:
		return issue.CategorySecret
	case config.FormatBandit, config.FormatPhpstan:
		return issue.CategoryVulnerability
	case config.FormatMarkdownlint, config.FormatStylelint, config.FormatCoffeelint, config.FormatTaplo:
		return issue.CategoryStyle
	case config.FormatMypy, config.FormatTsc:
		return issue.CategoryTypeCheck
	case config.FormatRadarlint, config.FormatSqlfluff:
		return issue.CategoryLint
	default:
		return issue.CategoryLint
	}
}

const tscRegex = `(?P<path>[^(]+)\((?P<line>\d+),(?P<column>\d+)\): (?P<level>error|warning) (?P<code>TS\d+): (?P<message>.+)`
