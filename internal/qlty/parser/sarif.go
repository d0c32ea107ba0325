package parser

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
)

type sarifFile struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool               sarifTool           `json:"tool"`
	Results            []sarifResult       `json:"results"`
	OriginalURIBaseIDs *sarifURIBaseIDs    `json:"originalUriBaseIds,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Rules []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string                     `json:"id"`
	HelpURI              string                     `json:"helpUri,omitempty"`
	DefaultConfiguration *sarifRuleDefaultConfigRule `json:"defaultConfiguration,omitempty"`
}

type sarifRuleDefaultConfigRule struct {
	Level string `json:"level,omitempty"`
}

type sarifURIBaseIDs struct {
	RootPath sarifRootPath `json:"-"`
}

// UnmarshalJSON accepts either "ROOTPATH" or "%SRCROOT%" as the key
// holding the base URI, matching the two aliases the original accepts.
func (u *sarifURIBaseIDs) UnmarshalJSON(data []byte) error {
	var raw map[string]struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["ROOTPATH"]; ok {
		u.RootPath = sarifRootPath{URI: v.URI}
		return nil
	}
	if v, ok := raw["%SRCROOT%"]; ok {
		u.RootPath = sarifRootPath{URI: v.URI}
		return nil
	}
	return nil
}

type sarifRootPath struct {
	URI string
}

type sarifResult struct {
	RuleID        string            `json:"ruleId,omitempty"`
	Message       sarifMessage      `json:"message"`
	Level         string            `json:"level,omitempty"`
	Locations     []sarifLocation   `json:"locations,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Suppressions  []sarifSuppression `json:"suppressions,omitempty"`
}

type sarifSuppression struct {
	Status string `json:"status,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartColumn *uint32 `json:"startColumn,omitempty"`
	StartLine   *uint32 `json:"startLine,omitempty"`
	EndColumn   *uint32 `json:"endColumn,omitempty"`
	EndLine     *uint32 `json:"endLine,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

// Sarif parses SARIF 2.1.0 tool output. Level and Category, when
// non-nil, override whatever the document (or a rule's default
// configuration) says, matching how trivy_sarif reuses this same
// format with its own fixed category.
type Sarif struct {
	Level    *issue.Level
	Category *issue.Category
}

// NewSarif constructs a Sarif parser with optional static overrides.
func NewSarif(level *issue.Level, category *issue.Category) Sarif {
	return Sarif{Level: level, Category: category}
}

func (s Sarif) Parse(pluginName string, output string) ([]issue.Issue, error) {
	var doc sarifFile
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parser: sarif: %w", err)
	}

	ruleInfo := map[string]sarifRule{}
	for _, run := range doc.Runs {
		for _, rule := range run.Tool.Driver.Rules {
			ruleInfo[rule.ID] = rule
		}
	}

	var issues []issue.Issue
	for _, run := range doc.Runs {
		for _, result := range run.Results {
			if sarifSuppressed(result.Suppressions) {
				continue
			}

			if result.Kind != "" && result.Kind != "fail" && result.Kind != "review" {
				continue
			}

			loc := sarifGetLocation(result.Locations, run.OriginalURIBaseIDs)

			ruleKey := result.RuleID
			if ruleKey == "" {
				ruleKey = result.Message.Text
			}

			docURL := ""
			if rule, ok := ruleInfo[ruleKey]; ok {
				docURL = rule.HelpURI
			}

			category := issue.CategoryLint
			if s.Category != nil {
				category = *s.Category
			}

			issues = append(issues, issue.Issue{
				Tool:             pluginName,
				RuleKey:          ruleKey,
				Message:          result.Message.Text,
				Category:         category,
				Level:            s.getLevel(result, ruleInfo),
				DocumentationURL: docURL,
				Location:         loc,
			})
		}
	}

	return issues, nil
}

func (s Sarif) getLevel(result sarifResult, ruleInfo map[string]sarifRule) issue.Level {
	if s.Level != nil {
		return *s.Level
	}
	if result.Level != "" {
		return sarifLevelToLevel(result.Level)
	}
	if result.RuleID != "" {
		if rule, ok := ruleInfo[result.RuleID]; ok && rule.DefaultConfiguration != nil {
			return sarifLevelToLevel(rule.DefaultConfiguration.Level)
		}
		return issue.LevelMedium
	}
	return issue.LevelMedium
}

func sarifLevelToLevel(level string) issue.Level {
	switch level {
	case "error":
		return issue.LevelHigh
	case "warning":
		return issue.LevelMedium
	case "note":
		return issue.LevelLow
	default:
		return issue.LevelMedium
	}
}

func sarifGetLocation(locations []sarifLocation, base *sarifURIBaseIDs) *issue.Location {
	if len(locations) == 0 {
		return nil
	}
	loc := locations[0]

	var rng *issue.Range
	if region := loc.PhysicalLocation.Region; region != nil {
		startLine := uint32(1)
		if region.StartLine != nil {
			startLine = *region.StartLine
		}
		startColumn := uint32(1)
		if region.StartColumn != nil {
			startColumn = *region.StartColumn
		}
		endLine := startLine
		if region.EndLine != nil {
			endLine = *region.EndLine
		}
		endColumn := startColumn
		if region.EndColumn != nil {
			endColumn = *region.EndColumn
		}
		rng = &issue.Range{StartLine: startLine, StartColumn: startColumn, EndLine: endLine, EndColumn: endColumn}
	}

	artifact := loc.PhysicalLocation.ArtifactLocation.URI
	p := artifact
	if base != nil && base.RootPath.URI != "" {
		p = sarifMergePaths(base.RootPath.URI, artifact)
	}

	return &issue.Location{Path: p, Range: rng}
}

// sarifMergePaths resolves a result's artifact URI against the run's
// originalUriBaseIds root, matching merge_paths: if the base already
// ends with the relative path, use the base (trimmed); otherwise
// absolutize the relative path against the base directory.
func sarifMergePaths(baseURI, relativePath string) string {
	base := strings.TrimPrefix(baseURI, "file://")
	rel := relativePath

	if strings.HasSuffix(base, rel) || base == rel {
		return sarifStripTrailingSlash(base)
	}

	rel = strings.TrimPrefix(rel, "/")
	merged := filepath.Clean(path.Join(base, rel))
	return sarifStripTrailingSlash(merged)
}

func sarifStripTrailingSlash(p string) string {
	return strings.TrimSuffix(p, "/")
}

// sarifSuppressed mirrors suppressed_issue: with no suppressions at
// all the result is not suppressed, but once any are present every
// one of them must be missing a status or explicitly "accepted".
func sarifSuppressed(suppressions []sarifSuppression) bool {
	if suppressions == nil {
		return false
	}
	for _, s := range suppressions {
		if s.Status != "" && s.Status != "accepted" {
			return false
		}
	}
	return true
}
