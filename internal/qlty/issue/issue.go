// Package issue defines the universal finding record the rest of the
// engine produces, transforms, caches, and emits. The shape mirrors the
// qlty.analysis.v1 protobuf schema: JSON field names are camelCase and
// enum values serialize as their fully-qualified protobuf names
// (LEVEL_HIGH, CATEGORY_LINT, SUGGESTION_SOURCE_TOOL, ...).
package issue

// Level is the severity of an issue.
type Level int

const (
	LevelUnspecified Level = iota
	LevelNote
	LevelFmt
	LevelLow
	LevelMedium
	LevelHigh
)

var levelNames = map[Level]string{
	LevelUnspecified: "LEVEL_UNSPECIFIED",
	LevelNote:        "LEVEL_NOTE",
	LevelFmt:         "LEVEL_FMT",
	LevelLow:         "LEVEL_LOW",
	LevelMedium:      "LEVEL_MEDIUM",
	LevelHigh:        "LEVEL_HIGH",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "LEVEL_UNSPECIFIED"
}

func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// Category classifies the kind of finding.
type Category int

const (
	CategoryUnspecified Category = iota
	CategoryBug
	CategoryVulnerability
	CategoryStyle
	CategoryLint
	CategorySecret
	CategorySecurityHotspot
	CategoryPerformance
	CategoryAccessibility
	CategoryTypeCheck
	CategoryDuplication
	CategoryDeadCode
	CategoryDependencyAlert
)

var categoryNames = map[Category]string{
	CategoryUnspecified:     "CATEGORY_UNSPECIFIED",
	CategoryBug:             "CATEGORY_BUG",
	CategoryVulnerability:   "CATEGORY_VULNERABILITY",
	CategoryStyle:           "CATEGORY_STYLE",
	CategoryLint:            "CATEGORY_LINT",
	CategorySecret:          "CATEGORY_SECRET",
	CategorySecurityHotspot: "CATEGORY_SECURITY_HOTSPOT",
	CategoryPerformance:     "CATEGORY_PERFORMANCE",
	CategoryAccessibility:   "CATEGORY_ACCESSIBILITY",
	CategoryTypeCheck:       "CATEGORY_TYPE_CHECK",
	CategoryDuplication:     "CATEGORY_DUPLICATION",
	CategoryDeadCode:        "CATEGORY_DEAD_CODE",
	CategoryDependencyAlert: "CATEGORY_DEPENDENCY_ALERT",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "CATEGORY_UNSPECIFIED"
}

func (c Category) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Mode governs how the CLI should treat the issue (block the check, only
// comment, monitor silently, or a plugin that disabled it).
type Mode int

const (
	ModeUnspecified Mode = iota
	ModeBlock
	ModeComment
	ModeMonitor
	ModeDisabled
)

var modeNames = map[Mode]string{
	ModeUnspecified: "MODE_UNSPECIFIED",
	ModeBlock:       "MODE_BLOCK",
	ModeComment:     "MODE_COMMENT",
	ModeMonitor:     "MODE_MONITOR",
	ModeDisabled:    "MODE_DISABLED",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "MODE_UNSPECIFIED"
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// SuggestionSource identifies who produced a suggestion.
type SuggestionSource int

const (
	SuggestionSourceUnspecified SuggestionSource = iota
	SuggestionSourceTool
	SuggestionSourceLLM
)

var suggestionSourceNames = map[SuggestionSource]string{
	SuggestionSourceUnspecified: "SUGGESTION_SOURCE_UNSPECIFIED",
	SuggestionSourceTool:        "SUGGESTION_SOURCE_TOOL",
	SuggestionSourceLLM:         "SUGGESTION_SOURCE_LLM",
}

func (s SuggestionSource) String() string {
	if name, ok := suggestionSourceNames[s]; ok {
		return name
	}
	return "SUGGESTION_SOURCE_UNSPECIFIED"
}

func (s SuggestionSource) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Range is a half-open-ended span of lines/columns, optionally anchored
// to byte offsets when the producing parser has them available.
type Range struct {
	StartLine   uint32  `json:"startLine"`
	StartColumn uint32  `json:"startColumn"`
	EndLine     uint32  `json:"endLine"`
	EndColumn   uint32  `json:"endColumn"`
	StartByte   *uint32 `json:"startByte,omitempty"`
	EndByte     *uint32 `json:"endByte,omitempty"`
}

// Valid reports whether the range satisfies the start<=end invariant
// (§8: start_line <= end_line; when equal, start_column <= end_column).
func (r *Range) Valid() bool {
	if r == nil {
		return true
	}
	if r.StartLine > r.EndLine {
		return false
	}
	if r.StartLine == r.EndLine && r.StartColumn > r.EndColumn {
		return false
	}
	return true
}

// Location anchors an issue (or a replacement) to a file and range.
type Location struct {
	Path  string `json:"path"`
	Range *Range `json:"range,omitempty"`
}

// Replacement is one edit within a suggestion's patch.
type Replacement struct {
	Data     string    `json:"data"`
	Location *Location `json:"location,omitempty"`
}

// Suggestion is an ordered remediation offered for an issue.
type Suggestion struct {
	Source       SuggestionSource `json:"source"`
	Patch        string           `json:"patch,omitempty"`
	Replacements []Replacement    `json:"replacements,omitempty"`
}

// Issue is the universal finding record produced by parsers, mutated by
// transformers in declared order, and frozen once written to cache or
// emitted.
type Issue struct {
	// Identity
	Tool                string            `json:"tool"`
	Driver              string            `json:"driver,omitempty"`
	RuleKey             string            `json:"ruleKey"`
	Fingerprint         string            `json:"fingerprint,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`

	// Content
	Message             string `json:"message"`
	Snippet             string `json:"snippet,omitempty"`
	SnippetWithContext  string `json:"snippetWithContext,omitempty"`
	DocumentationURL    string `json:"documentationUrl,omitempty"`

	// Classification
	Level    Level    `json:"level"`
	Category Category `json:"category"`

	// Location
	Location       *Location  `json:"location,omitempty"`
	OtherLocations []Location `json:"otherLocations,omitempty"`

	// Remediation
	Suggestions []Suggestion `json:"suggestions,omitempty"`

	// Metadata
	Author        string   `json:"author,omitempty"`
	AuthorTime    string   `json:"authorTime,omitempty"`
	Mode          Mode     `json:"mode"`
	OnAddedLine   bool     `json:"onAddedLine,omitempty"`
	EffortMinutes uint32   `json:"effortMinutes,omitempty"`
	Value         int32    `json:"value,omitempty"`
	ValueDelta    int32    `json:"valueDelta,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Path returns the issue's primary path, or "" if the issue has no
// location at all (§9 open question: such issues skip path
// normalization and land in a pathless FileResult).
func (i *Issue) Path() string {
	if i.Location == nil {
		return ""
	}
	return i.Location.Path
}

// Clone returns a deep-enough copy for a transformer to mutate without
// aliasing the caller's slices/maps.
func (i Issue) Clone() Issue {
	out := i
	if i.Location != nil {
		loc := *i.Location
		if i.Location.Range != nil {
			r := *i.Location.Range
			loc.Range = &r
		}
		out.Location = &loc
	}
	if i.OtherLocations != nil {
		out.OtherLocations = append([]Location(nil), i.OtherLocations...)
	}
	if i.Suggestions != nil {
		out.Suggestions = append([]Suggestion(nil), i.Suggestions...)
		for idx := range out.Suggestions {
			if i.Suggestions[idx].Replacements != nil {
				out.Suggestions[idx].Replacements = append([]Replacement(nil), i.Suggestions[idx].Replacements...)
			}
		}
	}
	if i.Tags != nil {
		out.Tags = append([]string(nil), i.Tags...)
	}
	if i.PartialFingerprints != nil {
		m := make(map[string]string, len(i.PartialFingerprints))
		for k, v := range i.PartialFingerprints {
			m[k] = v
		}
		out.PartialFingerprints = m
	}
	return out
}
