// Package execute runs planned invocations: it renders a driver's
// script, spawns and times it out, classifies its exit code, and
// turns its output into per-file results via internal/qlty/parser.
package execute

// MessageLevel is the severity of a structured run Message.
type MessageLevel int

const (
	MessageLevelUnspecified MessageLevel = iota
	MessageLevelInfo
	MessageLevelWarning
	MessageLevelError
)

var messageLevelNames = map[MessageLevel]string{
	MessageLevelUnspecified: "MESSAGE_LEVEL_UNSPECIFIED",
	MessageLevelInfo:        "MESSAGE_LEVEL_INFO",
	MessageLevelWarning:     "MESSAGE_LEVEL_WARNING",
	MessageLevelError:       "MESSAGE_LEVEL_ERROR",
}

func (l MessageLevel) String() string {
	if name, ok := messageLevelNames[l]; ok {
		return name
	}
	return "MESSAGE_LEVEL_UNSPECIFIED"
}

func (l MessageLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// Message is a structured diagnostic produced by the run itself
// (as opposed to an issue found by a tool): a timeout, a parse
// failure, a limit being hit.
type Message struct {
	Timestamp string            `json:"timestamp,omitempty"`
	Module    string            `json:"module"`
	Type      string            `json:"type"`
	Level     MessageLevel      `json:"level"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}
