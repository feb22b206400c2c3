package policy

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RiskKind is the classifier's output category driving the gate's decision.
type RiskKind string

const (
	RiskRead             RiskKind = "read"
	RiskFileEdit         RiskKind = "file_edit"
	RiskFileDelete       RiskKind = "file_delete"
	RiskCommandExecute   RiskKind = "command_execute"
	RiskDangerousCommand RiskKind = "dangerous_command"
	RiskOther            RiskKind = "other"
)

// ToolCall is the classifier's view of a tool invocation: the declared kind,
// the human-readable title, and the raw structured input.
type ToolCall struct {
	RawInput map[string]interface{}
	ID       string
	Title    string
	Kind     string
}

// dangerousPatterns is the fixed ordered list of command shapes that classify
// an execute call as dangerous. First match wins.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[A-Za-z]*[rf][A-Za-z]*\s*)+`), // recursive/forced delete
	regexp.MustCompile(`\bsudo\b`),                             // privilege elevation
	regexp.MustCompile(`\bchmod\b`),                            // permission changes
	regexp.MustCompile(`\bchown\b`),                            // ownership changes
	regexp.MustCompile(`\bmkfs\b`),                             // filesystem formatting
	regexp.MustCompile(`\bdd\s+`),                              // raw block copies
	regexp.MustCompile(`>\s*/dev/`),                            // raw device writes
}

// Classifier maps a tool call to a RiskKind. The zero value uses the builtin
// dangerous-command patterns; extra patterns can be appended from config.
type Classifier struct {
	extra []*regexp.Regexp
}

// NewClassifier builds a classifier with optional additional dangerous-command
// patterns. Invalid patterns are skipped.
func NewClassifier(extraPatterns []string) *Classifier {
	c := &Classifier{}
	for _, p := range extraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		c.extra = append(c.extra, re)
	}
	return c
}

// Classify is a deterministic, total function from a tool call to exactly one
// RiskKind.
func (c *Classifier) Classify(call ToolCall) RiskKind {
	switch call.Kind {
	case "read", "search":
		return RiskRead
	case "edit":
		return RiskFileEdit
	case "delete":
		return RiskFileDelete
	case "execute":
		if c.isDangerous(serializeInput(call.RawInput)) {
			return RiskDangerousCommand
		}
		return RiskCommandExecute
	}

	// Kind absent or unrecognized: fall back to title matching.
	title := strings.ToLower(call.Title)
	switch {
	case containsAny(title, "read", "glob", "grep"):
		return RiskRead
	case containsAny(title, "write", "edit", "create"):
		return RiskFileEdit
	case containsAny(title, "delete", "remove"):
		return RiskFileDelete
	case containsAny(title, "bash", "command", "run"):
		return RiskCommandExecute
	default:
		return RiskOther
	}
}

func (c *Classifier) isDangerous(command string) bool {
	for _, re := range dangerousPatterns {
		if re.MatchString(command) {
			return true
		}
	}
	for _, re := range c.extra {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// serializeInput renders the raw input as text for pattern matching. Falls
// back to the empty string when the input does not marshal.
func serializeInput(input map[string]interface{}) string {
	if len(input) == 0 {
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
