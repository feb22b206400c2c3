package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func execCall(command string) ToolCall {
	return ToolCall{
		Kind:     "execute",
		Title:    "Run command",
		RawInput: map[string]interface{}{"command": command},
	}
}

func TestClassify_DeclaredKinds(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil)

	tests := []struct {
		name string
		call ToolCall
		want RiskKind
	}{
		{"read kind", ToolCall{Kind: "read", Title: "Read file"}, RiskRead},
		{"search kind", ToolCall{Kind: "search", Title: "Grep"}, RiskRead},
		{"edit kind", ToolCall{Kind: "edit", Title: "Edit file"}, RiskFileEdit},
		{"delete kind", ToolCall{Kind: "delete", Title: "Delete file"}, RiskFileDelete},
		{"plain execute", execCall("npm install"), RiskCommandExecute},
		{"unknown kind falls back to title", ToolCall{Kind: "think", Title: "Write notes"}, RiskFileEdit},
		{"nothing recognizable", ToolCall{Kind: "fetch", Title: "Web fetch"}, RiskOther},
		{"empty call", ToolCall{}, RiskOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.call))
		})
	}
}

func TestClassify_DangerousCommands(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil)

	dangerous := []string{
		"rm -rf /tmp/build",
		"rm -fr node_modules",
		"rm -r -f dist",
		"sudo apt-get install jq",
		"chmod 777 script.sh",
		"chown root:root /etc/passwd",
		"mkfs.ext4 /dev/sdb1",
		"dd if=/dev/zero of=out.img",
		"cat data > /dev/sda",
	}
	for _, cmd := range dangerous {
		t.Run(cmd, func(t *testing.T) {
			assert.Equal(t, RiskDangerousCommand, c.Classify(execCall(cmd)))
		})
	}

	safe := []string{
		"ls -la",
		"echo hello",
		"npm install",
		"git status",
		"rm notes.txt", // plain rm without recursive/force flags
		"./gradlew build",
	}
	for _, cmd := range safe {
		t.Run(cmd, func(t *testing.T) {
			assert.Equal(t, RiskCommandExecute, c.Classify(execCall(cmd)))
		})
	}
}

func TestClassify_ExtraPatternsFromConfig(t *testing.T) {
	t.Parallel()
	c := NewClassifier([]string{`\bdocker\s+system\s+prune\b`, `[invalid`})

	assert.Equal(t, RiskDangerousCommand, c.Classify(execCall("docker system prune -a")))
	assert.Equal(t, RiskCommandExecute, c.Classify(execCall("docker ps")))
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil)
	call := execCall("sudo rm -rf /")
	first := c.Classify(call)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(call))
	}
}
