// Package command implements the slash-command registry: prompts whose text
// starts with "/name" are handled locally instead of being forwarded to the
// subordinate agent. Each command advertises a JSON schema for its arguments,
// generated from a Go struct, so clients can render input forms.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/acpgate/acpgate/acp"
)

// UnknownCommandError reports a slash command with no registration.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: /%s", e.Name)
}

// Handler executes one command for a session. args is the whitespace-split
// remainder of the prompt after the command name. The returned string is
// reported back to the user as an agent message.
type Handler func(ctx context.Context, sessionID string, args []string) (string, error)

// registration stores a single command's metadata and handler.
type registration struct {
	name        string
	description string
	schema      json.RawMessage
	run         Handler
}

// Registry holds the registered slash commands for a coordinator.
type Registry struct {
	commands []registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a command whose argument shape is described by the struct
// type T. It returns the registry for chaining.
//
// Example:
//
//	type modeArgs struct {
//	    Mode string `json:"mode" jsonschema:"required,description=Mode id to switch to"`
//	}
//	command.Register[modeArgs](reg, "mode", "Switch the session mode", runMode)
func Register[T any](r *Registry, name, description string, run Handler) *Registry {
	r.commands = append(r.commands, registration{
		name:        name,
		description: description,
		schema:      generateSchema[T](),
		run:         run,
	})
	return r
}

// Available renders the registry for an available_commands_update
// notification, sorted by name.
func (r *Registry) Available() []acp.AvailableCommand {
	out := make([]acp.AvailableCommand, len(r.commands))
	for i, c := range r.commands {
		out[i] = acp.AvailableCommand{
			Name:        c.name,
			Description: c.description,
			Input:       c.schema,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named command. Unknown names fail with
// *UnknownCommandError.
func (r *Registry) Execute(ctx context.Context, sessionID, name string, args []string) (string, error) {
	for _, c := range r.commands {
		if c.name == name {
			return c.run(ctx, sessionID, args)
		}
	}
	return "", &UnknownCommandError{Name: name}
}

// Help returns a one-line-per-command usage summary.
func (r *Registry) Help() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range r.Available() {
		fmt.Fprintf(&b, "  /%s - %s\n", c.Name, c.Description)
	}
	return b.String()
}

// Parse splits prompt text of the form "/name arg1 arg2" into its command
// name and arguments. ok is false when the text is not a slash command.
func Parse(text string) (name string, args []string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") || len(trimmed) < 2 {
		return "", nil, false
	}
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// generateSchema reflects a JSON schema for the struct type T, inlining all
// definitions so the schema is self-contained on the wire.
func generateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(zero)
	bytes, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}
	return json.RawMessage(bytes)
}
