package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

type noArgs struct{}

func testRegistry() *Registry {
	r := NewRegistry()
	Register[echoArgs](r, "echo", "Echo the arguments", func(_ context.Context, _ string, args []string) (string, error) {
		out := "echo:"
		for _, a := range args {
			out += " " + a
		}
		return out, nil
	})
	Register[noArgs](r, "ping", "Reply with pong", func(_ context.Context, _ string, _ []string) (string, error) {
		return "pong", nil
	})
	return r
}

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text     string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"/mode plan", "mode", []string{"plan"}, true},
		{"  /help  ", "help", nil, true},
		{"/model opus extra", "model", []string{"opus", "extra"}, true},
		{"plain prompt", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
		{"weighing 1/2 options", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := Parse(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			if len(tt.wantArgs) > 0 {
				assert.Equal(t, tt.wantArgs, args)
			} else {
				assert.Empty(t, args)
			}
		})
	}
}

func TestRegistry_Execute(t *testing.T) {
	t.Parallel()
	r := testRegistry()

	out, err := r.Execute(context.Background(), "s1", "echo", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "echo: a b", out)

	_, err = r.Execute(context.Background(), "s1", "nope", nil)
	var unknownErr *UnknownCommandError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Name)
}

func TestRegistry_AvailableSortedWithSchemas(t *testing.T) {
	t.Parallel()
	r := testRegistry()

	avail := r.Available()
	require.Len(t, avail, 2)
	assert.Equal(t, "echo", avail[0].Name)
	assert.Equal(t, "ping", avail[1].Name)

	// The echo schema must describe its required text argument.
	assert.Contains(t, string(avail[0].Input), `"text"`)
	assert.Contains(t, string(avail[0].Input), `"required"`)
}

func TestRegistry_Help(t *testing.T) {
	t.Parallel()
	help := testRegistry().Help()
	assert.Contains(t, help, "/echo - Echo the arguments")
	assert.Contains(t, help, "/ping - Reply with pong")
}
