package corrosion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	gotName string
	gotArgs []string
	output  string
	err     error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (string, error) {
	f.gotName = name
	f.gotArgs = args
	return f.output, f.err
}

func TestReader_QueryContext_UsesInjectedRunner(t *testing.T) {
	runner := &fakeRunner{output: `{"id":"host-a"}` + "\n"}
	reader := NewReader("/etc/jiji/corrosion/config.toml")
	reader.Runner = runner

	rows, err := reader.QueryContext(context.Background(), "SELECT id FROM server WHERE id = ?", "host-a")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, DefaultCommand, runner.gotName)
	assert.Equal(t, []string{
		"query", "-c", "/etc/jiji/corrosion/config.toml", "--columns", "--json-lines",
		"SELECT id FROM server WHERE id = ?", "host-a",
	}, runner.gotArgs)
}

func TestReader_QueryContext_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError}
	reader := NewReader("/etc/jiji/corrosion/config.toml")
	reader.Runner = runner

	_, err := reader.QueryContext(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestParseQueryOutput(t *testing.T) {
	output := `{"id":"host-a","subnet":"10.210.0.0/24"}
{"id":"host-b","subnet":"10.210.1.0/24"}
`
	rows, err := parseQueryOutput(output)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var id, subnet string
	require.NoError(t, rows[0].Scan(map[string]any{"id": &id, "subnet": &subnet}))
	assert.Equal(t, "host-a", id)
	assert.Equal(t, "10.210.0.0/24", subnet)
}

func TestParseQueryOutput_EmptyLinesIgnored(t *testing.T) {
	output := "\n{\"id\":\"host-a\"}\n\n"
	rows, err := parseQueryOutput(output)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParseQueryOutput_Empty(t *testing.T) {
	rows, err := parseQueryOutput("")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRow_Scan_MissingColumn(t *testing.T) {
	rows, err := parseQueryOutput(`{"id":"host-a"}`)
	require.NoError(t, err)

	var missing string
	err = rows[0].Scan(map[string]any{"nonexistent": &missing})
	assert.Error(t, err)
}
