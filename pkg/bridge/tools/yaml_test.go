package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleToolsYAML = `
tools:
  - name: lookup_order
    description: Looks up an order by number.
    parameters:
      type: object
      properties:
        orderNumber:
          type: string
      required: [orderNumber]
    response:
      type: object
      properties:
        status:
          type: string
      required: [status]
  - name: notify_staff
    hidden: true
`

func TestParseToolsYAML(t *testing.T) {
	parsed, err := ParseToolsYAML([]byte(sampleToolsYAML))
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	lookup := parsed[0]
	require.Equal(t, KindWebhook, lookup.Kind)
	require.Equal(t, "lookup_order", lookup.Name)
	require.False(t, lookup.Hidden)
	require.Error(t, lookup.Parameters.Validate(map[string]any{}))
	require.NoError(t, lookup.Parameters.Validate(map[string]any{"orderNumber": "A-100"}))
	require.Error(t, lookup.Response.Validate(map[string]any{"status": 7}))

	notify := parsed[1]
	require.True(t, notify.Hidden)
	require.Nil(t, notify.Parameters)
	require.NoError(t, notify.Parameters.Validate(map[string]any{"anything": "goes"}))
}

func TestParseToolsYAML_Rejections(t *testing.T) {
	_, err := ParseToolsYAML([]byte("tools:\n  - description: nameless\n"))
	require.ErrorContains(t, err, "name")

	_, err = ParseToolsYAML([]byte("tools: {broken\n"))
	require.Error(t, err)
}

func TestLoadToolsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleToolsYAML), 0o600))

	parsed, err := LoadToolsFile(path)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	_, err = LoadToolsFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
