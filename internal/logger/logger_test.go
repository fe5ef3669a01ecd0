package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	BuildMessages(&logger, zerolog.ErrorLevel, []api.Message{
		{
			Text: `Could not resolve "./missing"`,
			Location: &api.Location{
				File:     "src/index.tsx",
				Line:     3,
				Column:   7,
				LineText: `import "./missing"`,
			},
		},
		{Text: "plain failure", PluginName: "env"},
	})

	var events []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	require.Equal(t, "error", events[0]["level"])
	require.Equal(t, "Build error", events[0]["message"])
	require.Equal(t, "src/index.tsx", events[0]["file"])
	require.InDelta(t, 3, events[0]["line"], 0)
	require.Equal(t, "env", events[1]["plugin"])
	require.NotContains(t, events[1], "file")
}

func TestBuildMessages_warnings(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.ErrorLevel)

	BuildMessages(&logger, zerolog.WarnLevel, []api.Message{{Text: "unused import"}})
	require.Empty(t, buf.String())

	logger = logger.Level(zerolog.DebugLevel)
	BuildMessages(&logger, zerolog.WarnLevel, []api.Message{{Text: "unused import"}})
	require.Contains(t, buf.String(), `"message":"Build warning"`)
}
