package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsCommand_ListsEnabledToolsWithArgs(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		"enabled_tools": []string{"file_read", "memory_query"},
	})

	out, err := env.execute(t, "", "tools")
	require.NoError(t, err)

	assert.Contains(t, out, "file_read")
	assert.Contains(t, out, "  start_line")
	assert.Contains(t, out, "memory_query")
	assert.NotContains(t, out, "web_search")
	assert.NotContains(t, out, "file_write")
}

func TestToolsCommand_DefaultListsEveryCoreTool(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		"memory": map[string]interface{}{"enabled": false, "engine": "sqlite"},
	})

	out, err := env.execute(t, "", "tools")
	require.NoError(t, err)

	for _, name := range []string{"file_read", "file_write", "list_directory", "find_path", "file_search", "web_search", "web_scrape"} {
		assert.Contains(t, out, name)
	}
	assert.NotContains(t, out, "memory_ingest")
}
