package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRoot mirrors main()'s command wiring without calling os.Exit on error,
// grounded on the teacher's cmd/morfx test pattern of exercising the real
// command tree with buffered IO rather than invoking main() directly.
func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "kaybee",
		Short: "An embedded knowledge-graph engine over frontmatter notes",
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flagDBPath, "db", "", "path to the primary database")
	pf.StringVar(&flagLayout, "layout", "", "storage layout: pertype or unified")
	pf.StringVar(&flagRemoteDSN, "remote", "", "remote database DSN, for push/pull")
	pf.StringVar(&flagRemoteToken, "remote-token", "", "remote libsql/Turso auth token")
	pf.BoolVar(&flagChangelogDisabled, "no-changelog", false, "disable changelog recording")
	pf.BoolVar(&flagJSON, "json", false, "emit JSON output")
	root.AddCommand(
		newLsCmd(), newFindCmd(), newGrepCmd(), newTagsCmd(), newSchemaCmd(), newGraphCmd(),
		newQueryCmd(), newReadCmd(), newCatCmd(), newBodyCmd(), newFrontmatterCmd(), newInfoCmd(),
		newWriteCmd(), newTouchCmd(), newRmCmd(), newMvCmd(), newCpCmd(),
		newAddTypeCmd(), newRemoveTypeCmd(), newImportCmd(), newPushCmd(), newPullCmd(),
	)
	return root
}

func resetGlobalFlags(t *testing.T) {
	t.Helper()
	flagDBPath = ""
	flagLayout = ""
	flagRemoteDSN = ""
	flagRemoteToken = ""
	flagChangelogDisabled = false
	flagJSON = false
}

func TestRootCommand_Structure(t *testing.T) {
	root := buildRoot()
	assert.Equal(t, "kaybee", root.Use)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ls", "find", "grep", "tags", "schema", "graph", "query", "read",
		"cat", "body", "frontmatter", "info", "write", "touch", "rm", "mv", "cp",
		"add-type", "remove-type", "import", "push", "pull"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}

	dbFlag := root.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestWriteThenCat_EndToEnd(t *testing.T) {
	resetGlobalFlags(t)
	dbPath := filepath.Join(t.TempDir(), "graph.db")

	root := buildRoot()
	root.SetArgs([]string{"--db", dbPath, "write", "alice", "---\ntype: person\n---\nhello"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	require.NoError(t, root.Execute())

	root2 := buildRoot()
	root2.SetArgs([]string{"--db", dbPath, "cat", "alice"})
	out.Reset()
	root2.SetOut(&out)
	root2.SetErr(&out)
	require.NoError(t, root2.Execute())
	assert.Contains(t, out.String(), "hello")
}

func TestWriteCmd_RejectsStdinAndInlineTogether(t *testing.T) {
	_, err := resolveContentArg([]string{"name", "content"}, true)
	assert.Error(t, err)
}

func TestWriteCmd_RequiresContentOrStdin(t *testing.T) {
	_, err := resolveContentArg([]string{"name"}, false)
	assert.Error(t, err)
}

func TestFriendlyError_PlainError(t *testing.T) {
	assert.Equal(t, "boom", friendlyError(errors.New("boom")))
}

func TestParseScope_SplitsKeyValue(t *testing.T) {
	scope, err := parseScope([]string{"env=prod", "region=us"})
	require.NoError(t, err)
	assert.Equal(t, "prod", scope["env"])
	assert.Equal(t, "us", scope["region"])
}

func TestParseScope_RejectsMissingEquals(t *testing.T) {
	_, err := parseScope([]string{"noequals"})
	assert.Error(t, err)
}
