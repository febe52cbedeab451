// Command kaybee is the CLI front end over the kaybee engine: one cobra
// subcommand per query-façade operation, persistent flags resolving
// database location and layout the same layered way internal/config does,
// grounded on the teacher's demo/cmd root+subcommand cobra wiring.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tg1482/kaybee/internal/config"
	"github.com/tg1482/kaybee/internal/kerr"
)

var (
	flagDBPath            string
	flagLayout            string
	flagRemoteDSN         string
	flagRemoteToken       string
	flagChangelogDisabled bool
	flagJSON              bool
)

func main() {
	root := &cobra.Command{
		Use:   "kaybee",
		Short: "An embedded knowledge-graph engine over frontmatter notes",
		Long:  "kaybee parses frontmatter/wikilink notes into a queryable graph backed by SQLite, with an emergent per-type schema and an append-only changelog.",
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagDBPath, "db", "", "path to the primary database (default "+config.DefaultDBPath+")")
	pf.StringVar(&flagLayout, "layout", "", "storage layout: pertype or unified")
	pf.StringVar(&flagRemoteDSN, "remote", "", "remote database DSN, for push/pull")
	pf.StringVar(&flagRemoteToken, "remote-token", "", "remote libsql/Turso auth token")
	pf.BoolVar(&flagChangelogDisabled, "no-changelog", false, "disable changelog recording")
	pf.BoolVar(&flagJSON, "json", false, "emit JSON output")

	root.AddCommand(
		newLsCmd(),
		newFindCmd(),
		newGrepCmd(),
		newTagsCmd(),
		newSchemaCmd(),
		newGraphCmd(),
		newQueryCmd(),
		newReadCmd(),
		newCatCmd(),
		newBodyCmd(),
		newFrontmatterCmd(),
		newInfoCmd(),
		newWriteCmd(),
		newTouchCmd(),
		newRmCmd(),
		newMvCmd(),
		newCpCmd(),
		newAddTypeCmd(),
		newRemoveTypeCmd(),
		newImportCmd(),
		newPushCmd(),
		newPullCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", friendlyError(err))
		os.Exit(1)
	}
}

// friendlyError renders a *kerr.Error's code alongside its message; any
// other error prints as-is.
func friendlyError(err error) string {
	if e, ok := err.(*kerr.Error); ok {
		return fmt.Sprintf("[%s] %s", e.Code, e.Error())
	}
	return err.Error()
}

// loadConfig resolves the persistent flags into a config.Config.
func loadConfig() *config.Config {
	return config.Load(config.Flags{
		DBPath:               flagDBPath,
		SetDBPath:            flagDBPath != "",
		Layout:               flagLayout,
		SetLayout:            flagLayout != "",
		RemoteDSN:            flagRemoteDSN,
		SetRemoteDSN:         flagRemoteDSN != "",
		RemoteToken:          flagRemoteToken,
		SetRemoteToken:       flagRemoteToken != "",
		ChangelogDisabled:    flagChangelogDisabled,
		SetChangelogDisabled: flagChangelogDisabled,
	})
}

// printResult renders v as JSON when --json is set, otherwise as printFn's
// plain-text rendering.
func printResult(v any, printFn func()) {
	if flagJSON {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}
	printFn()
}
