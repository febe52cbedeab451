package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tg1482/kaybee"
)

func openGraphOrExit() *kaybee.Graph {
	g, err := kaybee.Open(loadConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", friendlyError(err))
		os.Exit(1)
	}
	return g
}

func newLsCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List node names, optionally filtered by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			names, err := g.Ls(typ)
			if err != nil {
				return err
			}
			printResult(names, func() { printLines(cmd.OutOrStdout(), names) })
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "restrict to this type")
	return cmd
}

func newFindCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "find [name-regex]",
		Short: "List node names matching a regular expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			re := ""
			if len(args) == 1 {
				re = args[0]
			}
			g := openGraphOrExit()
			defer g.Close()
			names, err := g.Find(re, typ)
			if err != nil {
				return err
			}
			printResult(names, func() { printLines(cmd.OutOrStdout(), names) })
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "restrict to this type")
	return cmd
}

func newGrepCmd() *cobra.Command {
	var fullContent bool
	cmd := &cobra.Command{
		Use:   "grep <pattern>",
		Short: "Search node content for a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			names, err := g.Grep(args[0], fullContent)
			if err != nil {
				return err
			}
			printResult(names, func() { printLines(cmd.OutOrStdout(), names) })
			return nil
		},
	}
	cmd.Flags().BoolVar(&fullContent, "full", false, "search raw content including the frontmatter header")
	return cmd
}

func newTagsCmd() *cobra.Command {
	var of string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List every tag, or one node's tags with --of",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			if of != "" {
				tags, err := g.TagsOf(of)
				if err != nil {
					return err
				}
				printResult(tags, func() { printLines(cmd.OutOrStdout(), tags) })
				return nil
			}
			tags, err := g.Tags()
			if err != nil {
				return err
			}
			printResult(tags, func() {
				names := make([]string, 0, len(tags))
				for t := range tags {
					names = append(names, t)
				}
				sort.Strings(names)
				for _, t := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", t, tags[t])
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&of, "of", "", "list this node's tags instead")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show each type's current field set",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			m, err := g.SchemaMap()
			if err != nil {
				return err
			}
			printResult(m, func() {
				types := make([]string, 0, len(m))
				for t := range m {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", t, m[t])
				}
			})
			return nil
		},
	}
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the full resolved adjacency",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			adj, err := g.Graph()
			if err != nil {
				return err
			}
			printResult(adj, func() {
				names := make([]string, 0, len(adj))
				for n := range adj {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %v\n", n, adj[n])
				}
			})
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [param...]",
		Short: "Run a raw SQL passthrough against the primary database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			params := make([]any, len(args)-1)
			for i, p := range args[1:] {
				params[i] = p
			}
			rows, err := g.Query(args[0], params...)
			if err != nil {
				return err
			}
			printResult(rows, func() {
				w := cmd.OutOrStdout()
				for _, row := range rows {
					cols := make([]string, 0, len(row))
					for c := range row {
						cols = append(cols, c)
					}
					sort.Strings(cols)
					for i, c := range cols {
						if i > 0 {
							fmt.Fprint(w, "\t")
						}
						fmt.Fprintf(w, "%s=%v", c, row[c])
					}
					fmt.Fprintln(w)
				}
			})
			return nil
		},
	}
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
