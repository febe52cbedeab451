package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tg1482/kaybee/internal/replicate"
	"github.com/tg1482/kaybee/internal/scan"
)

func newImportCmd() *cobra.Command {
	var include, exclude []string
	var maxDepth int
	var followSymlinks bool
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Bulk-import a directory of note files as nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			n, err := g.Import(context.Background(), scan.Scope{
				Path:           args[0],
				Include:        include,
				Exclude:        exclude,
				MaxDepth:       maxDepth,
				FollowSymlinks: followSymlinks,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d node(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "include glob patterns (default **/*.md)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude glob patterns")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum traversal depth (0 = unlimited)")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "follow symbolic links during traversal")
	return cmd
}

func newPushCmd() *cobra.Command {
	var scopeFlags []string
	var sinceSeq int64
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Replay local changelog entries to the configured remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			scope, err := parseScope(scopeFlags)
			if err != nil {
				return err
			}
			maxSeq, err := g.Push(scope, sinceSeq)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed through seq %d\n", maxSeq)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopeFlags, "scope", nil, "scope tag as key=value, repeatable")
	cmd.Flags().Int64Var(&sinceSeq, "since", 0, "replay entries with seq greater than this")
	return cmd
}

func newPullCmd() *cobra.Command {
	var scopeFlags []string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Apply remote rows matching scope locally, bypassing the changelog",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			scope, err := parseScope(scopeFlags)
			if err != nil {
				return err
			}
			n, err := g.Pull(scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d node(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopeFlags, "scope", nil, "scope tag as key=value, repeatable")
	return cmd
}

// parseScope turns repeated "key=value" flags into a replicate.Scope.
func parseScope(tags []string) (replicate.Scope, error) {
	scope := make(replicate.Scope, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --scope %q, expected key=value", t)
		}
		scope[k] = v
	}
	return scope, nil
}
