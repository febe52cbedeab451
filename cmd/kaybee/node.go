package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <name>",
		Short: "Print a node's full raw content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			content, err := g.Cat(args[0])
			if err != nil {
				return err
			}
			printResult(content, func() { fmt.Fprintln(cmd.OutOrStdout(), content) })
			return nil
		},
	}
}

func newBodyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "body <name>",
		Short: "Print a node's content after the frontmatter header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			body, err := g.Body(args[0])
			if err != nil {
				return err
			}
			printResult(body, func() { fmt.Fprintln(cmd.OutOrStdout(), body) })
			return nil
		},
	}
}

func newFrontmatterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frontmatter <name>",
		Short: "Print a node's parsed metadata fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			meta, err := g.Frontmatter(args[0])
			if err != nil {
				return err
			}
			fields := make(map[string]string, meta.Len())
			for _, k := range meta.Keys() {
				v, _ := meta.Get(k)
				fields[k] = v.String()
			}
			printResult(fields, func() {
				keys := meta.Keys()
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, fields[k])
				}
			})
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Print a node's identity, metadata, and body together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			info, err := g.Info(args[0])
			if err != nil {
				return err
			}
			printResult(info, func() {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "name: %s\ntype: %s\n", info.Name, info.Type)
				for _, k := range info.Meta.Keys() {
					v, _ := info.Meta.Get(k)
					fmt.Fprintf(w, "%s: %s\n", k, v.String())
				}
				fmt.Fprintln(w, "---")
				fmt.Fprintln(w, info.Body)
			})
			return nil
		},
	}
}

func newReadCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "read <name>",
		Short: "Breadth-first expand a node through resolved wikilinks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			order, content, err := g.Read(args[0], depth)
			if err != nil {
				return err
			}
			printResult(content, func() {
				w := cmd.OutOrStdout()
				for _, n := range order {
					fmt.Fprintf(w, "## %s\n%s\n\n", n, content[n])
				}
			})
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "hops to expand through resolved wikilinks")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var fromStdin bool
	var preview bool
	cmd := &cobra.Command{
		Use:   "write <name> [content]",
		Short: "Parse and upsert a node's content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := resolveContentArg(args, fromStdin)
			if err != nil {
				return err
			}
			g := openGraphOrExit()
			defer g.Close()
			if preview {
				diff, err := g.WritePreview(args[0], content, 3)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), diff)
				return nil
			}
			return g.Write(args[0], content)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read content from stdin")
	cmd.Flags().BoolVar(&preview, "preview", false, "show a diff instead of writing")
	return cmd
}

func newTouchCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "touch <name> [content]",
		Short: "Write content only if the node is absent",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := resolveContentArg(args, fromStdin)
			if err != nil {
				return err
			}
			g := openGraphOrExit()
			defer g.Close()
			return g.Touch(args[0], content)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read content from stdin")
	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			return g.Rm(args[0])
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			return g.Mv(args[0], args[1])
		},
	}
}

func newCpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Deep-copy a node's content and outgoing edges",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			return g.Cp(args[0], args[1])
		},
	}
}

func newAddTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-type <type>",
		Short: "Register a type with an empty field set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			return g.AddType(args[0])
		},
	}
}

func newRemoveTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-type <type>",
		Short: "Drop a type's storage, migrating its nodes to untyped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := openGraphOrExit()
			defer g.Close()
			return g.RemoveType(args[0])
		},
	}
}

// resolveContentArg returns content from args[1], or from stdin if
// fromStdin is set (in which case args[1] must be absent).
func resolveContentArg(args []string, fromStdin bool) (string, error) {
	if fromStdin {
		if len(args) == 2 {
			return "", fmt.Errorf("cannot combine --stdin with an inline content argument")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if len(args) != 2 {
		return "", fmt.Errorf("content argument or --stdin is required")
	}
	return args[1], nil
}
