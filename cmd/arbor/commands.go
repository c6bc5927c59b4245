package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"arbor/internal/diff"
	apperrors "arbor/internal/errors"
	"arbor/internal/mtree"
	"arbor/internal/repo"
	"arbor/internal/txn"
	"arbor/internal/watch"
	"arbor/shared/utils"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			if err := r.Close(); err != nil {
				return fmt.Errorf("closing repository: %w", err)
			}

			location := a.config.Repository.Path
			if abs, err := filepath.Abs(location); err == nil {
				location = abs
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Initialized empty arbor repository in", location)
			return nil
		},
	}
}

func (a *app) commitCmd() *cobra.Command {
	var subject string
	var follow bool

	cmd := &cobra.Command{
		Use:   "commit <branch> <dir>",
		Short: "Snapshot a directory onto a branch",
		Long: `Snapshot the files below <dir> as a new commit on <branch>.
Entries whose name starts with a dot are skipped. With --watch the
directory is committed again after every burst of changes until
interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, dir := args[0], args[1]
			if subject == "" {
				subject = fmt.Sprintf("Snapshot of %s", filepath.Base(dir))
			}

			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			commit := func() error {
				sum, err := r.CommitDirectory(branch, dir, subject)
				if err != nil {
					return fmt.Errorf("committing %s: %w", dir, err)
				}
				fmt.Fprintf(out, "%s %s\n", branch, sum)
				return nil
			}

			if err := commit(); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := watch.New(dir, func() {
				if err := commit(); err != nil {
					a.logger.Error("commit failed", zap.String("dir", dir), zap.Error(err))
				}
			}, watch.WithLogger(a.logger.Logger))
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Fprintf(out, "Watching %s, press Ctrl-C to stop\n", dir)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "commit subject")
	cmd.Flags().BoolVar(&follow, "watch", false, "keep committing as the directory changes")
	return cmd
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <rev> [path]",
		Short: "List a directory of a commit",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tree, _, err := r.ReadCommitTree(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 2 {
				if path := mtree.SplitPath(args[1]); len(path) > 0 {
					file, sub, err := mtree.LookupPath(tree, path)
					if err != nil {
						return err
					}
					switch {
					case sub != nil:
						tree = sub
					case file != "":
						return printFile(out, r, path[len(path)-1], file)
					default:
						return apperrors.FileNotFound(path[len(path)-1])
					}
				}
			}
			return listTree(out, r, tree)
		},
	}
}

func listTree(out io.Writer, r *repo.Repo, tree *mtree.MutableTree) error {
	dirs, err := tree.Subdirs()
	if err != nil {
		return err
	}
	for _, name := range dirs {
		fmt.Fprintf(out, "d %10s  %-12s  %s/\n", "-", "", name)
	}

	files, err := tree.Files()
	if err != nil {
		return err
	}
	for _, name := range files {
		sum, _, err := tree.Lookup(name)
		if err != nil {
			return err
		}
		if err := printFile(out, r, name, sum); err != nil {
			return err
		}
	}
	return nil
}

func printFile(out io.Writer, r *repo.Repo, name, sum string) error {
	data, err := r.ReadContent(sum)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	fmt.Fprintf(out, "- %10s  %-12s  %s\n", humanize.Bytes(uint64(len(data))), sum[:12], name)
	return nil
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <rev> <path>",
		Short: "Print a file of a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tree, _, err := r.ReadCommitTree(args[0])
			if err != nil {
				return err
			}
			sum, err := mtree.LookupFile(tree, mtree.SplitPath(args[1]))
			if err != nil {
				return err
			}
			data, err := r.ReadContent(sum)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <rev> <rev>",
		Short: "Show the files that differ between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			oldTree, _, err := r.ReadCommitTree(args[0])
			if err != nil {
				return err
			}
			newTree, _, err := r.ReadCommitTree(args[1])
			if err != nil {
				return err
			}

			result, err := diff.Compare(oldTree, newTree)
			if err != nil {
				return fmt.Errorf("comparing trees: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(result.Changes) == 0 {
				fmt.Fprintln(out, "No changes")
				return nil
			}
			printColoredDiff(out, result.Format())
			fmt.Fprintf(out, "\n%d added, %d modified, %d deleted\n",
				result.Stats.Additions, result.Stats.Modifications, result.Stats.Deletions)
			return nil
		},
	}
}

func printColoredDiff(out io.Writer, formatted string) {
	added := color.New(color.FgGreen)
	modified := color.New(color.FgYellow)
	removed := color.New(color.FgRed)

	for _, line := range strings.Split(strings.TrimSuffix(formatted, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "A "):
			added.Fprintln(out, line)
		case strings.HasPrefix(line, "M "):
			modified.Fprintln(out, line)
		case strings.HasPrefix(line, "D "):
			removed.Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
}

func (a *app) refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs [prefix]",
		Short: "List refs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			refs, err := r.ListRefs(prefix)
			if err != nil {
				return fmt.Errorf("listing refs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintln(out, "No refs found")
				return nil
			}
			for _, ref := range refs {
				fmt.Fprintf(out, "%s  %s  (%s)\n", ref.Checksum[:12], ref.Name, humanize.Time(ref.UpdatedAt))
			}
			return nil
		},
	}
}

func (a *app) branchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch <name> <rev>",
		Short: "Create a ref pointing at an existing commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			sum, err := r.ResolveRev(args[1], false)
			if err != nil {
				return err
			}
			if err := txn.Do(r, func() error {
				return r.CreateRef(args[0], sum)
			}, txn.WithLogger(a.logger.Logger)); err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s at %s\n", args[0], sum[:12])
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rev>",
		Short: "Show a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			sum, err := r.ResolveRev(args[0], false)
			if err != nil {
				return err
			}
			commit, err := r.ReadCommit(sum)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgYellow).Fprintf(out, "commit %s\n", sum)
			if commit.Parent != "" {
				fmt.Fprintf(out, "Parent: %s\n", commit.Parent)
			}
			fmt.Fprintf(out, "Tree:   %s\n", commit.RootTree)
			fmt.Fprintf(out, "Date:   %s (%s)\n",
				commit.Timestamp.Local().Format(time.RFC1123Z), humanize.Time(commit.Timestamp))
			fmt.Fprintf(out, "\n    %s\n", commit.Subject)
			if commit.Body != "" {
				fmt.Fprintln(out)
				for _, line := range strings.Split(commit.Body, "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}
}

func appIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "app-id <ref>",
		Short:   "Print the application id of a ref",
		Example: "  arbor app-id app/org.example.App/x86_64/stable",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.AppIDFromRef(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
