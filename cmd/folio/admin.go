package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oriys/folio/internal/admin"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/optimistic"
	"github.com/spf13/cobra"
)

var adminTimeout time.Duration

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Edit content through the admin surface",
	}
	cmd.PersistentFlags().DurationVar(&adminTimeout, "timeout", 30*time.Second, "Time allowed for the mutation round trip")

	cmd.AddCommand(adminStatusCmd(), adminItemCmd(), adminDocCmd())
	return cmd
}

// runAdmin mounts the admin surface and, when the session is authenticated,
// makes sure the target store has loaded before fn mutates it.
func runAdmin(cmd *cobra.Command, target string, fn func(ctx context.Context, a *app, d domain.Domain) ([]byte, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()

	return withApp(ctx, func(a *app) error {
		if err := a.surface.Mount(ctx); err != nil {
			if loc, ok := admin.IsRedirect(err); ok {
				return fmt.Errorf("not signed in: log in at %s", loc)
			}
			return err
		}

		e, err := a.entity(target)
		if err != nil {
			return err
		}
		e.Fetch(ctx)

		doc, err := fn(ctx, a, e.Domain())
		var rb *optimistic.RollbackError
		if errors.As(err, &rb) {
			p := a.printer()
			p.SetWriter(os.Stderr)
			p.Warning("%s %s rolled back (mutation %s)", rb.Store, rb.Kind, rb.MutationID)
			return rb.Err
		}
		if err != nil {
			return err
		}
		return a.printer().PrintDocument(doc)
	})
}

func adminStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Mount the admin surface and show every store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()

			return withApp(ctx, func(a *app) error {
				if err := a.surface.Mount(ctx); err != nil {
					if loc, ok := admin.IsRedirect(err); ok {
						return fmt.Errorf("not signed in: log in at %s", loc)
					}
					return err
				}
				a.registry.FetchAll(ctx)
				return a.printer().PrintStatuses(statusRows(a.registry.Entities()))
			})
		},
	}
}

func adminItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Mutate items of a collection (projects, skills, blog, testimonials)",
	}

	var addFile string
	add := &cobra.Command{
		Use:   "add <domain> [json]",
		Short: "Create an item",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(args[1:], addFile)
			if err != nil {
				return err
			}
			return runAdmin(cmd, args[0], func(ctx context.Context, a *app, d domain.Domain) ([]byte, error) {
				return a.registry.CreateItem(ctx, d, body)
			})
		},
	}
	add.Flags().StringVarP(&addFile, "file", "f", "", "Read the item from a file (- for stdin)")

	var updateFile string
	update := &cobra.Command{
		Use:   "update <domain> <id> [json]",
		Short: "Replace an item",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(args[2:], updateFile)
			if err != nil {
				return err
			}
			return runAdmin(cmd, args[0], func(ctx context.Context, a *app, d domain.Domain) ([]byte, error) {
				return a.registry.UpdateItem(ctx, d, args[1], body)
			})
		},
	}
	update.Flags().StringVarP(&updateFile, "file", "f", "", "Read the item from a file (- for stdin)")

	del := &cobra.Command{
		Use:   "delete <domain> <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, args[0], func(ctx context.Context, a *app, d domain.Domain) ([]byte, error) {
				return a.registry.DeleteItem(ctx, d, args[1])
			})
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <domain> <id>...",
		Short: "Set the display order of every item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, args[0], func(ctx context.Context, a *app, d domain.Domain) ([]byte, error) {
				return a.registry.ReorderItems(ctx, d, args[1:])
			})
		},
	}

	cmd.AddCommand(add, update, del, reorder)
	return cmd
}

func adminDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Replace single-document content (hero, about, resume, settings)",
	}

	var file string
	set := &cobra.Command{
		Use:   "set <domain> [json]",
		Short: "Replace a document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(args[1:], file)
			if err != nil {
				return err
			}
			return runAdmin(cmd, args[0], func(ctx context.Context, a *app, d domain.Domain) ([]byte, error) {
				return a.registry.ReplaceDocument(ctx, d, body)
			})
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "Read the document from a file (- for stdin)")

	cmd.AddCommand(set)
	return cmd
}

// readBody returns the inline JSON argument or the contents of file.
func readBody(inline []string, file string) ([]byte, error) {
	if len(inline) > 0 {
		if file != "" {
			return nil, errors.New("pass either inline JSON or --file, not both")
		}
		return []byte(inline[0]), nil
	}
	if file == "" {
		return nil, errors.New("missing JSON body: pass it inline or with --file")
	}
	f, err := stdinOr(file)
	if err != nil {
		return nil, err
	}
	if f != os.Stdin {
		defer f.Close()
	}
	return io.ReadAll(f)
}
