package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oriys/folio/internal/entity"
	"github.com/oriys/folio/internal/query"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load every store and show its lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withApp(ctx, func(a *app) error {
				a.registry.FetchAll(ctx)
				return a.printer().PrintStatuses(statusRows(a.registry.Entities()))
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time to wait for every store to settle")
	return cmd
}

func showCmd() *cobra.Command {
	var (
		timeout time.Duration
		where   string
	)

	cmd := &cobra.Command{
		Use:   "show <domain>",
		Short: "Load one store and print its snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withApp(ctx, func(a *app) error {
				e, err := a.entity(args[0])
				if err != nil {
					return err
				}
				e.Fetch(ctx)
				warnFailed(a, e)
				return printSnapshot(a, e, where)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Fetch timeout")
	cmd.Flags().StringVarP(&where, "where", "w", "", `Filter collection items, e.g. 'published && "go" in tags'`)
	return cmd
}

func retryCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "retry <domain>",
		Short: "Invalidate one store and fetch it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withApp(ctx, func(a *app) error {
				e, err := a.entity(args[0])
				if err != nil {
					return err
				}
				if err := a.registry.Retry(ctx, e.Domain()); err != nil {
					return err
				}
				if err := a.printer().PrintStatuses(statusRows([]entity.Entity{e})); err != nil {
					return err
				}
				if st := e.State(); st.LastError != nil {
					return fmt.Errorf("%s: %w", e.Domain(), st.LastError)
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Fetch timeout")
	return cmd
}

func warnFailed(a *app, e entity.Entity) {
	if st := e.State(); st.LastError != nil {
		p := a.printer()
		p.SetWriter(os.Stderr)
		p.Warning("%s failed to load: %v", e.Domain(), st.LastError)
	}
}

func printSnapshot(a *app, e entity.Entity, where string) error {
	raw, err := e.MarshalSnapshot()
	if err != nil {
		return err
	}
	if where != "" {
		if raw, err = query.Filter(raw, where); err != nil {
			return err
		}
	}
	return a.printer().PrintDocument(raw)
}
