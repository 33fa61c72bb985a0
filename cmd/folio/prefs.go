package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write visitor preferences",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show every preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				return printPrefs(a)
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set a preference (theme, locale, intro-played)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.registry.Prefs.Set(args[0], args[1]); err != nil {
					return err
				}
				return printPrefs(a)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget every stored preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				a.registry.Prefs.Reset()
				a.printer().Success("preferences reset")
				return nil
			})
		},
	}

	cmd.AddCommand(get, set, reset)
	return cmd
}

func printPrefs(a *app) error {
	p := a.registry.Prefs.Get()
	return a.printer().PrintKeyValues(p, [][2]string{
		{"theme", string(p.Theme)},
		{"locale", p.Locale},
		{"intro-played", strconv.FormatBool(p.IntroPlayed)},
	})
}
