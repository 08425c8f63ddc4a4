package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yeardash/internal/config"
	"yeardash/internal/session"
)

var themeCmd = &cobra.Command{
	Use:       "theme [toggle|dark|light]",
	Short:     "Show or change the saved display theme",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"toggle", string(session.ThemeDark), string(session.ThemeLight)},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		holder := session.New(session.NewFileThemeStore(cfg.ThemeFile))

		if len(args) == 1 {
			var err error
			switch args[0] {
			case "toggle":
				_, err = holder.ToggleTheme()
			default:
				err = holder.SetTheme(session.Theme(args[0]))
			}
			if err != nil {
				return fmt.Errorf("save theme: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), holder.Snapshot().Theme)
		return nil
	},
}
