package manage

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cozy-creator/theme-manager/cmd/themes/cmdutil"
	"github.com/cozy-creator/theme-manager/internal/app"
	"github.com/cozy-creator/theme-manager/internal/services/installer"
	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/jsonutil"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// Cmds are the commands that work on already downloaded themes.
var Cmds = []*cobra.Command{installCmd, uninstallCmd, activateCmd, listCmd, regionCmd}

var installCmd = &cobra.Command{
	Use:   "install <theme-folder>",
	Short: "Patch an extracted theme folder and record it as installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		meta := types.ThemeMetadata{}
		if err := jsonutil.ReadFile(filepath.Join(folder, types.ThemeMetadataFile), &meta); err != nil {
			return fmt.Errorf("failed to read theme metadata: %w", err)
		}
		if meta.ID == "" {
			return fmt.Errorf("%s has no theme id", types.ThemeMetadataFile)
		}
		if meta.Name == "" {
			meta.Name = filepath.Base(folder)
		}

		a, err := cmdutil.NewApp(app.WithInstaller(nil))
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Installer().Install(cmd.Context(), folder, meta.ID, meta.Name, meta.Author)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Patched %d of %d artifacts\n", result.Record.PatchedFiles, result.Total)
		for _, failure := range result.Failures {
			fmt.Fprintf(out, "  skipped %s: %v\n", failure.Path, failure.Err)
		}

		if activate, _ := cmd.Flags().GetBool("activate"); activate && !result.Failed() {
			name, err := a.Installer().Activate(meta.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Active theme is now %q\n", name)
		}

		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <theme-id>",
	Short: "Remove an installed theme and its registry entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cmdutil.NewApp(app.WithInstaller(nil))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Installer().Uninstall(args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", args[0])
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <theme-id>",
	Short: "Select a theme in the plugin config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cmdutil.NewApp(app.WithInstaller(nil))
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Installer().Activate(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Active theme is now %q\n", name)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cmdutil.NewApp(app.WithInstaller(nil))
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Installer().Installed()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No themes installed")
			return nil
		}

		active, _ := a.Installer().ActiveTheme()

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tAUTHOR\tPATCHED\tINSTALLED")
		for _, rec := range records {
			marker := ""
			if rec.FolderName() == active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				marker, rec.ThemeID, rec.ThemeName, rec.ThemeAuthor, rec.PatchedFiles, installedAgo(rec))
		}

		return w.Flush()
	},
}

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Show the console region derived from the menu title id",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cmdutil.NewApp(app.WithInstaller(nil))
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintln(cmd.OutOrStdout(), a.Installer().Region())
		return nil
	},
}

func init() {
	installCmd.Flags().Bool("activate", false, "Select the theme in the plugin config once installed")
}

func installedAgo(rec *installer.Record) string {
	info, err := os.Stat(rec.InstallPath)
	if err != nil {
		return "-"
	}

	return humanize.RelTime(info.ModTime(), time.Now(), "ago", "from now")
}
