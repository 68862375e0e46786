package cmd

import (
	"fmt"
	"os"
	"strings"

	// Subcommands
	cache "github.com/cozy-creator/theme-manager/cmd/themes/cache"
	download "github.com/cozy-creator/theme-manager/cmd/themes/download"
	manage "github.com/cozy-creator/theme-manager/cmd/themes/manage"
	preview "github.com/cozy-creator/theme-manager/cmd/themes/preview"
	"github.com/cozy-creator/theme-manager/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const themesPrefix = "THEMES"

var Cmd = &cobra.Command{
	Use:   "themes",
	Short: "Theme manager CLI",
	Long:  "Download, install and activate menu themes, and manage the preview image cache",

	SilenceUsage: true,

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set global viper options
		viper.SetEnvPrefix(themesPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`, // convert hyphens to underscores
			`.`, `_`, // convert dots to underscores
		))
		viper.AutomaticEnv()

		// Bind all flags from the current command persistent parent flags
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		// Load config and env files
		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("themes-home", "", "Path to the theme manager home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")
	pflags.String("environment", "", "Environment configuration; \"prod\" switches to JSON logs")

	// Bind flags to viper
	viper.BindPFlag("themes_home", pflags.Lookup("themes-home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))
	viper.BindPFlag("environment", pflags.Lookup("environment"))

	// Add subcommands
	Cmd.AddCommand(download.Cmd, preview.Cmd, cache.Cmd)
	Cmd.AddCommand(manage.Cmds...)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
