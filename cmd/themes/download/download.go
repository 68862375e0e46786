package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/cozy-creator/theme-manager/cmd/themes/cmdutil"
	"github.com/cozy-creator/theme-manager/internal/app"
	"github.com/cozy-creator/theme-manager/internal/services/orchestrator"
	"github.com/cozy-creator/theme-manager/internal/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// progressScale is the bar total; job progress is a fraction of it.
const progressScale = 1000

var Cmd = &cobra.Command{
	Use:   "download <theme-id> <url>",
	Short: "Download, install and optionally activate a theme",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownload,
}

func init() {
	flags := Cmd.Flags()

	flags.String("name", "", "Display name of the theme; defaults to the theme id")
	flags.String("author", "", "Author of the theme")
	flags.Bool("activate", false, "Select the theme in the plugin config once installed")
	flags.Bool("no-progress", false, "Do not render a progress bar")
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	author, _ := flags.GetString("author")
	activate, _ := flags.GetBool("activate")
	quiet, _ := flags.GetBool("no-progress")

	theme := types.Theme{ID: args[0], DownloadURL: args[1], Name: name, Author: author}
	if theme.Name == "" {
		theme.Name = theme.ID
	}

	a, err := cmdutil.NewApp(app.WithInstaller(nil), app.WithOrchestrator(activate))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cmdutil.SignalContext(cmd.Context())
	defer stop()

	orch := a.Orchestrator()
	var final orchestrator.Event
	onEvent := func(e orchestrator.Event) {
		if e.Phase.Terminal() {
			final = e
		}
	}

	started := time.Now()
	if err := orch.Download(theme, onEvent); err != nil {
		return err
	}

	var bar *mpb.Bar
	var progress *mpb.Progress
	if !quiet {
		progress = mpb.New(
			mpb.WithWidth(60),
			mpb.WithRefreshRate(180*time.Millisecond),
			mpb.WithOutput(cmd.OutOrStdout()),
		)
		bar = progress.AddBar(progressScale,
			mpb.PrependDecorators(
				decor.Name(theme.Name, decor.WC{W: 30, C: decor.DidentRight}),
				decor.Any(func(decor.Statistics) string {
					return orch.Status(theme.ID).Phase.String()
				}, decor.WC{W: 12}),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WC{W: 5}),
				decor.Name(" | "),
				decor.Elapsed(decor.ET_STYLE_GO),
			),
		)
	}

	err = cmdutil.Drive(ctx, a, func() bool {
		status := orch.Status(theme.ID)
		if bar != nil {
			bar.SetCurrent(int64(status.Progress * progressScale))
		}
		return status.Phase.Terminal()
	})
	if err != nil {
		orch.Cancel(theme.ID)
	}

	status := orch.Status(theme.ID)
	if bar != nil {
		if status.Phase == orchestrator.PhaseInstalled {
			bar.SetCurrent(progressScale)
		} else {
			bar.Abort(false)
		}
		progress.Wait()
	}

	switch status.Phase {
	case orchestrator.PhaseInstalled:
	case orchestrator.PhaseCancelled:
		return fmt.Errorf("download of %s cancelled", theme.ID)
	default:
		if status.Err == nil {
			status.Err = errors.New("download did not finish")
		}
		return status.Err
	}

	result := final.Result
	if result == nil {
		result = orch.Result(theme.ID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Installed %s in %s\n", theme.Name, time.Since(started).Round(time.Millisecond))
	if result != nil {
		fmt.Fprintf(out, "  patched %d of %d artifacts into %s\n",
			result.Record.PatchedFiles, result.Total, result.Record.InstallPath)
		for _, failure := range result.Failures {
			fmt.Fprintf(out, "  skipped %s: %v\n", failure.Path, failure.Err)
		}
	}
	if final.ActiveFolder != "" {
		fmt.Fprintf(out, "  active theme is now %q\n", final.ActiveFolder)
	}

	if space, err := a.SpaceChecker().Available(a.Config().CacheDir); err == nil {
		fmt.Fprintf(out, "  %s free in %s\n", humanize.IBytes(space), a.Config().CacheDir)
	}

	return nil
}
