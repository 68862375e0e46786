package cache

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cozy-creator/theme-manager/cmd/themes/cmdutil"
	"github.com/cozy-creator/theme-manager/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the preview image cache",
}

func init() {
	setupCacheCmd(Cmd)
}

func setupCacheCmd(cmd *cobra.Command) {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached preview image",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cmdutil.NewApp(app.WithTransferScheduler(), app.WithImageCache(nil))
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Cache().DiskEntries()
			if err != nil {
				return err
			}

			if err := a.Cache().ClearDisk(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached images\n", len(entries))
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached preview images",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cmdutil.NewApp(app.WithTransferScheduler(), app.WithImageCache(nil))
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Cache().DiskEntries()
			if err != nil {
				return err
			}

			var total uint64
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOCATOR\tTYPE\tSIZE\tSTORED")
			for _, e := range entries {
				total += uint64(e.Size)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Locator, e.MIME, humanize.IBytes(uint64(e.Size)), humanize.RelTime(e.StoredAt, time.Now(), "ago", "from now"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d images, %s\n", len(entries), humanize.IBytes(total))
			return nil
		},
	}

	cmd.AddCommand(clearCmd, listCmd)
}
