package preview

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/theme-manager/cmd/themes/cmdutil"
	"github.com/cozy-creator/theme-manager/internal/app"
	"github.com/cozy-creator/theme-manager/internal/services/imagecache"
	"github.com/cozy-creator/theme-manager/internal/utils/imageutil"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "preview <locator>...",
	Short: "Fetch preview images through the cache and write them out",
	Long:  "Each locator is a http(s) URL, a file:// URL or a local path. Images are written to the output directory as PNG or JPEG.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPreview,
}

func init() {
	flags := Cmd.Flags()
	flags.StringP("output", "o", ".", "Directory to write images to")
	flags.String("format", "png", "Output format: png or jpg")
}

func runPreview(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	a, err := cmdutil.NewApp(app.WithTransferScheduler(), app.WithImageCache(nil))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cmdutil.SignalContext(cmd.Context())
	defer stop()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	results := make(map[string]imagecache.Texture, len(args))
	for _, locator := range args {
		a.Cache().RequestAsync(locator, false, func(locator string, texture imagecache.Texture) {
			results[locator] = texture
		})
	}

	if err := cmdutil.Drive(ctx, a, func() bool { return len(results) == len(args) }); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed []string
	for i, locator := range args {
		texture, ok := results[locator].(*imagecache.ImageTexture)
		if !ok || texture == nil {
			failed = append(failed, locator)
			fmt.Fprintf(out, "%s: unavailable\n", locator)
			continue
		}

		data, err := imageutil.EncodeImage(texture.Image, format)
		if err != nil {
			return err
		}

		name := filepath.Join(outDir, fmt.Sprintf("preview-%d.%s", i+1, strings.TrimPrefix(format, ".")))
		if err := os.WriteFile(name, data, 0644); err != nil {
			return err
		}

		size := texture.Size()
		fmt.Fprintf(out, "%s: %dx%d -> %s\n", locator, size.X, size.Y, name)
	}

	if len(failed) > 0 {
		return errors.New("some previews could not be loaded")
	}

	return nil
}
