package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/llehouerou/vidflut/internal/app"
	"github.com/llehouerou/vidflut/internal/config"
	"github.com/llehouerou/vidflut/internal/errmsg"
	"github.com/llehouerou/vidflut/internal/logging"
)

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <input>",
		Short: "Stream a video to a Pixelflut canvas",
		Long: `Stream a video, or a directory of images, to a Pixelflut canvas.

Settings are read from the config file and can be overridden by flags.
Named targets from the config are selected with --target.

Examples:
  vidflut play bad-apple.mp4 --host 10.0.0.5:1337
  vidflut play clip.webm --target club --width 320 --jit
  vidflut play frames/ --host localhost --fps 12 -a budget -l 64`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flagOverrides(cmd.Flags())
			if len(args) == 1 {
				overrides["input"] = args[0]
			}
			return runPlay(overrides)
		},
	}

	f := cmd.Flags()
	f.String("host", "", "Pixelflut server address (host:port)")
	f.StringP("target", "t", "", "Named target from the config file")
	f.StringP("protocol", "p", "", "Wire protocol: plaintext, bin-flutties or bin-flurry")
	f.IntP("canvas", "c", 0, "Canvas id for the binary protocols")
	f.IntP("x-offset", "x", 0, "Horizontal offset on the canvas")
	f.IntP("y-offset", "y", 0, "Vertical offset on the canvas")
	f.Int("width", 0, "Output width (0 keeps the aspect ratio)")
	f.Int("height", 0, "Output height (0 keeps the aspect ratio)")
	f.Float64("fps", 0, "Output frame rate (0 uses the video's)")
	f.StringP("compression-level", "l", "", "none, low, medium, high, extreme, or a budget in 1024 pixels per second")
	f.StringP("compression-algorithm", "a", "", "threshold or budget")
	f.Int("aot-frame-group-size", 0, "Frames per independently compressed chunk")
	f.Int("compress-threads", 0, "Concurrent compression workers")
	f.Int("send-threads", 0, "Concurrent send workers")
	f.Int("send-batch-size", 0, "Pixels per write")
	f.Bool("jit", false, "Compress each frame just before sending it")
	f.Bool("loop", true, "Restart the video when it ends")
	f.Bool("debug", false, "Show the selected pixels on a gray canvas")
	f.Bool("nocache", false, "Extract the frames again even if cached")
	f.String("cache-dir", "", "Frame cache directory")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// flagOverrides returns the explicitly set flags as config keys.
func flagOverrides(flags *pflag.FlagSet) map[string]any {
	overrides := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		overrides[strings.ReplaceAll(f.Name, "-", "_")] = f.Value.String()
	})
	return overrides
}

func runPlay(overrides map[string]any) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		info("Edit the config file at [%s] to fix the problem.", hintStyle.Render(config.Path()))
		return errmsg.Wrap(errmsg.OpConfigLoad, err)
	}
	if err := logging.Setup(cfg.LogLevel, os.Stderr); err != nil {
		return err
	}
	if err := cfg.ResolveTarget(); err != nil {
		return errmsg.Wrap(errmsg.OpConfigValidate, err)
	}
	if err := cfg.Validate(); err != nil {
		return errmsg.Wrap(errmsg.OpConfigValidate, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info("Playing %s on %s", cfg.Input, cfg.Addr())
	return app.New(cfg, app.Options{Progress: os.Stderr}).Run(ctx)
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the extracted frame cache",
	}

	var dir string
	clean := &cobra.Command{
		Use:   "clean",
		Short: "Delete the extracted frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := config.Load(nil)
				if err != nil {
					return errmsg.Wrap(errmsg.OpConfigLoad, err)
				}
				dir = cfg.CacheDir
			}
			cleaned, err := app.CleanCache(dir)
			if err != nil {
				return err
			}
			info("Removed %s", cleaned)
			return nil
		},
	}
	clean.Flags().StringVar(&dir, "cache-dir", "", "Frame cache directory")

	cmd.AddCommand(clean)
	return cmd
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}

			fmt.Printf("vidflut %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Built:      %s\n", date)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
