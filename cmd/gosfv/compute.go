package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/cache"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/config"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/engine"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/progress"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// resolution rounds reported elapsed times for display.
const resolution = 10 * time.Millisecond

var computeCmd = &cobra.Command{
	Use:   "compute [paths...]",
	Short: "Compute checksums for files and directories",
	Long: `Compute checksums for the given files and directories (recursively).
Output is one "<digest>  <path>" line per file, suitable for later
verification with "gosfv verify".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)
}

func runCompute(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	alg := cfg.ParsedAlgorithm()

	items, err := collectItems(args, cfg.Exclude)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printInfo("no files to process")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, closeCache := buildEngine(cfg, alg)
	defer closeCache()

	res := eng.Process(ctx, items)

	for _, item := range items {
		switch item.State() {
		case types.StateDone:
			fmt.Printf("%s  %s\n", item.Digest().Hex(), item.Path)
		case types.StateFailed:
			printError("%s: %v", item.Path, item.Err())
		case types.StateCancelled:
			printError("%s: cancelled", item.Path)
		}
	}
	printInfo("%d hashed (%s), %d failed, %d cancelled (%s, %s)",
		res.Completed, types.FormatSize(res.Bytes), res.Failed, res.Cancelled,
		alg.String(), res.Elapsed.Round(resolution))

	if res.Failed > 0 || res.Cancelled > 0 {
		return fmt.Errorf("%d files not hashed", res.Failed+res.Cancelled)
	}
	return nil
}

// buildEngine assembles an engine from the validated configuration. The
// returned func closes the digest cache, if one was opened.
func buildEngine(cfg *config.Config, alg types.Algorithm) (*engine.Engine, func()) {
	opts := engine.Options{
		Algorithm:          alg,
		FlashWorkers:       cfg.Workers.Flash,
		LargeFileThreshold: cfg.ParsedLargeFileThreshold(),
		BufferSize:         cfg.ParsedBufferSize(),
	}

	if viper.GetBool("progress") && !getQuiet() {
		opts.OnProgress = progress.Func(func(path string, percent float64) {
			fmt.Fprintf(os.Stderr, "\r%s: %5.1f%%", path, percent)
		})
	}

	closeCache := func() {}
	if cfg.Cache.Enabled && !viper.GetBool("no_cache") {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			printError("digest cache unavailable, continuing without: %v", err)
		} else {
			opts.Cache = c
			closeCache = func() { _ = c.Close() }
		}
	}

	return engine.New(opts), closeCache
}
