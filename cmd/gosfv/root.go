package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/config"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "gosfv",
		Short: "Bulk file checksums tuned to the storage medium",
		Long: `gosfv computes and verifies file checksums in bulk, adapting its I/O
concurrency to the drive underneath: one worker per spinning disk or
network mount, a bounded pool per flash device.

Examples:
  gosfv compute .                    # Checksum a tree with the default algorithm
  gosfv compute -a sha256 ./release  # Pick an algorithm
  gosfv verify sums.txt              # Verify previously computed checksums
  gosfv classify /mnt/archive        # Show how a path's drive is classified`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/gosfv/config.yaml)")
	rootCmd.PersistentFlags().StringP("algorithm", "a", "", "digest algorithm (xxh3, xxh64, crc32, md5, sha1, sha256)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "worker pool size for flash drives (0=auto)")
	rootCmd.PersistentFlags().StringSliceP("exclude", "e", nil, "exclude patterns (repeatable)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the digest cache")
	rootCmd.PersistentFlags().Bool("progress", false, "report per-file progress for large files")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("algorithm", rootCmd.PersistentFlags().Lookup("algorithm"))
	_ = viper.BindPFlag("workers.flash", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig binds config file locations, environment variables and
// defaults onto the global viper; commands load from it via loadConfig.
func initConfig() {
	config.Bind(viper.GetViper(), cfgFile)
}

// initLogging wires the logging package to the configured level and path.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		return
	}
	level := cfg.Logging.Level
	if getVerbose() {
		level = "debug"
	}
	_ = logging.Init(logging.Config{
		Level:      level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
	})
}

// loadConfig loads the effective configuration (file, environment, bound
// flags) through the config package.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()
	return rootCmd.Execute()
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message unless quiet mode is enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
