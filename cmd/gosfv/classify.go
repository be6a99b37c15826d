package main

import (
	"github.com/spf13/cobra"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/storage"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <path>",
	Short: "Show how a path's storage is classified",
	Long: `Classify the storage device backing a path as rotational, flash or
network, and print the query trail that led to the verdict. This is the
same classification the engine uses to pick its concurrency strategy.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(_ *cobra.Command, args []string) error {
	classifier := storage.NewClassifier(nil)
	cl := classifier.Classify(args[0])

	printInfo("root:    %s", cl.Root)
	printInfo("verdict: %s", cl.Verdict.String())
	if getVerbose() {
		for _, step := range cl.Trail {
			printInfo("  - %s", step)
		}
	}
	return nil
}
