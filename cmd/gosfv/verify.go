package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/config"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <checksum-file>",
	Short: "Verify files against a checksum file",
	Long: `Verify files against a checksum file of "<digest>  <path>" lines, as
produced by "gosfv compute" (and by md5sum, sha256sum and friends).
Relative paths resolve against the checksum file's directory.

The algorithm is taken from the digest width when unambiguous; use
--algorithm for the 16-byte case, where md5 and xxh3 collide.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// expectation is one parsed checksum line.
type expectation struct {
	path string
	hex  string
}

func runVerify(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	expectations, err := parseChecksumFile(args[0])
	if err != nil {
		return err
	}
	if len(expectations) == 0 {
		printInfo("nothing to verify")
		return nil
	}

	alg, err := resolveAlgorithm(cfg, expectations)
	if err != nil {
		return err
	}

	items := make([]*types.WorkItem, len(expectations))
	for i, exp := range expectations {
		size := int64(0)
		if info, err := os.Stat(exp.path); err == nil {
			size = info.Size()
		}
		items[i] = types.NewWorkItem(exp.path, size)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, closeCache := buildEngine(cfg, alg)
	defer closeCache()

	res := eng.Process(ctx, items)

	var ok, bad, missing, failed int
	for i, item := range items {
		status := verify.Judge(item, expectations[i].hex)
		switch status {
		case verify.StatusOK:
			ok++
		case verify.StatusBad:
			bad++
		case verify.StatusMissing:
			missing++
		default:
			failed++
		}
		if status != verify.StatusOK || getVerbose() {
			printInfo("%s: %s", item.Path, status.String())
		}
	}
	printInfo("%d OK, %d bad, %d missing, %d errors (%s, %s)",
		ok, bad, missing, failed, alg.String(), res.Elapsed.Round(resolution))

	if bad+missing+failed > 0 {
		return fmt.Errorf("verification failed for %d of %d files", bad+missing+failed, len(items))
	}
	return nil
}

// parseChecksumFile reads "<hex>  <path>" lines. Blank lines and lines
// starting with '#' or ';' (SFV comments) are skipped.
func parseChecksumFile(path string) ([]expectation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	baseDir := filepath.Dir(path)

	var expectations []expectation
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		hexPart, pathPart, found := strings.Cut(line, " ")
		if !found {
			return nil, fmt.Errorf("%s:%d: malformed line", path, lineNo)
		}
		// md5sum uses two spaces (or " *" for binary mode).
		pathPart = strings.TrimPrefix(strings.TrimSpace(pathPart), "*")
		if pathPart == "" {
			return nil, fmt.Errorf("%s:%d: missing path", path, lineNo)
		}
		if !filepath.IsAbs(pathPart) {
			pathPart = filepath.Join(baseDir, pathPart)
		}

		expectations = append(expectations, expectation{path: pathPart, hex: strings.ToLower(hexPart)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return expectations, nil
}

// resolveAlgorithm picks the algorithm from the explicit flag when given,
// otherwise infers it from the digest width of the first entry. The
// configured default cannot be used blindly: a sha256 sum file must not be
// verified as xxh3 just because that is the compute-side default.
func resolveAlgorithm(cfg *config.Config, expectations []expectation) (types.Algorithm, error) {
	if rootCmd.PersistentFlags().Changed("algorithm") {
		return cfg.ParsedAlgorithm(), nil
	}

	width := len(expectations[0].hex) / 2
	var candidates []types.Algorithm
	for _, alg := range types.Algorithms() {
		if alg.DigestSize() == width {
			candidates = append(candidates, alg)
		}
	}
	switch len(candidates) {
	case 0:
		return 0, fmt.Errorf("no algorithm produces %d-byte digests", width)
	case 1:
		return candidates[0], nil
	default:
		return 0, fmt.Errorf("digest width %d bytes is ambiguous, pass --algorithm", width)
	}
}
