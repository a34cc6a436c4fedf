package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"npmerge/pkg/merge"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var mergeFlags struct {
	configFile string
	extension  string
	range1     string
	range2     string
	probes     []int
}

var mergeCmd = &cobra.Command{
	Use:   "merge [dir1 dir2 output]",
	Short: "Merge matched recording pairs from two session directories",
	Long: `Merge discovers imec<N> probe folders under both session directories,
pairs their recording files by probe number and position, and concatenates
each pair (optionally restricted to a per-session time window) into the
output directory, merging sidecar metadata alongside.`,
	Args: cobra.RangeArgs(0, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(args)
		if err != nil {
			return err
		}

		merger, err := merge.New(*cfg, logger)
		if err != nil {
			return err
		}
		attachProgress(merger)

		results, err := merger.MergeMatchingFiles()
		finishProgress()
		if err != nil {
			return err
		}

		for _, r := range results {
			logger.Info("Merged pair",
				zap.String("probe", r.Probe),
				zap.String("output", r.Output),
				zap.Int64("bytesWritten", r.BytesWritten))
		}
		fmt.Printf("Merged %d file pair(s)\n", len(results))
		return nil
	},
}

// buildConfig assembles the merge configuration from the optional YAML job
// file and command-line arguments. Positional arguments and flags override
// the job file.
func buildConfig(args []string) (*merge.Config, error) {
	cfg := &merge.Config{}
	if mergeFlags.configFile != "" {
		loaded, err := merge.LoadConfig(mergeFlags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.Dir1 = args[0]
	}
	if len(args) > 1 {
		cfg.Dir2 = args[1]
	}
	if len(args) > 2 {
		cfg.OutputDir = args[2]
	}
	if mergeFlags.extension != "" {
		cfg.Extension = mergeFlags.extension
	}
	if len(mergeFlags.probes) > 0 {
		cfg.ProbeIndices = mergeFlags.probes
	}

	if mergeFlags.range1 != "" {
		r, err := parseTimeRange(mergeFlags.range1)
		if err != nil {
			return nil, fmt.Errorf("invalid --range1: %w", err)
		}
		cfg.Range1 = r
	}
	if mergeFlags.range2 != "" {
		r, err := parseTimeRange(mergeFlags.range2)
		if err != nil {
			return nil, fmt.Errorf("invalid --range2: %w", err)
		}
		cfg.Range2 = r
	}
	return cfg, nil
}

// parseTimeRange parses a "start:end" pair of seconds.
func parseTimeRange(s string) (*merge.TimeRange, error) {
	startStr, endStr, found := strings.Cut(s, ":")
	if !found {
		return nil, fmt.Errorf("expected start:end, got %q", s)
	}
	start, err := strconv.ParseFloat(startStr, 64)
	if err != nil {
		return nil, fmt.Errorf("bad start %q: %w", startStr, err)
	}
	end, err := strconv.ParseFloat(endStr, 64)
	if err != nil {
		return nil, fmt.Errorf("bad end %q: %w", endStr, err)
	}
	return &merge.TimeRange{Start: start, End: end}, nil
}

var progressActive bool

// attachProgress wires an interactive progress line when stderr is a
// terminal. In non-interactive runs progress stays out of the log stream.
func attachProgress(merger *merge.Merger) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	progressActive = true
	merger.SetProgress(func(written, planned int64) {
		if planned <= 0 {
			return
		}
		fmt.Fprintf(os.Stderr, "\rProgress: %.2f%%", float64(written)/float64(planned)*100)
	})
}

// finishProgress terminates the in-place progress line.
func finishProgress() {
	if progressActive {
		fmt.Fprintln(os.Stderr)
		progressActive = false
	}
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeFlags.configFile, "config", "c", "", "YAML job file describing the merge")
	mergeCmd.Flags().StringVarP(&mergeFlags.extension, "ext", "e", "", "Recording file extension to match (e.g. ap.bin)")
	mergeCmd.Flags().StringVar(&mergeFlags.range1, "range1", "", "Time window start:end in seconds for the first directory")
	mergeCmd.Flags().StringVar(&mergeFlags.range2, "range2", "", "Time window start:end in seconds for the second directory")
	mergeCmd.Flags().IntSliceVar(&mergeFlags.probes, "probes", nil, "Probe indices to scan (default 0,1,2,3)")

	RootCmd.AddCommand(mergeCmd)
}
