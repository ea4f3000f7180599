package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tidyframe/adapters/excel"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/autoclean"
	"tidyframe/internal/cleaning"
	"tidyframe/internal/formula"
	"tidyframe/internal/outlier"
	"tidyframe/internal/profiling"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tidyframe-cli",
		Short:         "Offline dataset cleaning with the tidyframe engines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newApplyCmd(),
		newAutoCleanCmd(),
		newStatsCmd(),
		newOutliersCmd(),
		newFormulaCmd(),
		newOperationsCmd(),
	)
	return rootCmd
}

func newApplyCmd() *cobra.Command {
	var op, params, out string

	cmd := &cobra.Command{
		Use:   "apply [input-file]",
		Short: "Apply one cleaning operation to a file",
		Long: `Apply a single cleaning operation with JSON parameters and write the result.

Example: tidyframe-cli apply data.csv --op rename_column --params '{"old_name":"a","new_name":"b"}' --out clean.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if op == "" {
				return fmt.Errorf("--op is required (see 'tidyframe-cli operations')")
			}
			return runApply(cmd.OutOrStdout(), args[0], op, params, out)
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Operation name")
	cmd.Flags().StringVar(&params, "params", "{}", "Operation parameters as JSON")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv, .tsv or .xlsx); CSV to stdout when empty")
	return cmd
}

func runApply(w io.Writer, in, op, params, out string) error {
	f, err := readInput(in)
	if err != nil {
		return err
	}

	res, err := cleaning.NewEngine(nil).Run(f, op, []byte(params))
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}

	status := w
	if out == "" {
		status = os.Stderr
	}
	fmt.Fprintln(status, res.Message)
	if !res.Modified {
		fmt.Fprintln(status, "Dataset unchanged.")
	}
	return writeOutput(w, res.Frame, out)
}

func newAutoCleanCmd() *cobra.Command {
	var config, out string

	cmd := &cobra.Command{
		Use:   "autoclean [input-file]",
		Short: "Run the auto-clean pipeline",
		Long: `Run the configured auto-clean pipeline and print the step summary.

Example: tidyframe-cli autoclean data.csv --config '{"case_change_method":"title"}' --out clean.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutoClean(cmd.OutOrStdout(), args[0], config, out)
		},
	}

	cmd.Flags().StringVar(&config, "config", "", "Auto-clean configuration as JSON; defaults when empty")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv, .tsv or .xlsx); CSV to stdout when empty")
	return cmd
}

func runAutoClean(w io.Writer, in, rawConfig, out string) error {
	f, err := readInput(in)
	if err != nil {
		return err
	}

	cfg := autoclean.DefaultConfig()
	if strings.TrimSpace(rawConfig) != "" {
		var rejected []string
		cfg, rejected = autoclean.Parse([]byte(rawConfig))
		if len(rejected) > 0 {
			fmt.Fprintf(os.Stderr, "Ignoring invalid config values: %s\n", strings.Join(rejected, ", "))
		}
	}

	start := time.Now()
	report, err := autoclean.NewPipeline(cleaning.NewEngine(nil)).Run(f, cfg)
	if err != nil {
		return fmt.Errorf("auto-clean failed: %w", err)
	}

	status := w
	if out == "" {
		status = os.Stderr
	}
	fmt.Fprintln(status, report.Summary)
	fmt.Fprintf(status, "%d steps applied, %d rows removed in %v\n",
		len(report.Applied()), report.RowsRemoved, time.Since(start).Round(time.Millisecond))
	return writeOutput(w, report.Frame, out)
}

func newStatsCmd() *cobra.Command {
	var sampleCap int

	cmd := &cobra.Command{
		Use:   "stats [input-file] [column]",
		Short: "Print column statistics as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readInput(args[0])
			if err != nil {
				return err
			}
			stats, err := profiling.ComputeFor(f, args[1], sampleCap)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().IntVar(&sampleCap, "sample-cap", 20, "Maximum unique and duplicate values listed")
	return cmd
}

func newOutliersCmd() *cobra.Command {
	var factor, threshold float64

	cmd := &cobra.Command{
		Use:   "outliers [input-file]",
		Short: "Print IQR and Z-score outlier bounds for every numeric column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readInput(args[0])
			if err != nil {
				return err
			}
			ranges, err := outlier.ComputeRanges(cmd.Context(), f, factor, threshold)
			if err != nil {
				return err
			}
			if len(ranges) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No numeric columns found for outlier range calculation.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), ranges)
		},
	}

	cmd.Flags().Float64Var(&factor, "iqr-factor", 1.5, "Additional IQR factor to include")
	cmd.Flags().Float64Var(&threshold, "zscore-threshold", 3.0, "Additional Z-score threshold to include")
	return cmd
}

func newFormulaCmd() *cobra.Command {
	var param, rows string

	cmd := &cobra.Command{
		Use:   "formula [input-file] [FORMULA] [column]",
		Short: "Evaluate a column formula",
		Long: `Evaluate a formula over a column, optionally limited to a 1-based inclusive row range.

Example: tidyframe-cli formula data.csv PERCENTILE price --param 90 --rows 1:500`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := formula.Request{Formula: args[1], Column: args[2], Parameter: param}
			var err error
			if req.RowStart, req.RowEnd, err = parseRows(rows); err != nil {
				return err
			}
			return runFormula(cmd.OutOrStdout(), args[0], req)
		},
	}

	cmd.Flags().StringVar(&param, "param", "", "Formula parameter (percentile, regex, separator)")
	cmd.Flags().StringVar(&rows, "rows", "", "Row range as start:end; either side may be empty")
	return cmd
}

func runFormula(w io.Writer, in string, req formula.Request) error {
	f, err := readInput(in)
	if err != nil {
		return err
	}
	res, err := formula.Apply(f, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s(%s) over %d rows = %s\n", res.Formula, res.Column, res.RowsUsed, res.Value)
	return nil
}

func newOperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the cleaning operations accepted by apply",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range cleaning.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

// parseRows reads "a:b", "a:" or ":b" into optional 1-based bounds
func parseRows(raw string) (*int, *int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil
	}
	start, end, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, nil, core.NewInvalidParameterError("--rows must look like start:end, got '%s'", raw)
	}
	a, err := optionalInt(start)
	if err != nil {
		return nil, nil, err
	}
	b, err := optionalInt(end)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func optionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, core.NewInvalidParameterError("row bound '%s' is not an integer", s)
	}
	return &n, nil
}

func readInput(path string) (*frame.Frame, error) {
	f, err := excel.NewDataReader(excel.DefaultReaderConfig(), nil).ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// writeOutput writes f to path, or as CSV to w when path is empty
func writeOutput(w io.Writer, f *frame.Frame, path string) error {
	writer := excel.NewDataWriter(excel.DefaultWriterConfig())
	if path == "" {
		return writer.Write(w, f, excel.FileTypeCSV)
	}

	fileType, err := excel.DetectFileType(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writer.Write(file, f, fileType); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "Wrote %d rows x %d columns to %s (%s)\n", f.NumRows(), f.NumCols(), path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
