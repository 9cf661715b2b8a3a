package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/james-see/handsplit/pkg/api"
	"github.com/james-see/handsplit/pkg/batch"
	"github.com/james-see/handsplit/pkg/instrument"
	"github.com/james-see/handsplit/pkg/ledger"
	"github.com/james-see/handsplit/pkg/performance"
	"github.com/james-see/handsplit/pkg/splitter"
	"github.com/james-see/handsplit/pkg/tui"
	"github.com/spf13/cobra"
)

func newSplitter() *splitter.Splitter {
	return splitter.New(splitter.Options{SplitPoint: cfg.Split.SplitPoint}, logger)
}

func fileOptions() splitter.FileOptions {
	return splitter.FileOptions{
		OutputDir:    cfg.Split.OutputDir,
		SimpleSuffix: cfg.Split.SimpleSuffix,
		SmartSuffix:  cfg.Split.SmartSuffix,
	}
}

// openLedger returns nil when the ledger is disabled
func openLedger() (*ledger.Ledger, error) {
	if !cfg.Ledger.Enabled {
		return nil, nil
	}
	return ledger.Open(cfg.Ledger.LedgerPath())
}

func record(ctx context.Context, l *ledger.Ledger, fr *splitter.FileResult) {
	if l == nil {
		return
	}
	for _, e := range ledger.FromSplit(fr) {
		if _, err := l.Record(ctx, e); err != nil {
			logger.Warn("failed to record split", "source", fr.Source, "error", err)
		}
	}
}

func printResult(fr *splitter.FileResult) {
	fmt.Printf("Split %s\n", fr.Source)
	if c := fr.Result.Centroids; c != nil {
		fmt.Printf("  centroids: %s\n", c)
	} else {
		fmt.Printf("  centroids: undefined (no notes)\n")
	}
	for _, out := range fr.Result.Outputs() {
		fmt.Printf("  %-6s -> %s (right %d, left %d, meta %d)\n",
			out.Variant, fr.Path(out.Variant), out.Stats.Right, out.Stats.Left, out.Stats.Meta)
	}
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := newSplitter()

	l, err := openLedger()
	if err != nil {
		return err
	}
	if l != nil {
		defer l.Close()
	}

	conflicts := batch.Conflicts(args, fileOptions().Outputs)

	var failed int
	for _, input := range args {
		err := conflicts[input]
		var fr *splitter.FileResult
		if err == nil {
			fr, err = s.SplitFile(ctx, input, fileOptions())
		}
		if err != nil {
			logger.Error("split failed", "file", input, "error", err)
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", input, err)
			failed++
			continue
		}
		printResult(fr)
		record(ctx, l, fr)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := args[0]

	n := cfg.Batch.Workers
	if workers > 0 {
		n = workers
	}

	skip := []string{cfg.Split.SimpleSuffix, cfg.Split.SmartSuffix, instrument.DefaultSuffix}
	files, err := batch.Discover(root, cfg.Batch.Extensions, skip, cfg.Batch.MaxFiles)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No MIDI files found under %s\n", root)
		return nil
	}

	l, err := openLedger()
	if err != nil {
		return err
	}
	if l != nil {
		defer l.Close()
	}

	logger.Info("batch started", "root", root, "files", len(files), "workers", n)
	s := newSplitter()
	outcomes := batch.SplitAll(ctx, s, files, n, fileOptions())

	for _, o := range outcomes {
		if o.Err != nil {
			logger.Warn("file failed", "file", o.Path, "error", o.Err)
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", o.Path, o.Err)
			continue
		}
		printResult(o.Value)
		record(ctx, l, o.Value)
	}

	failed := batch.Failed(outcomes)
	fmt.Printf("\n%d split, %d failed\n", len(outcomes)-len(failed), len(failed))
	logger.Info("batch finished", "root", root, "ok", len(outcomes)-len(failed), "failed", len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(failed), len(outcomes))
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	p, err := performance.ReadFile(args[0])
	if err != nil {
		return err
	}

	a, err := newSplitter().Analyze(p)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	fmt.Printf("File:       %s\n", args[0])
	fmt.Printf("Resolution: %d ticks/quarter\n", a.Resolution)
	fmt.Printf("Tracks:     %d\n", a.Tracks)
	fmt.Printf("Events:     %d\n", a.Events)
	fmt.Printf("Notes:      %d\n", a.Onsets)
	if a.Centroids == nil {
		fmt.Printf("Centroids:  undefined, split point %d is used\n", cfg.Split.SplitPoint)
		return nil
	}
	fmt.Printf("Range:      %d-%d\n", a.MinPitch, a.MaxPitch)
	fmt.Printf("Centroids:  %s (midpoint %.1f)\n", a.Centroids, a.Centroids.Midpoint())
	return nil
}

func runInstrument(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, err := instrument.ChangeFile(input, outputFile, program)
	if err != nil {
		return err
	}
	logger.Info("program changed", "file", input, "output", output, "program", program)
	fmt.Printf("Converted %s -> %s (program %d)\n", input, output, program)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := cfg.Ledger.LedgerPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Println("No splits recorded yet (enable ledger.enabled to record them)")
		return nil
	}

	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tVARIANT\tRIGHT\tLEFT\tCENTROIDS\tOUTPUT")
	for _, e := range entries {
		centroids := "-"
		if e.CentroidLow != nil && e.CentroidHigh != nil {
			centroids = fmt.Sprintf("%.1f/%.1f", *e.CentroidLow, *e.CentroidHigh)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			filepath.Base(e.Source), e.Variant, e.RightEvents, e.LeftEvents, centroids, e.OutputPath)
	}
	return w.Flush()
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(tui.Options{
		Splitter:    newSplitter(),
		FileOptions: fileOptions(),
		Program:     instrument.DefaultProgram,
		Extensions:  cfg.Batch.Extensions,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	port := cfg.Server.Port
	if serverPort > 0 {
		port = serverPort
	}
	fmt.Printf("Starting API server on port %d...\n", port)
	return api.StartServer(port, api.Options{SplitPoint: cfg.Split.SplitPoint, Logger: logger})
}
