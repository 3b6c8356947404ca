package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"spectrumlabel/internal/config"
	"spectrumlabel/internal/labeler"
	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/metrics"
	"spectrumlabel/internal/render"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/store"
	"spectrumlabel/internal/window"
)

func cmdPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	seed := fs.Uint64("seed", 0, "Override the planner seed")
	rejected := fs.Bool("v", false, "Print rejection counts by reason")
	fs.Parse(args)

	cfg := loadConfig()
	setupLogging(cfg)
	wc := cfg.WindowConfig()
	if *seed != 0 {
		wc.Seed = *seed
	}

	for _, path := range recordings(cfg, fs.Args()) {
		s, err := series.Load(context.Background(), path, cfg.LoadOptions())
		if err != nil {
			fatalf("%s: %v", path, err)
		}
		windows, stats, err := window.Plan(s.Index(), wc)
		s.Close()
		if err != nil {
			fatalf("%s: %v", path, err)
		}

		fmt.Printf("=== %s ===\n", path)
		fmt.Printf("Planner: %s\n\n", wc.Key())
		fmt.Printf("%-8s %-12s %-12s %-20s %-8s\n", "Ordinal", "Start Row", "End Row", "Start", "s/row")
		fmt.Println(strings.Repeat("-", 64))
		for i, w := range windows {
			fmt.Printf("%-8d %-12d %-12d %-20s %-8.3f\n",
				i, w.StartIndex, w.EndIndex, formatTime(w.StartTime), w.SecondsPerRow())
		}
		fmt.Printf("\nAccepted: %d  Rejected: %d\n", stats.Accepted, stats.Rejected)
		if *rejected {
			for reason, n := range stats.ByReason {
				fmt.Printf("  %-16s %d\n", reason.String(), n)
			}
		}
		fmt.Println()
	}
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	scriptPath := fs.String("script", "", "Gesture script (YAML); empty commits every window unlabeled")
	outDir := fs.String("o", "", "Output directory (default: output.directory)")
	noJournal := fs.Bool("no-journal", false, "Do not record or resume from the journal")
	fs.Parse(args)

	cfg := loadConfig()
	log := setupLogging(cfg)
	defer log.Close()

	var script *labeler.Script
	if *scriptPath != "" {
		var err error
		if script, err = labeler.LoadScript(*scriptPath); err != nil {
			fatalf("%v", err)
		}
	}

	opts := labeler.OptionsFromConfig(cfg)
	opts.Logger = log
	opts.Metrics = metrics.Default()
	if *outDir != "" {
		opts.OutputDir = *outDir
	}
	if cfg.Storage.Enabled && !*noJournal {
		j := openJournal(cfg)
		defer j.Close()
		opts.Journal = j
	}

	l, err := labeler.New(labeler.NewScriptPresenter(script, log.Logger), opts)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := l.Run(ctx, recordings(cfg, fs.Args()))
	for _, r := range results {
		fmt.Printf("%s -> %s (%d windows, %d resumed, %d events)\n",
			r.Recording, r.Output, r.Windows, r.Resumed, r.Events)
	}
	if cfg.Metrics.Path != "" {
		opts.Metrics.UpdateUptime()
		if merr := opts.Metrics.WriteFile(cfg.Metrics.Path); merr != nil {
			log.Warn("writing metrics", "path", cfg.Metrics.Path, "error", merr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted. Rerun to resume from the journal.")
			os.Exit(130)
		}
		fatalf("%v", err)
	}
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: <output.directory>/<prefix><recording>, - for stdout)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: spectrumlabel export [-o file] <recording>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg := loadConfig()
	j := openJournal(cfg)
	defer j.Close()

	fp, err := store.FingerprintFile(path)
	if err != nil {
		fatalf("%v", err)
	}
	ds, err := j.GetDataset(fp)
	if errors.Is(err, store.ErrNotFound) {
		fatalf("%s has not been labeled (fingerprint %s)", path, fp[:16])
	} else if err != nil {
		fatalf("%v", err)
	}

	key := labeler.ResumeKey(cfg.WindowConfig(), ds.FirstTime)
	windows, err := j.CommittedWindows(ds.ID, key)
	if err != nil {
		fatalf("%v", err)
	}
	if len(windows) == 0 {
		fatalf("no windows committed for planner %q", key)
	}

	entries := make([]labels.Entry, 0, len(windows))
	events := 0
	for _, w := range windows {
		entries = append(entries, labels.Entry{Window: w.Window, Records: w.Records})
		events += len(w.Records)
	}

	if *output == "-" {
		if err := labels.Write(os.Stdout, entries); err != nil {
			fatalf("%v", err)
		}
		return
	}
	dst := *output
	if dst == "" {
		dst = labels.OutputPath(cfg.Output.Directory, cfg.Output.Prefix, path)
	}
	if err := labels.WriteFile(dst, entries); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Labels exported to: %s\n", dst)
	fmt.Printf("  Windows: %d\n", len(entries))
	fmt.Printf("  Events:  %d\n", events)
}

func cmdVerify(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: spectrumlabel verify <labels>")
		os.Exit(1)
	}

	failed := false
	for _, path := range args {
		sections, err := labels.ParseFile(path)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", path, err)
			failed = true
			continue
		}
		windows, records, empty := labels.Stats(sections)
		if err := labels.Verify(sections); err != nil {
			fmt.Printf("✗ %s\n", path)
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Printf("  %s\n", line)
			}
			failed = true
			continue
		}
		fmt.Printf("✓ %s: %d windows, %d events, %d unlabeled windows\n", path, windows, records, empty)
	}
	if failed {
		os.Exit(1)
	}
}

func cmdPreview(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	labelPath := fs.String("labels", "", "Label file to overlay (default: the recording's output file if present)")
	outDir := fs.String("o", "preview", "Directory for PNG files")
	scale := fs.Int("scale", 4, "Pixels per cell")
	limit := fs.Int("n", 0, "Render at most n windows (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: spectrumlabel preview [-labels file] [-o dir] <recording>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg := loadConfig()
	setupLogging(cfg)

	cmap, err := render.ColormapByName(cfg.Display.Colormap)
	if err != nil {
		fatalf("%v", err)
	}

	s, err := series.Load(context.Background(), path, cfg.LoadOptions())
	if err != nil {
		fatalf("%v", err)
	}
	defer s.Close()

	windows, _, err := window.Plan(s.Index(), cfg.WindowConfig())
	if err != nil {
		fatalf("%v", err)
	}

	lp := *labelPath
	if lp == "" {
		lp = labels.OutputPath(cfg.Output.Directory, cfg.Output.Prefix, path)
		if _, err := os.Stat(lp); err != nil {
			lp = ""
		}
	}
	var matched [][]labels.Record
	if lp != "" {
		sections, err := labels.ParseFile(lp)
		if err != nil {
			fatalf("%v", err)
		}
		matched = labeler.MatchSections(windows, sections)
	}

	ropts := render.Options{Min: s.Min, Max: s.Max, NoiseCutoff: cfg.Display.NoiseCutoff, Colormap: cmap}
	base := filepath.Base(path)
	written := 0
	for i, w := range windows {
		if *limit > 0 && written >= *limit {
			break
		}
		var recs []labels.Record
		if matched != nil {
			recs = matched[i]
		}
		img, err := labeler.RenderWindow(s, w, recs, ropts)
		if err != nil {
			fatalf("window %d: %v", i, err)
		}
		b := img.Bounds()
		out := render.Scale(img, b.Dx()*(*scale), b.Dy()*(*scale))
		dst := filepath.Join(*outDir, fmt.Sprintf("%s_%03d.png", base, i))
		if err := render.WritePNGFile(dst, out); err != nil {
			fatalf("%v", err)
		}
		written++
	}
	fmt.Printf("Wrote %d previews to %s\n", written, *outDir)
}

func cmdStatus() {
	cfg := loadConfig()

	fmt.Println("=== spectrumlabel Status ===")
	fmt.Println()

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = config.ConfigPath()
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("Config: %s (not found, using defaults)\n", cfgFile)
	} else {
		fmt.Printf("Config: %s\n", cfgFile)
	}
	fmt.Printf("Planner: %s\n", cfg.WindowConfig().Key())
	fmt.Printf("Output: %s (prefix %q, flush per %s)\n", cfg.Output.Directory, cfg.Output.Prefix, cfg.Output.Flush)
	fmt.Println()

	fmt.Println("Journal:")
	if !cfg.Storage.Enabled {
		fmt.Println("  Disabled")
		return
	}
	info, err := os.Stat(cfg.Storage.Path)
	if os.IsNotExist(err) {
		fmt.Printf("  No journal at %s\n", cfg.Storage.Path)
		return
	}
	fmt.Printf("  Path: %s\n", cfg.Storage.Path)
	if info != nil {
		fmt.Printf("  Size: %s\n", formatBytes(info.Size()))
	}

	j := openJournal(cfg)
	defer j.Close()

	if ms, err := store.GetMigrationStatus(j.DB()); err == nil {
		fmt.Printf("  Schema: v%d (latest v%d)\n", ms.CurrentVersion, ms.LatestVersion)
	}

	datasets, err := j.Datasets()
	if err != nil {
		fmt.Printf("  Error reading datasets: %v\n", err)
		return
	}
	fmt.Println()
	fmt.Println("Datasets:")
	if len(datasets) == 0 {
		fmt.Println("  (none)")
	}
	for _, ds := range datasets {
		windows, events, err := j.Counts(ds.ID)
		if err != nil {
			fmt.Printf("  %s: %v\n", ds.Path, err)
			continue
		}
		fmt.Printf("  %s\n", ds.Path)
		fmt.Printf("    Samples: %d x %d channels, %s to %s\n",
			ds.Samples, ds.Channels, formatTime(ds.FirstTime), formatTime(ds.LastTime))
		fmt.Printf("    Labeled: %d windows, %d events\n", windows, events)

		runs, err := j.Runs(ds.ID)
		if err != nil || len(runs) == 0 {
			continue
		}
		last := runs[len(runs)-1]
		fmt.Printf("    Last run: %s %s (%s)\n", last.ID[:8], last.Status, last.StartedAt.Format(time.RFC3339))
	}
}

func cmdConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: spectrumlabel config <init|show|validate>")
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("config init", flag.ExitOnError)
		force := fs.Bool("force", false, "Overwrite an existing file")
		fs.Parse(args[1:])

		path := *configPath
		if fs.NArg() > 0 {
			path = fs.Arg(0)
		}
		if path == "" {
			path = config.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !*force {
			fatalf("%s already exists (use -force to overwrite)", path)
		}
		cfg := config.DefaultConfig()
		if err := cfg.EnsureDirectories(); err != nil {
			fatalf("%v", err)
		}
		if err := config.SaveConfig(cfg, path); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
	case "show":
		cfg := loadConfig()
		data, err := config.Encode(cfg, ".toml")
		if err != nil {
			fatalf("%v", err)
		}
		os.Stdout.Write(data)
	case "validate":
		loadConfig()
		fmt.Println("✓ Configuration is valid")
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		os.Exit(1)
	}
}

func formatTime(sec float64) string {
	whole := int64(sec)
	return time.Unix(whole, int64((sec-float64(whole))*1e9)).Format("2006-01-02 15:04:05.000")
}
