// spectrumlabel-gui is the interactive labeler. It shows one spectrogram
// window at a time and records the rectangles drawn on it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"spectrumlabel/cmd/spectrumlabel-gui/internal/theme"
	"spectrumlabel/cmd/spectrumlabel-gui/internal/ui"
	"spectrumlabel/internal/config"
	"spectrumlabel/internal/labeler"
	"spectrumlabel/internal/logging"
	"spectrumlabel/internal/metrics"
	"spectrumlabel/internal/render"
	"spectrumlabel/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
	outDir     = flag.String("o", "", "output directory (default: output.directory)")
	noJournal  = flag.Bool("no-journal", false, "do not record or resume from the journal")
)

func main() {
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		fatal(err)
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		fatal(err)
	}
	log, err := logging.New(lc)
	if err != nil {
		fatal(err)
	}
	logging.SetDefault(log)

	files := flag.Args()
	if len(files) == 0 {
		files = cfg.Input.Files
	}
	if len(files) == 0 {
		fatal(errors.New("no recordings given and input.files is empty"))
	}

	cmap, err := render.ColormapByName(cfg.Display.Colormap)
	if err != nil {
		fatal(err)
	}

	opts := labeler.OptionsFromConfig(cfg)
	opts.Logger = log
	opts.Metrics = metrics.Default()
	if *outDir != "" {
		opts.OutputDir = *outDir
	}
	var journal *store.Store
	if cfg.Storage.Enabled && !*noJournal {
		if journal, err = store.Open(cfg.Storage.Path, store.WithBusyTimeout(cfg.BusyTimeout())); err != nil {
			fatal(err)
		}
		opts.Journal = journal
	}

	bridge := ui.NewBridge(log.Logger)
	l, err := labeler.New(bridge, opts)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Spectrum Labeler"))
		w.Option(app.Size(unit.Dp(cfg.Display.Width), unit.Dp(cfg.Display.Height)))
		bridge.SetInvalidate(w.Invalidate)

		view := ui.NewLabeling(theme.NewTheme(material.NewTheme()), bridge,
			render.Options{NoiseCutoff: cfg.Display.NoiseCutoff, Colormap: cmap},
			log.Logger, func() { w.Perform(system.ActionClose) })

		loader.OnChange(func(c *config.Config) {
			cm, err := render.ColormapByName(c.Display.Colormap)
			if err != nil {
				log.Warn("ignoring display settings", "error", err)
				return
			}
			log.Info("display settings reloaded", "noise_cutoff", c.Display.NoiseCutoff, "colormap", c.Display.Colormap)
			view.SetDisplay(c.Display.NoiseCutoff, cm)
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
		go func() {
			for err := range loader.Errors() {
				log.Warn("config reload failed", "error", err)
			}
		}()

		done := make(chan error, 1)
		go func() {
			results, err := l.Run(ctx, files)
			for _, r := range results {
				log.Info("recording labeled", "recording", r.Recording, "output", r.Output,
					"windows", r.Windows, "resumed", r.Resumed, "events", r.Events)
			}
			bridge.Finish(err)
			done <- err
		}()
		go func() {
			<-ctx.Done()
			w.Perform(system.ActionClose)
		}()

		loopErr := loop(w, view)
		stop()
		runErr := <-done
		shutdown(log, loader, journal, cfg)

		switch {
		case loopErr != nil:
			fatal(loopErr)
		case runErr != nil && !errors.Is(runErr, context.Canceled):
			fatal(runErr)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window, view *ui.Labeling) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			view.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func shutdown(log *logging.Logger, loader *config.Loader, journal *store.Store, cfg *config.Config) {
	if err := loader.Close(); err != nil {
		log.Warn("closing config watcher", "error", err)
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Warn("closing journal", "error", err)
		}
	}
	if cfg.Metrics.Path != "" {
		m := metrics.Default()
		m.UpdateUptime()
		if err := m.WriteFile(cfg.Metrics.Path); err != nil {
			log.Warn("writing metrics", "path", cfg.Metrics.Path, "error", err)
		}
	}
	log.Close()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "spectrumlabel-gui: %v\n", err)
	os.Exit(1)
}
