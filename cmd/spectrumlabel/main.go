// spectrumlabel - Windowed labeling of spectrum recordings
//
// Recordings are cut into randomly spaced windows and each window is labeled
// with rectangles over (channel, time):
//
//	spectrumlabel plan <recording>             Dry-run the window planner
//	spectrumlabel replay -script s.yaml <rec>  Label recordings from a gesture script
//	spectrumlabel export <recording>           Rebuild a label file from the journal
//	spectrumlabel verify <labels>              Check a label file
//	spectrumlabel preview <recording>          Render windows as PNG images
//	spectrumlabel status                       Show configuration and journal state
//	spectrumlabel config <init|show|validate>  Manage the configuration file
//
// Interactive labeling is done with spectrumlabel-gui.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"spectrumlabel/internal/config"
	"spectrumlabel/internal/logging"
	"spectrumlabel/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
	logLevel   = flag.String("log-level", "", "override the configured log level")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]

	switch cmd {
	case "plan":
		cmdPlan(args)
	case "replay":
		cmdReplay(args)
	case "export":
		cmdExport(args)
	case "verify":
		cmdVerify(args)
	case "preview":
		cmdPreview(args)
	case "status":
		cmdStatus()
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `spectrumlabel - Spectrum recording labeler

USAGE:
    spectrumlabel [options] <command> [args]

COMMANDS:
    plan [recording...]        Print the windows the planner would show
    replay -script <file>      Label recordings by replaying a gesture script
    export <recording>         Rebuild the label file from the journal
    verify <labels>            Check the structure of a label file
    preview <recording>        Render windows (and labels) as PNG images
    status                     Show configuration and journal state
    config init [path]         Write a default configuration file
    config show                Print the effective configuration
    config validate            Validate the configuration file
    help                       Show this help message

OPTIONS:
    -config <path>             Path to config file (default: platform config dir)
    -log-level <level>         debug, info, warn or error

Recordings default to input.files from the configuration. Label files are
written to output.directory as <prefix><recording name>.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintln(os.Stderr, "Invalid configuration:")
			for _, e := range verrs {
				fmt.Fprintf(os.Stderr, "  - %s\n", e.Error())
			}
			os.Exit(1)
		}
		fatalf("invalid config: %v", err)
	}
	return cfg
}

// setupLogging installs the configured logger as the process default.
func setupLogging(cfg *config.Config) *logging.Logger {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		fatalf("logging config: %v", err)
	}
	l, err := logging.New(lc)
	if err != nil {
		fatalf("logging: %v", err)
	}
	logging.SetDefault(l)
	return l
}

func openJournal(cfg *config.Config) *store.Store {
	j, err := store.Open(cfg.Storage.Path, store.WithBusyTimeout(cfg.BusyTimeout()))
	if err != nil {
		fatalf("opening journal: %v", err)
	}
	return j
}

// recordings returns args, or the configured input files when args is empty.
func recordings(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(cfg.Input.Files) == 0 {
		fatalf("no recordings given and input.files is empty")
	}
	return cfg.Input.Files
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
