package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/level10nurd/documentExtraction/internal/config"
	httpapi "github.com/level10nurd/documentExtraction/internal/interfaces/http"
	"github.com/level10nurd/documentExtraction/pkg/utils"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type command struct {
	name    string
	summary string
	flags   func(flags *pflag.FlagSet)
	run     func(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, logger *zap.Logger) error
}

var commands = []command{
	{
		name:    "process",
		summary: "extract every invoice under --source and write a run directory",
		run:     runProcess,
	},
	{
		name:    "detect",
		summary: "print the detected vendor of every invoice under --source",
		flags:   detectFlags,
		run:     runDetect,
	},
	{
		name:    "serve",
		summary: "serve stored runs as a JSON API",
		run:     runServe,
	},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage()
		return 2
	}
	if args[0] == "version" {
		fmt.Println(version)
		return 0
	}

	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return 2
	}

	flags := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	configPath := flags.String("config", defaultConfigPath, "configuration file")
	config.AddFlags(flags)
	if cmd.flags != nil {
		cmd.flags(flags)
	}
	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Load configuration
	path := *configPath
	if !flags.Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.LoggerOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	httpapi.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, flags, logger); err != nil {
		logger.Error("Command failed", zap.String("command", cmd.name), zap.Error(err))
		return 1
	}
	return 0
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: invoicextract <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "  %-8s %s\n", "version", "print the version")
	fmt.Fprintf(os.Stderr, "\nRun 'invoicextract <command> --help' for the flags of a command.\n")
}
