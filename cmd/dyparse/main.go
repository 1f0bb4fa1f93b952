package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/dyparser/config"
	"github.com/wippyai/dyparser/discovery"
	"github.com/wippyai/dyparser/engine"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/metrics"
	"github.com/wippyai/dyparser/runtime"
	"github.com/wippyai/dyparser/section"
)

type options struct {
	configPath  string
	pluginName  string
	pluginFile  string
	format      string
	encoding    string
	timeout     time.Duration
	list        bool
	stats       bool
	interactive bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "dyparser settings file (.toml, .yaml)")
	flag.StringVar(&o.pluginName, "plugin", "", "Plugin name to resolve (default: configured default plugin)")
	flag.StringVar(&o.pluginFile, "plugin-file", "", "Plugin file to load instead of resolving a name")
	flag.StringVar(&o.format, "format", formatTree, "Output format: tree, json, yaml, toml")
	flag.StringVar(&o.encoding, "encoding", "", "Input encoding label (default: detect)")
	flag.DurationVar(&o.timeout, "timeout", 0, "Override the parse timeout")
	flag.BoolVar(&o.list, "list", false, "List installed plugins and exit")
	flag.BoolVar(&o.stats, "stats", false, "Print parse statistics to stderr")
	flag.BoolVar(&o.interactive, "i", false, "Browse the result in a TUI")
	flag.Parse()

	if !o.list && flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: dyparse [-plugin name | -plugin-file path] [-format tree|json|yaml|toml] <file|->")
		fmt.Fprintln(os.Stderr, "       dyparse -list")
		fmt.Fprintln(os.Stderr, "       dyparse -i <file>  (interactive mode)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, o, flag.Arg(0))
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, target string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.encoding != "" {
		cfg.InputEncoding = o.encoding
	}
	if o.timeout > 0 {
		cfg.Timeout = config.Duration(o.timeout)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.Log.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log.Named("engine"))
	host.SetLogger(log.Named("host"))

	if o.list {
		return listPlugins(os.Stdout, cfg)
	}

	if o.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}

	m := metrics.New(nil)
	rt, err := runtime.New(ctx, cfg.Runtime(),
		runtime.WithLogger(log.Named("runtime")),
		runtime.WithRecorder(m))
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(context.WithoutCancel(ctx))

	p, err := loadPlugin(ctx, rt, o)
	if err != nil {
		return err
	}
	defer p.Close(context.WithoutCancel(ctx))
	log.Debug("plugin ready",
		zap.String("plugin", p.Name()),
		zap.String("engine", string(p.Kind())),
		zap.Int("size", p.Size()))

	var root *section.Section
	if target == "-" {
		root, err = p.ParseReader(ctx, os.Stdin)
	} else {
		root, err = p.ParseFile(ctx, target)
	}
	if o.stats {
		defer printStats(os.Stderr, m.Snapshot)
	}
	if err != nil {
		return err
	}

	if o.interactive {
		return runInteractive(root, target, p.Name())
	}
	return render(os.Stdout, root, o.format)
}

func loadPlugin(ctx context.Context, rt *runtime.Runtime, o options) (*runtime.Plugin, error) {
	switch {
	case o.pluginFile != "":
		return rt.Load(ctx, o.pluginFile)
	case o.pluginName != "":
		return rt.LoadPlugin(ctx, o.pluginName)
	default:
		return rt.LoadDefault(ctx)
	}
}

func listPlugins(w io.Writer, cfg *config.Config) error {
	dirs := discovery.Default().SearchDirs()
	if cfg.PluginDir != "" {
		dirs = append([]string{cfg.PluginDir}, dirs...)
	}
	plugins, err := discovery.List(dirs...)
	if err != nil {
		return err
	}
	if len(plugins) == 0 {
		fmt.Fprintln(w, "No plugins installed.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFORMAT\tPATH")
	for _, p := range plugins {
		mark := ""
		if p.Name == cfg.DefaultPlugin {
			mark = " (default)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", p.Name, mark, p.Ext, p.Path)
	}
	return tw.Flush()
}

func printStats(w io.Writer, snapshot func() metrics.Snapshot) {
	s := snapshot()
	fmt.Fprintf(w, "\nparses: %d  failures: %d  avg: %s\n", s.Parses, s.Failures, s.AverageDuration())
	fmt.Fprintf(w, "sections: %d created, %d leaked\n", s.SectionsCreated, s.SectionsLeaked)
	for _, op := range host.Ops() {
		if n := s.HostCalls[op.String()]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", op, n)
		}
	}
}
