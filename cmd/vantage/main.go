package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/drivers"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// optionalBool records whether a bool flag was given at all
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string { return fmt.Sprintf("%v", b.value) }

func (b *optionalBool) Set(value string) error {
	switch value {
	case "true", "1":
		b.value = true
	case "false", "0":
		b.value = false
	default:
		return fmt.Errorf("invalid bool %q", value)
	}
	b.set = true
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

var (
	configFiles  configPaths
	headlessFlag optionalBool
	browserName  = flag.String("browser", "", "Browser family: chrome, firefox or edge (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Var(&headlessFlag, "headless", "Run browsers headless (overrides config)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: vantage [flags] <command> [args]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Commands:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  setup-drivers        create driver directories and resolve every browser executable\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  resolve <name>       resolve one executable and print where it came from\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  smoke [-url URL]     open a session, load a page and wait for it to be ready\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Flags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Vantage version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("vantage.toml"); err == nil {
			configFiles = append(configFiles, "vantage.toml")
		}
	}

	// defaults -> files -> env -> flags
	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	var headless *bool
	if headlessFlag.set {
		headless = &headlessFlag.value
	}
	common.ApplyFlagOverrides(config, *browserName, headless)

	logger = common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("browser", config.Browser.Name).
		Bool("headless", config.Browser.Headless).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "setup-drivers":
		err = runSetupDrivers(ctx)
	case "resolve":
		err = runResolve(ctx, args[1:])
	case "smoke":
		err = runSmoke(ctx, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("command", args[0]).Msg("Command failed")
		os.Exit(1)
	}
}

func newResolver() *drivers.Resolver {
	return drivers.NewDefaultResolver(config, drivers.NewCache(drivers.NewCacheMetrics(nil)), logger)
}

func runSetupDrivers(ctx context.Context) error {
	var names []string
	for _, family := range models.AllBrowserFamilies() {
		names = append(names, family.ExecutableName())
	}

	results, err := newResolver().Prepare(ctx, []string{config.Drivers.LocalPath, config.Drivers.CachePath}, names...)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-10s not found: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("%-10s %-16s %s\n", r.Name, r.Executable.Source, r.Executable.Path)
	}
	return nil
}

func runResolve(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("resolve takes exactly one executable name")
	}

	executable, err := newResolver().Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %s\n", executable.Name, executable.Source, executable.Path)
	return nil
}
