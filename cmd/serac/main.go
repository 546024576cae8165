package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"grimm.is/serac"
	"grimm.is/serac/internal/logging"
	"grimm.is/serac/internal/tui"
)

const (
	appName    = "serac"
	appVersion = "0.3.0"

	// defaultDNS resolves rule file hostnames when --dns is not given.
	defaultDNS = "1.1.1.1"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "apply":
		applyFlags := flag.NewFlagSet("apply", flag.ExitOnError)
		dynamic := applyFlags.Bool("dynamic", false, "Hold the objects in a dynamic session until interrupted")
		dnsServer := applyFlags.String("dns", defaultDNS, "DNS server for resolving rule hostnames")
		jsonLog, logLevel := logFlags(applyFlags)
		applyFlags.Parse(os.Args[2:])

		if applyFlags.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s apply [options] <rule-file>\n", appName)
			os.Exit(1)
		}
		setupLogging(*jsonLog, *logLevel)

		if err := RunApply(applyFlags.Arg(0), *dynamic, *dnsServer); err != nil {
			fmt.Fprintf(os.Stderr, "Apply failed: %v\n", err)
			os.Exit(1)
		}

	case "plan":
		planFlags := flag.NewFlagSet("plan", flag.ExitOnError)
		dnsServer := planFlags.String("dns", defaultDNS, "DNS server for resolving rule hostnames")
		jsonLog, logLevel := logFlags(planFlags)
		planFlags.Parse(os.Args[2:])

		if planFlags.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s plan [options] <rule-file>\n", appName)
			os.Exit(1)
		}
		setupLogging(*jsonLog, *logLevel)

		if err := RunPlan(planFlags.Arg(0), *dnsServer); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "list":
		listFlags := flag.NewFlagSet("list", flag.ExitOnError)
		layer := listFlags.String("layer", "", "Only filters at this layer, e.g. ale_auth_connect_v4")
		output := listFlags.String("o", "table", "Output format: table, json, or yaml")
		jsonLog, logLevel := logFlags(listFlags)
		listFlags.Parse(os.Args[2:])
		setupLogging(*jsonLog, *logLevel)

		if err := RunList(*layer, *output); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}

	case "export":
		exportFlags := flag.NewFlagSet("export", flag.ExitOnError)
		provider := exportFlags.String("provider", "", "Provider whose objects to export (default \"serac\")")
		outPath := exportFlags.String("f", "", "Write to this file instead of stdout")
		jsonLog, logLevel := logFlags(exportFlags)
		exportFlags.Parse(os.Args[2:])
		setupLogging(*jsonLog, *logLevel)

		if err := RunExport(*provider, *outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}

	case "add":
		addFlags := flag.NewFlagSet("add", flag.ExitOnError)
		var d tui.FilterDraft
		addFlags.StringVar(&d.Name, "name", "", "Filter name (empty starts the interactive form)")
		addFlags.StringVar(&d.Description, "description", "", "Filter description")
		addFlags.StringVar(&d.Layer, "layer", "", "Layer name, e.g. ale_auth_connect_v4")
		addFlags.StringVar(&d.Action, "action", "", "block or permit")
		addFlags.StringVar(&d.SubLayer, "sublayer", "", "Sublayer key (GUID); empty targets the default sublayer")
		addFlags.StringVar(&d.Protocol, "protocol", "", "tcp, udp, icmp, or icmpv6")
		addFlags.StringVar(&d.RemotePorts, "remote-ports", "", "Comma-separated ports or lo-hi ranges")
		addFlags.StringVar(&d.LocalPorts, "local-ports", "", "Comma-separated ports or lo-hi ranges")
		addFlags.StringVar(&d.Remote, "remote", "", "Comma-separated prefixes, addresses, or ranges")
		addFlags.StringVar(&d.Local, "local", "", "Comma-separated prefixes, addresses, or ranges")
		addFlags.StringVar(&d.App, "app", "", "Application path")
		addFlags.StringVar(&d.Weight, "weight", "", "Filter weight (empty lets the engine pick)")
		jsonLog, logLevel := logFlags(addFlags)
		addFlags.Parse(os.Args[2:])
		setupLogging(*jsonLog, *logLevel)

		if err := RunAdd(&d); err != nil {
			fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
			os.Exit(1)
		}

	case "remove":
		removeFlags := flag.NewFlagSet("remove", flag.ExitOnError)
		id := removeFlags.Uint64("id", 0, "Runtime ID of the filter to remove")
		key := removeFlags.String("key", "", "Key (GUID) of the filter to remove")
		jsonLog, logLevel := logFlags(removeFlags)
		removeFlags.Parse(os.Args[2:])
		setupLogging(*jsonLog, *logLevel)

		if err := RunRemove(*id, *key); err != nil {
			fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
			os.Exit(1)
		}

	case "monitor":
		monitorFlags := flag.NewFlagSet("monitor", flag.ExitOnError)
		layer := monitorFlags.String("layer", "", "Start narrowed to this layer")
		jsonLog, logLevel := logFlags(monitorFlags)
		monitorFlags.Parse(os.Args[2:])
		setupLogging(*jsonLog, *logLevel)

		if err := RunMonitor(*layer); err != nil {
			fmt.Fprintf(os.Stderr, "Monitor failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// logFlags registers the logging options every subcommand shares.
func logFlags(fs *flag.FlagSet) (jsonLog *bool, level *string) {
	jsonLog = fs.Bool("json-log", false, "Emit JSON logs")
	level = fs.String("log-level", "info", "Log level: debug, info, warn, or error")
	return jsonLog, level
}

func setupLogging(jsonLog bool, level string) {
	lvl, err := parseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logging.New(logging.Config{
		Level:  lvl,
		Output: os.Stderr,
		JSON:   jsonLog,
	}))
}

func parseLevel(s string) (logging.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug, nil
	case "info", "":
		return logging.LevelInfo, nil
	case "warn", "warning":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// openSession opens the engine session CLI commands run against.
func openSession(dynamic bool) (*serac.Session, error) {
	return serac.Open(serac.Options{
		Name:        appName + " cli",
		Description: "serac command line session",
		Dynamic:     dynamic,
	})
}

func printUsage() {
	fmt.Printf(`%s - manage network traffic filters

Usage:
  %s <command> [options]

Commands:
  apply     Install a rule file's objects, replacing its previous ones
            Options: --dynamic, --dns <server>
  plan      Diff a rule file against the running engine state
            Exits 1 when they differ. Options: --dns <server>
  list      Enumerate installed filters
            Options: --layer <name>, -o table|json|yaml
  export    Write a provider's installed objects back out as a rule file
            Options: --provider <name>, -f <file>
  add       Install a single filter
            Flag-driven, or interactive when --name is omitted
  remove    Remove one filter
            Options: --id <n> | --key <guid>
  monitor   Live filter table
            Keys: r refresh, l/L layer, q quit
  version   Print version

Every command accepts --json-log and --log-level <debug|info|warn|error>.

Examples:
  %s apply rules.hcl
  %s plan --dns 10.0.0.53 rules.hcl
  %s list --layer ale_auth_connect_v4 -o json
  %s export --provider corp -f rules.hcl
  %s add --name block-http --layer ale_auth_connect_v4 --action block --remote-ports 80
  %s remove --id 12
`,
		appName,
		appName,
		appName, appName, appName, appName, appName, appName)
}
