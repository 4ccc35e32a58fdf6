// Command devlink-log views and analyzes devlink protocol captures.
//
// Captures are written by devlink-host and devlink-device when run with
// -protocol-log.
//
// Usage:
//
//	devlink-log <command> [flags] <file.dlog>
//
// Commands:
//
//	view     View a capture in human-readable form
//	export   Export a capture as JSON lines or CSV
//	filter   Write matching events to a new capture
//	stats    Show statistics about a capture
//
// Examples:
//
//	# Only errors
//	devlink-log view -category error bench.dlog
//
//	# Every SET_STATE the host sent
//	devlink-log view -type SET_STATE -direction out bench.dlog
//
//	# Clock sync history as CSV
//	devlink-log export -format csv -layer sync bench.dlog
//
//	# Split one link out of a long capture
//	devlink-log filter -link-id 3f2c9a10 -o link.dlog bench.dlog
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/devlink-robotics/devlink-go/cmd/devlink-log/commands"
	"github.com/devlink-robotics/devlink-go/pkg/log"
)

const usage = `devlink-log - devlink Protocol Capture Analyzer

Usage:
  devlink-log <command> [flags] <file.dlog>

Commands:
  view     View a capture in human-readable form
  export   Export a capture as JSON lines or CSV
  filter   Write matching events to a new capture
  stats    Show statistics about a capture

Use "devlink-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "devlink-log %s - %s\n\nUsage:\n  devlink-log %s [flags] <file.dlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func addFilterFlags(fs *flag.FlagSet) *commands.FilterFlags {
	var ff commands.FilterFlags
	fs.StringVar(&ff.LinkID, "link-id", "", "Filter by link ID")
	fs.StringVar(&ff.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&ff.Layer, "layer", "", "Filter by layer (codec, envelope, link, sync)")
	fs.StringVar(&ff.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&ff.Type, "type", "", "Filter by packet type (name or number)")
	fs.StringVar(&ff.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&ff.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return &ff
}

// parse parses args and returns the capture path and the filter.
func parse(fs *flag.FlagSet, ff *commands.FilterFlags, args []string) (string, log.Filter, error) {
	if err := fs.Parse(args); err != nil {
		return "", log.Filter{}, err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", log.Filter{}, fmt.Errorf("log file path required")
	}
	var filter log.Filter
	if ff != nil {
		var err error
		if filter, err = ff.Build(); err != nil {
			return "", filter, err
		}
	}
	if fs.NArg() > 1 {
		return "", filter, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}
	return fs.Arg(0), filter, nil
}

func runView(args []string) error {
	fs := newFlagSet("view", "View a capture in human-readable form")
	ff := addFilterFlags(fs)
	path, filter, err := parse(fs, ff, args)
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export a capture as JSON lines or CSV")
	ff := addFilterFlags(fs)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, filter, err := parse(fs, ff, args)
	if err != nil {
		return err
	}
	return commands.RunExport(path, filter, *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Write matching events to a new capture")
	ff := addFilterFlags(fs)
	output := fs.String("o", "", "Output file (required)")
	path, filter, err := parse(fs, ff, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file (-o) required")
	}
	return commands.RunFilter(path, filter, *output, os.Stdout)
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show statistics about a capture")
	path, _, err := parse(fs, nil, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}
