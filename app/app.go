package app

import (
	"fmt"
	"os"
	"time"

	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/version"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

var onExit func()

func initAppAction(c *cli.Context) error {
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	switch c.String("log-path") {
	case "-":
		logrus.SetOutput(os.Stdout)
	case "--":
		logrus.SetOutput(os.Stderr)
	default:
		logfile, err := os.OpenFile(c.String("log-path"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return errors.Errorf("could not open logfile for writing, reason: %w", err)
		}
		logrus.SetOutput(logfile)
		logrus.StandardLogger().ExitFunc = func(code int) {
			if onExit != nil {
				onExit()
			}
			os.Exit(code)
		}
		onExit = func() {
			logfile.Close()
		}
	}
	logrus.WithField("arguments", os.Args).Debug("Program started.")
	return nil
}

func pgpFlags(prefix, what string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  prefix + "password",
			Usage: "symmetric password for the " + what,
		},
		&cli.StringFlag{
			Name:  prefix + "pgp-key",
			Usage: "path to a PGP public or secret keyring for the " + what + ", takes precedence over --" + prefix + "password",
		},
	}
}

func newApp() *cli.App {
	defaults := ahkdump.DefaultConfig()

	segmentFilterFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "filter-state",
			Aliases: []string{"f-state"},
			Usage:   "comma separated list of considered states, supported states: free, commit, reserve",
			Value:   cli.NewStringSlice("commit"),
		},
		&cli.StringFlag{
			Name:    "filter-size-max",
			Aliases: []string{"f-size-max"},
			Usage:   "maximum size of memory segments to be considered, can be absolute (e.g. \"1.5GB\") or percentage of total RAM (e.g. \"10%T\")",
		},
		&cli.BoolFlag{
			Name:    "filter-readable",
			Aliases: []string{"f-readable"},
			Usage:   "only consider segments that can be read without touching guard pages",
		},
	}

	return &cli.App{
		Name:        "ahkdump",
		HelpName:    "ahkdump",
		Description: "Recovers the script source of compiled AutoHotkey executables from PE resources and process memory.",
		Version:     version.AhkdumpVersion.String(),
		Authors: []*cli.Author{
			{
				Name: "ahkdump contributors",
			},
		},
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "one of [trace, debug, info, warn, error, fatal, panic]",
				Value:   "panic",
			},
			&cli.StringFlag{
				Name:  "log-path",
				Usage: "path to the logfile, or \"-\" for stdout, or \"--\" for stderr",
				Value: "--",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Aliases:   []string{"x"},
				Usage:     "starts an executable, or attaches to a running process, and extracts all scripts",
				ArgsUsage: "<executable>",
				Action:    extract,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "args",
						Aliases: []string{"a"},
						Usage:   "command line passed to the executable, split like a shell would",
					},
					&cli.IntFlag{
						Name:    "pid",
						Aliases: []string{"p"},
						Usage:   "attach to an already running process instead of starting <executable>, the process is left running after the run, its children are terminated unless --keep-running is given",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "directory the extracted scripts are written to",
						Value:   "scripts",
					},
					&cli.StringFlag{
						Name:  "zip",
						Usage: "additionally store all scripts in the given zip archive",
					},
					&cli.StringFlag{
						Name:  "zip-password",
						Usage: "AES-256 encrypt the entries of --zip with the given password",
					},
					&cli.StringFlag{
						Name:  "upload",
						Usage: "additionally upload all scripts and the run report to the archiver server at the given URL",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"r"},
						Usage:   "write a JSON run report to the given path, or \"-\" for stdout",
					},
					&cli.BoolFlag{
						Name:  "report-compress",
						Usage: "zstd compress the run report",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "how long to wait for the primary process to unpack its script",
						Value: defaults.Detector.Timeout,
					},
					&cli.DurationFlag{
						Name:  "child-timeout",
						Usage: "how long to wait for child processes to unpack their script",
						Value: defaults.ChildUnpackTimeout,
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "interval between two signature scans during unpack detection",
						Value: defaults.Detector.PollInterval,
					},
					&cli.DurationFlag{
						Name:  "settle-time",
						Usage: "time between the first secondary signature and the unpack confirmation",
						Value: defaults.Detector.SettleTime,
					},
					&cli.DurationFlag{
						Name:  "child-check-interval",
						Usage: "interval between two scans of the process list for new child processes",
						Value: defaults.ChildCheckInterval,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "delay before a child process yielding no script is extracted again",
						Value: defaults.RetryDelay,
					},
					&cli.IntFlag{
						Name:  "max-workers",
						Usage: "maximum number of processes extracted in parallel",
						Value: defaults.MaxWorkers,
					},
					&cli.StringFlag{
						Name:  "max-region-size",
						Usage: "memory regions larger than this are skipped, can be absolute (e.g. \"512MiB\") or percentage of total RAM (e.g. \"10%T\")",
						Value: "512MiB",
					},
					&cli.BoolFlag{
						Name:  "no-monitor-children",
						Usage: "only extract the primary process, do not follow child processes",
					},
					&cli.BoolFlag{
						Name:  "keep-running",
						Usage: "leave child processes alive after a successful run",
					},
					&cli.StringFlag{
						Name:  "yara-rules",
						Usage: "additional yara rules used as unpack signatures, rules tagged \"primary\" confirm an unpack immediately",
					},
					&cli.DurationFlag{
						Name:  "yara-timeout",
						Usage: "timeout of a single yara scan",
						Value: 5 * time.Second,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "print scan progress",
					},
				}, pgpFlags("report-", "run report")...),
			},
			{
				Name:      "resources",
				Aliases:   []string{"res"},
				Usage:     "extracts scripts from the PE resources of an executable without running it",
				ArgsUsage: "<executable>",
				Action:    extractResources,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "directory the extracted scripts are written to",
						Value:   "scripts",
					},
				},
			},
			{
				Name:      "analyze",
				Usage:     "prints an advisory analysis of an executable",
				ArgsUsage: "<executable>",
				Action:    analyze,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the analysis as JSON",
					},
				},
			},
			{
				Name:    "list-processes",
				Aliases: []string{"ps", "lsproc"},
				Usage:   "lists running processes",
				Action:  listProcesses,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "children-of",
						Aliases: []string{"c"},
						Usage:   "only list the descendants of the given pid",
					},
				},
			},
			{
				Name:      "list-process-memory",
				Aliases:   []string{"lsmem"},
				Usage:     "lists all memory segments of a process",
				ArgsUsage: "<pid>",
				Action:    listMemory,
				Flags:     segmentFilterFlags,
			},
			{
				Name:      "dump",
				Usage:     "dumps memory of a process",
				ArgsUsage: "<pid> [address_of_section]",
				Action:    dumpMemory,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "contiguous",
						Aliases: []string{"c"},
						Usage:   "also dump the following <value> contiguous sections, -1 for all contiguous sections, only relevant if [address_of_section] is given",
					},
					&cli.BoolFlag{
						Name:    "raw",
						Aliases: []string{"r"},
						Usage:   "dump the raw memory as opposed to a hex view of the memory",
					},
					&cli.BoolFlag{
						Name:  "store",
						Usage: "don't output, but store raw matching segments in --storage-dir",
					},
					&cli.StringFlag{
						Name:    "storage-dir",
						Aliases: []string{"d"},
						Usage:   "directory for stored segments, ignored unless --store is given",
						Value:   ".",
					},
				}, segmentFilterFlags...),
			},
			{
				Name:      "terminate",
				Aliases:   []string{"kill"},
				Usage:     "terminates a process and all of its descendants",
				ArgsUsage: "<pid>",
				Action:    terminateProcessTree,
			},
			{
				Name:      "receive",
				Usage:     "runs an archiver server, collecting scripts and reports uploaded with \"extract --upload\"",
				ArgsUsage: "<listen address>",
				Action:    receive,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "run-dir",
						Aliases: []string{"d"},
						Usage:   "directory the received runs are stored in",
						Value:   ".",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "log every request",
					},
				},
			},
			{
				Name:      "validate-report",
				Usage:     "validates a run report against the report schema",
				ArgsUsage: "<report>",
				Action:    validateReport,
				Flags:     pgpFlags("", "encrypted report"),
			},
		},
	}
}

// RunApp runs the command line interface with the given arguments.
func RunApp(args []string) {
	err := newApp().Run(args)
	if err != nil {
		fmt.Println(err)
		logrus.Error(err)
		logrus.Fatal("Aborting.")
	}
	if onExit != nil {
		onExit()
	}
}
