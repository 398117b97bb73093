package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/archiver"
	"github.com/fkie-cad/ahkdump/output"
	"github.com/fkie-cad/ahkdump/pefile"
	"github.com/fkie-cad/ahkdump/pgp"
	"github.com/fkie-cad/ahkdump/procio"
	"github.com/fkie-cad/ahkdump/report"
	"github.com/fkie-cad/ahkdump/system"
	"github.com/fkie-cad/ahkdump/yarasig"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func configFromArgs(c *cli.Context) (*ahkdump.Config, error) {
	cfg := ahkdump.DefaultConfig()
	cfg.Detector.Timeout = c.Duration("timeout")
	cfg.Detector.PollInterval = c.Duration("poll-interval")
	cfg.Detector.SettleTime = c.Duration("settle-time")
	cfg.ChildUnpackTimeout = c.Duration("child-timeout")
	cfg.ChildCheckInterval = c.Duration("child-check-interval")
	cfg.RetryDelay = c.Duration("retry-delay")
	cfg.MonitorChildren = !c.Bool("no-monitor-children")
	cfg.KeepRunning = c.Bool("keep-running")

	cfg.MaxWorkers = c.Int("max-workers")
	if cfg.MaxWorkers < 1 {
		return nil, errors.Newf("invalid flag \"--max-workers\", must be at least 1, got %d", cfg.MaxWorkers)
	}
	if cfg.Detector.PollInterval <= 0 {
		return nil, errors.New("invalid flag \"--poll-interval\", must be positive")
	}

	var err error
	cfg.MaxRegionSize, err = ParseSizeArgument(c.String("max-region-size"))
	if err != nil {
		return nil, errors.Errorf("invalid flag \"--max-region-size\", reason: %w", err)
	}
	return cfg, nil
}

func pgpOptionsFromArgs(c *cli.Context, prefix string) (*pgp.Options, error) {
	opts := &pgp.Options{
		Password: c.String(prefix + "password"),
	}
	keyPath := c.String(prefix + "pgp-key")
	if keyPath != "" {
		keyring, err := pgp.ReadKeyRing(keyPath)
		if err != nil {
			return nil, errors.Errorf("invalid flag \"--%spgp-key\", reason: %w", prefix, err)
		}
		opts.Keyring = keyring
	}
	return opts, nil
}

func storageFromArgs(c *cli.Context, name string) (ahkdump.ScriptStorage, *archiver.RemoteStorage, error) {
	storages := make([]ahkdump.ScriptStorage, 0, 3)
	closeAll := func() {
		for _, s := range storages {
			s.Close()
		}
	}

	storage, err := ahkdump.NewDirectoryStorage(c.String("output-dir"))
	if err != nil {
		return nil, nil, err
	}
	storages = append(storages, storage)

	if c.String("zip") != "" {
		zipStorage, err := output.NewZIPStorage(c.String("zip"), c.String("zip-password"))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		storages = append(storages, zipStorage)
	}

	var remote *archiver.RemoteStorage
	if c.String("upload") != "" {
		remote, err = archiver.NewRemoteStorage(c.String("upload"), name)
		if err != nil {
			closeAll()
			return nil, nil, errors.Errorf("invalid flag \"--upload\", reason: %w", err)
		}
		storages = append(storages, remote)
	}

	if len(storages) == 1 {
		return storage, remote, nil
	}
	return ahkdump.NewMultiStorage(storages...), remote, nil
}

func matcherFromArgs(c *cli.Context, sigs *ahkdump.Signatures) (ahkdump.SignatureMatcher, error) {
	if c.String("yara-rules") == "" {
		return ahkdump.NewStaticMatcher(sigs), nil
	}

	rules, err := yarasig.LoadRules(c.String("yara-rules"))
	if err != nil {
		return nil, errors.Errorf("invalid flag \"--yara-rules\", reason: %w", err)
	}
	return yarasig.NewMatcher(ahkdump.NewStaticMatcher(sigs), rules, c.Duration("yara-timeout"))
}

func writeReport(c *cli.Context, res *ahkdump.RunResult, target *report.Target, storageHint string, remote *archiver.RemoteStorage) error {
	encryption, err := pgpOptionsFromArgs(c, "report-")
	if err != nil {
		return err
	}

	rprt := report.FromRunResult(res, target, storageHint)
	rprt.System, err = system.GetInfo()
	if err != nil {
		logrus.WithError(err).Warn("Incomplete system information in report.")
	}

	reportPath := c.String("report")
	if reportPath != "" {
		reportPath, err = report.WriteFile(reportPath, rprt, report.WriteOptions{
			Compress:   c.Bool("report-compress"),
			Encryption: encryption,
		})
		if err != nil {
			return err
		}
		if reportPath != "-" {
			fmt.Printf("Report written to \"%s\".\n", reportPath)
		}
	}

	if remote == nil {
		return nil
	}
	if reportPath == "" || reportPath == "-" {
		buf := &bytes.Buffer{}
		err = report.Write(buf, rprt)
		if err != nil {
			return err
		}
		return remote.Upload("report.json", buf.Bytes())
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return errors.Errorf("could not read report for upload, reason: %w", err)
	}
	return remote.Upload(filepath.Base(reportPath), data)
}

func extract(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	attach := c.IsSet("pid")
	if attach && c.NArg() != 0 {
		return errors.New("expected no argument together with \"--pid\"")
	}
	if !attach && c.NArg() != 1 {
		return errors.Newf("expected exactly one argument, got %d", c.NArg())
	}

	cfg, err := configFromArgs(c)
	if err != nil {
		return err
	}
	cfg.Attached = attach

	sigs := ahkdump.DefaultSignatures()
	matcher, err := matcherFromArgs(c, sigs)
	if err != nil {
		return err
	}

	runName := fmt.Sprintf("pid %d", c.Int("pid"))
	if !attach {
		runName = filepath.Base(c.Args().First())
	}
	storage, remote, err := storageFromArgs(c, runName)
	if err != nil {
		return err
	}
	defer func() {
		err := storage.Close()
		if err != nil {
			fmt.Println(err)
			logrus.WithError(err).Error("Error closing script storage.")
		}
	}()

	observer := ahkdump.NewMultiObserver(
		ahkdump.NewLogrusObserver(nil),
		output.NewConsoleReporter(os.Stdout, c.Bool("verbose")),
	)
	orchestrator := ahkdump.NewOrchestrator(cfg, procio.NativeTable(), sigs, matcher, storage, observer, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var target *report.Target
	var pid int
	if attach {
		pid = c.Int("pid")
	} else {
		path := c.Args().First()
		args, err := shlex.Split(c.String("args"))
		if err != nil {
			return errors.Errorf("invalid flag \"--args\", reason: %w", err)
		}
		target = &report.Target{
			Path:      path,
			Arguments: args,
		}

		target.Analysis, err = pefile.Analyze(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("Could not analyze executable.")
		} else if target.Analysis.IsPacked() {
			logrus.WithFields(logrus.Fields{
				"path":   path,
				"packer": target.Analysis.Packer.Packer,
			}).Info("Executable appears to be packed.")
		}

		orchestrator.ExtractResources(path)

		pid, err = procio.StartProcess(path, args)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"path": path,
			"pid":  pid,
		}).Info("Started process.")
	}

	res, runErr := orchestrator.Run(ctx, pid)
	if res.TerminationErr != nil {
		fmt.Println(res.TerminationErr)
	}

	if c.String("report") != "" || remote != nil {
		err = writeReport(c, res, target, storage.Hint(), remote)
		if err != nil {
			return errors.NewMultiError(runErr, errors.Errorf("could not write report, reason: %w", err))
		}
	}
	return runErr
}
