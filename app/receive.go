package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fkie-cad/ahkdump/archiver"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func receive(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.Newf("expected exactly one argument <listen address>")
	}

	if c.Bool("verbose") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	err = os.MkdirAll(c.String("run-dir"), 0750)
	if err != nil {
		return errors.Errorf("could not create run directory, reason: %w", err)
	}
	server := archiver.NewServer(c.String("run-dir"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	shutdownComplete := make(chan struct{})

	go func() {
		defer close(shutdownComplete)
		<-ctx.Done()

		shutdownTimeout := 5 * time.Second
		logrus.Infof("Received interrupt, shutting down server (timeout: %v)...", shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			logrus.WithError(err).Error("Error during closing of open runs.")
		} else {
			logrus.Info("Closed open runs.")
		}
	}()

	err = server.Start(c.Args().First())
	if err != http.ErrServerClosed {
		stop()
		<-shutdownComplete
		return err
	}
	<-shutdownComplete
	return nil
}
