// Command dicomrecv runs a DICOM store SCP: it accepts associations and
// writes every C-STORE dataset it receives to an output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/dicomstore/dicomstore/session"
)

var receiveFlags = []cli.Flag{
	&cli.StringFlag{Name: "output", Usage: "directory to write received .dcm files into"},
	&cli.StringFlag{Name: "ae-title", Value: "RUST_SCP", Usage: "this receiver's AE title"},
	&cli.IntFlag{Name: "port", Value: 4242, Usage: "TCP port to listen on"},
	&cli.IntFlag{Name: "max-connections", Value: 10, Usage: "maximum concurrent associations"},
	&cli.StringFlag{Name: "config", Usage: "optional YAML file providing defaults for the flags above"},
}

func main() {
	app := &cli.App{
		Name:   "dicomrecv",
		Usage:  "receive DICOM objects over a C-STORE association and store them to disk",
		Flags:  receiveFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dicomrecv:", err)
		os.Exit(1)
	}
}

// receiveOptions is the fully-resolved configuration for one receiver run,
// after flags and an optional --config file have been merged.
type receiveOptions struct {
	Output         string
	AETitle        string
	Port           int
	MaxConnections int
}

// resolveReceiveOptions merges c's flags with an optional --config YAML
// file (flags always win over the file) and validates the required fields.
func resolveReceiveOptions(c *cli.Context) (receiveOptions, error) {
	opts := receiveOptions{
		Output:         c.String("output"),
		AETitle:        c.String("ae-title"),
		Port:           c.Int("port"),
		MaxConnections: c.Int("max-connections"),
	}

	if path := c.String("config"); path != "" {
		cfg, err := loadFileConfig(path)
		if err != nil {
			return opts, fmt.Errorf("load config: %w", err)
		}
		if !c.IsSet("output") && cfg.Output != "" {
			opts.Output = cfg.Output
		}
		if !c.IsSet("ae-title") && cfg.AETitle != "" {
			opts.AETitle = cfg.AETitle
		}
		if !c.IsSet("port") && cfg.Port != 0 {
			opts.Port = cfg.Port
		}
		if !c.IsSet("max-connections") && cfg.MaxConnections != 0 {
			opts.MaxConnections = cfg.MaxConnections
		}
	}

	if opts.Output == "" {
		return opts, errors.New("--output is required")
	}

	return opts, nil
}

func run(c *cli.Context) error {
	opts, err := resolveReceiveOptions(c)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	receiver, err := session.NewReceiver(session.ReceiverConfig{
		AETitle:        opts.AETitle,
		Address:        fmt.Sprintf(":%d", opts.Port),
		OutputDir:      opts.Output,
		MaxConnections: opts.MaxConnections,
		Promiscuous:    true,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("build receiver: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = receiver.ListenAndServe(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info().Msg("receiver shut down cleanly")
		return nil
	default:
		logger.Error().Err(err).Msg("receiver terminated unexpectedly")
		return err
	}
}
