// Command dicomsend indexes local DICOM files and sends them to a remote
// SCP over one or more C-STORE associations, reporting a per-session JSON
// summary on completion.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/dicomstore/dicomstore/session"
)

// sessionSummary is the JSON report written to stdout after a send
// completes: one indented JSON object describing the whole session.
type sessionSummary struct {
	SessionID             string   `json:"sessionId"`
	StartTime             string   `json:"startTime"`
	EndTime               string   `json:"endTime"`
	TotalFiles            int      `json:"totalFiles"`
	SuccessfulTransfers   int      `json:"successfulTransfers"`
	FailedTransfers       int      `json:"failedTransfers"`
	TotalBytes            int64    `json:"totalBytes"`
	TotalTimeMs           float64  `json:"totalTimeMs"`
	AverageTransferTimeMs float64  `json:"averageTransferTimeMs"`
	ThroughputMBps        float64  `json:"throughputMBps"`
	ThreadsUsed           int      `json:"threadsUsed"`
	Destination           string   `json:"destination"`
	CallingAE             string   `json:"callingAe"`
	CalledAE              string   `json:"calledAe"`
	StudiesProcessed      []string `json:"studiesProcessed"`
}

var sendFlags = []cli.Flag{
	&cli.StringFlag{Name: "input", Usage: "file or directory of .dcm files to send"},
	&cli.BoolFlag{Name: "recursive", Usage: "descend into subdirectories of --input"},
	&cli.StringFlag{Name: "calling-ae", Value: "RUST_SCU", Usage: "this sender's AE title"},
	&cli.StringFlag{Name: "ae-title", Usage: "the destination's AE title"},
	&cli.StringFlag{Name: "host", Usage: "destination host"},
	&cli.IntFlag{Name: "port", Usage: "destination port"},
	&cli.IntFlag{Name: "threads", Value: 1, Usage: "number of worker associations"},
	&cli.StringFlag{Name: "config", Usage: "optional YAML file providing defaults for the flags above"},
}

func main() {
	app := &cli.App{
		Name:   "dicomsend",
		Usage:  "send local DICOM files to a remote AE over C-STORE",
		Flags:  sendFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dicomsend:", err)
		os.Exit(1)
	}
}

// sendOptions is the fully-resolved configuration for one send, after
// flags and an optional --config file have been merged.
type sendOptions struct {
	Input     string
	Recursive bool
	CallingAE string
	AETitle   string
	Host      string
	Port      int
	Threads   int
}

// resolveSendOptions merges c's flags with an optional --config YAML file
// (flags always win over the file) and validates the required fields.
func resolveSendOptions(c *cli.Context) (sendOptions, error) {
	opts := sendOptions{
		Input:     c.String("input"),
		Recursive: c.Bool("recursive"),
		CallingAE: c.String("calling-ae"),
		AETitle:   c.String("ae-title"),
		Host:      c.String("host"),
		Port:      c.Int("port"),
		Threads:   c.Int("threads"),
	}

	if path := c.String("config"); path != "" {
		cfg, err := loadFileConfig(path)
		if err != nil {
			return opts, fmt.Errorf("load config: %w", err)
		}
		if !c.IsSet("input") && cfg.Input != "" {
			opts.Input = cfg.Input
		}
		if !c.IsSet("recursive") && cfg.Recursive {
			opts.Recursive = cfg.Recursive
		}
		if !c.IsSet("calling-ae") && cfg.CallingAE != "" {
			opts.CallingAE = cfg.CallingAE
		}
		if !c.IsSet("ae-title") && cfg.AETitle != "" {
			opts.AETitle = cfg.AETitle
		}
		if !c.IsSet("host") && cfg.Host != "" {
			opts.Host = cfg.Host
		}
		if !c.IsSet("port") && cfg.Port != 0 {
			opts.Port = cfg.Port
		}
		if !c.IsSet("threads") && cfg.Threads != 0 {
			opts.Threads = cfg.Threads
		}
	}

	if opts.Input == "" {
		return opts, fmt.Errorf("--input is required")
	}
	if opts.Host == "" {
		return opts, fmt.Errorf("--host is required")
	}
	if opts.AETitle == "" {
		return opts, fmt.Errorf("--ae-title is required")
	}

	return opts, nil
}

func run(c *cli.Context) error {
	opts, err := resolveSendOptions(c)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	files, err := session.IndexFiles(opts.Input, opts.Recursive, logger)
	if err != nil {
		return fmt.Errorf("index files: %w", err)
	}

	sender := session.NewSender(session.SenderConfig{
		CallingAETitle: opts.CallingAE,
		CalledAETitle:  opts.AETitle,
		Host:           opts.Host,
		Port:           opts.Port,
		Threads:        opts.Threads,
		Logger:         logger,
	})

	startTime := time.Now().UTC()
	stats, studiesProcessed := sender.SendFiles(files)
	endTime := time.Now().UTC()

	summary := sessionSummary{
		SessionID:             uuid.NewString(),
		StartTime:             startTime.Format(time.RFC3339Nano),
		EndTime:               endTime.Format(time.RFC3339Nano),
		TotalFiles:            stats.TotalFiles,
		SuccessfulTransfers:   stats.Successful,
		FailedTransfers:       stats.Failed,
		TotalBytes:            stats.TotalBytes,
		TotalTimeMs:           float64(stats.TotalTime.Microseconds()) / 1000.0,
		AverageTransferTimeMs: stats.AverageTransferTimeMs(),
		ThroughputMBps:        stats.ThroughputMBps(),
		ThreadsUsed:           opts.Threads,
		Destination:           fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		CallingAE:             opts.CallingAE,
		CalledAE:              opts.AETitle,
		StudiesProcessed:      studiesProcessed,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("encode session summary: %w", err)
	}

	return nil
}
