// Command bgpstreamcli drives the StreamFacade (spec §4.9, §6): it
// loads a run configuration, opens a historic or live BGPElement
// stream, and writes the spec §6 textual projection of each element to
// stdout until the stream is exhausted, a fatal error is raised, or
// the process is interrupted.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpstream-engine/bgpstream/broker"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
	"github.com/bgpstream-engine/bgpstream/stream/facade"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML run configuration (overlaid by BGPSTREAM_ env vars)")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	rc, err := loadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("config")
		return stream.ExitCode(stream.ConfigErrorf("%v", err))
	}

	cfg, err := toStreamConfig(rc)
	if err != nil {
		logger.Error().Err(err).Msg("config")
		return stream.ExitCode(stream.ConfigErrorf("%v", err))
	}

	opts := facade.Options{
		BrokerOptions: broker.Options{BaseURL: rc.BrokerBaseURL},
		LiveURL:       rc.LiveURL,
		Retry:         retry.Default,
		Logger:        &logger,
	}

	f, err := facade.New(*cfg, opts)
	if err != nil {
		logger.Error().Err(err).Msg("opening stream")
		return stream.ExitCode(err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		select {
		case <-ctx.Done():
			logger.Warn().Msg("interrupted, closing stream")
			return 130
		default:
		}

		e, ok, err := f.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 130
			}
			logger.Error().Err(err).Msg("stream error")
			return stream.ExitCode(err)
		}
		if !ok {
			break
		}
		fmt.Fprintln(out, e.Projection())
	}

	summary := f.Diagnostics().Summary()
	for kind, n := range summary {
		logger.Info().Str("kind", kind).Uint64("count", n).Msg("diagnostics")
	}
	return 0
}
