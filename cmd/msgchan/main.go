package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/msgchan/internal/cliconfig"
	"github.com/bft-labs/msgchan/pkg/log"
	"github.com/bft-labs/msgchan/pkg/metrics"
)

const longHelp = `Move length-prefixed frames between a writer and a reader.

Transports:
  mmap   shared memory-mapped file, one frame in flight (cross-process)
  udp    one datagram per frame over loopback or LAN (cross-process)
  ring   lock-free ring buffer inside one process
  queue  buffered Go channel inside one process

Configure via $HOME/.msgchan/config.toml, MSGCHAN_* environment variables, or flags.
Flags win over the environment, which wins over the file.`

var exampleUsage = strings.TrimSpace(`
  msgchan recv --transport mmap --path /dev/shm/orders &
  msgchan send --transport mmap --path /dev/shm/orders --count 1000
  msgchan bench --transport ring --ring-capacity 4096 --payload-size 512
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration and logger to subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  *log.ZerologAdapter
}

func (a *app) log() *zerolog.Logger {
	l := a.logger.Logger()
	return &l
}

// load resolves the configuration: defaults, then file, then MSGCHAN_*
// variables, then flags set on the command line.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = log.NewZerologAdapter(a.cfg.LogLevel)
	a.log().Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func (a *app) signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			a.log().Info().Msg("received signal, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// serveMetrics exposes /metrics when a metrics address is configured. The
// returned function shuts the server down.
func (a *app) serveMetrics() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	metrics.RegisterMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log().Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server")
		}
	}()
	a.log().Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log().Warn().Err(err).Msg("metrics server shutdown")
		}
	}
}

func main() {
	a := &app{
		cfg:    cliconfig.DefaultConfig(),
		logger: log.NewZerologAdapter("info"),
	}

	root := &cobra.Command{
		Use:           "msgchan",
		Short:         "Synchronous message channels over mmap, udp, ring and queue transports",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.msgchan/config.toml)")
	flags.StringVar(&a.cfg.Transport, "transport", a.cfg.Transport, "transport: mmap, udp, ring or queue")
	flags.StringVar(&a.cfg.Path, "path", a.cfg.Path, "mapped file path (mmap)")
	flags.StringVar(&a.cfg.Address, "address", a.cfg.Address, "host:port (udp)")
	flags.StringVar(&a.cfg.Role, "role", a.cfg.Role, "udp role: client or server")
	flags.IntVar(&a.cfg.ConnectAttempts, "connect-attempts", a.cfg.ConnectAttempts, "udp handshake attempts")
	flags.DurationVar(&a.cfg.ConnectDelay, "connect-delay", a.cfg.ConnectDelay, "delay between udp handshake attempts")
	flags.DurationVar(&a.cfg.MaxConnectDelay, "max-connect-delay", a.cfg.MaxConnectDelay, "cap for an exponential udp handshake delay (0 keeps it fixed)")
	flags.IntVar(&a.cfg.MaxMessageSize, "max-message-size", a.cfg.MaxMessageSize, "largest payload in bytes")
	flags.IntVar(&a.cfg.RingCapacity, "ring-capacity", a.cfg.RingCapacity, "ring slots, a power of two (ring)")
	flags.IntVar(&a.cfg.QueueCapacity, "queue-capacity", a.cfg.QueueCapacity, "queued frames (queue)")
	flags.DurationVar(&a.cfg.CloseTimeout, "close-timeout", a.cfg.CloseTimeout, "how long Close waits to deliver the close notification")
	flags.IntVar(&a.cfg.Count, "count", a.cfg.Count, "frames to send (send, bench)")
	flags.IntVar(&a.cfg.PayloadSize, "payload-size", a.cfg.PayloadSize, "payload bytes per frame (send, bench)")
	flags.IntVar(&a.cfg.MessageType, "message-type", a.cfg.MessageType, "frame type to send (send, bench)")
	flags.DurationVar(&a.cfg.WaitTimeout, "wait-timeout", a.cfg.WaitTimeout, "how long recv waits for the mapped file to appear")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address")

	root.AddCommand(newSendCmd(a), newRecvCmd(a), newBenchCmd(a))

	if err := root.Execute(); err != nil {
		a.log().Error().Err(err).Msg("msgchan")
		os.Exit(1)
	}
}
