// Package main is the entry point for the polis-bind binary.
// It inspects the Cloud Foundry service bindings of the current environment
// and runs the telemetry pipelines assembled from them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	tlspkg "github.com/polisai/polis-bindings/internal/tls"
	"github.com/polisai/polis-bindings/pkg/config"
	"github.com/polisai/polis-bindings/pkg/domain"
	"github.com/polisai/polis-bindings/pkg/exporter"
	"github.com/polisai/polis-bindings/pkg/logging"
	"github.com/polisai/polis-bindings/pkg/telemetry"
)

const (
	defaultLogLevel = "info"
	shutdownTimeout = 10 * time.Second
)

// CLIConfig holds the parsed persistent flags.
type CLIConfig struct {
	Config   string
	LogLevel string
	Pretty   bool
}

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command. lookupEnv supplies both the binding
// catalog and the environment configuration source.
func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polis-bind",
		Short: "Cloud Foundry service binding telemetry for Polis",
		Long: `Discovers Cloud Logging and Dynatrace service bindings from VCAP_SERVICES
and assembles OpenTelemetry exporters for them.

Example:
  polis-bind discover --json
  polis-bind fetch-cert https://dt.example.com/api
  polis-bind run --config bindings.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Write human readable logs instead of JSON")

	rootCmd.AddCommand(
		newDiscoverCmd(lookupEnv),
		newFetchCertCmd(lookupEnv),
		newRunCmd(lookupEnv),
	)
	return rootCmd
}

// parseCLIConfig reads the persistent flags.
func parseCLIConfig(cmd *cobra.Command) (*CLIConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return nil, fmt.Errorf("failed to get pretty flag: %w", err)
	}

	return &CLIConfig{Config: configPath, LogLevel: logLevel, Pretty: pretty}, nil
}

// setup builds the logger and the settings resolver. The configuration file,
// when given, takes precedence over the environment.
func setup(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*slog.Logger, *config.Resolver, error) {
	cliConfig, err := parseCLIConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cliConfig.LogLevel,
		Pretty: cliConfig.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	chain := config.Chain{}
	if cliConfig.Config != "" {
		file, err := config.NewFileSource(cliConfig.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
		}
		chain = append(chain, file)
	}
	chain = append(chain, config.EnvSource{LookupEnv: lookupEnv})

	return logger, config.NewResolver(chain, logger), nil
}

type instanceReport struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Valid       bool   `json:"valid"`
	Credentials string `json:"credentials"`
}

type selectionReport struct {
	Backend   string           `json:"backend"`
	Traces    bool             `json:"traces"`
	Metrics   bool             `json:"metrics"`
	Instances []instanceReport `json:"instances"`
}

func newDiscoverCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the bindings selected for each enabled backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}

			logger, resolver, err := setup(cmd, lookupEnv)
			if err != nil {
				return err
			}

			catalog, err := telemetry.Catalog(lookupEnv, logger)
			if err != nil {
				return fmt.Errorf("parse service bindings: %w", err)
			}

			assembler := exporter.NewAssembler(exporter.Deps{Resolver: resolver, Logger: logger})
			reports := buildReports(assembler.Discover(catalog))

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), reports)
			}
			writeText(cmd.OutOrStdout(), reports)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the selections as JSON")
	return cmd
}

func buildReports(selections []exporter.Selection) []selectionReport {
	reports := make([]selectionReport, 0, len(selections))
	for _, s := range selections {
		report := selectionReport{
			Backend:   s.Backend.Name(),
			Traces:    s.Traces,
			Metrics:   s.Metrics,
			Instances: []instanceReport{},
		}
		for _, instance := range s.Instances {
			creds := s.Backend.Credentials(instance)
			report.Instances = append(report.Instances, instanceReport{
				Name:        instance.Name(),
				Label:       instance.Label(),
				Valid:       creds.Validate(),
				Credentials: creds.String(),
			})
		}
		reports = append(reports, report)
	}
	return reports
}

func writeJSON(w io.Writer, reports []selectionReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeText(w io.Writer, reports []selectionReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "no binding backends enabled")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s (traces=%t metrics=%t): %d binding(s)\n", r.Backend, r.Traces, r.Metrics, len(r.Instances))
		for _, i := range r.Instances {
			status := "valid"
			if !i.Valid {
				status = "incomplete"
			}
			fmt.Fprintf(w, "  %s [%s] %s %s\n", i.Name, i.Label, status, i.Credentials)
		}
	}
}

func newFetchCertCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-cert <url>",
		Short: "Print the PEM certificate presented by a TLS endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspect, err := cmd.Flags().GetBool("inspect")
			if err != nil {
				return fmt.Errorf("failed to get inspect flag: %w", err)
			}

			logger, resolver, err := setup(cmd, lookupEnv)
			if err != nil {
				return err
			}

			downloader := exporter.NewDownloader(resolver, logger)
			pem, ok := downloader.Download(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("%s: %w", args[0], domain.ErrNoCertificate)
			}

			if !inspect {
				_, err = io.WriteString(cmd.OutOrStdout(), pem)
				return err
			}
			summary, err := tlspkg.InspectPEM([]byte(pem), time.Now())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().Bool("inspect", false, "Print a JSON summary of the certificate instead of the PEM")
	return cmd
}

func newRunCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Assemble the exporters and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, resolver, err := setup(cmd, lookupEnv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), logger, resolver, lookupEnv)
		},
	}
}

// run configures telemetry, optionally serves the Prometheus endpoint and
// blocks until ctx is done or a termination signal arrives.
func run(parent context.Context, logger *slog.Logger, resolver *config.Resolver, lookupEnv func(string) (string, bool)) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		Resolver:  resolver,
		LookupEnv: lookupEnv,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("configure telemetry: %w", err)
	}

	var server *http.Server
	errCh := make(chan error, 1)
	if handler, ok := providers.MetricsHandler(); ok {
		addr := config.Resolve(resolver, config.PrometheusAddress)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			_ = providers.Shutdown(context.Background())
			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", otelhttp.NewHandler(handler, "metrics"))
		server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		logger.Info("Serving Prometheus metrics", "address", listener.Addr().String())
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	logger.Info("Starting polis-bind", "selections", len(providers.Selections))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		logger.Error("Metrics server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping metrics server", "error", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("polis-bind stopped")
	return runErr
}
