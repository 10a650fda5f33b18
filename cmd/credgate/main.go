package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/credgate/credgate/internal/analyzer"
	"github.com/credgate/credgate/internal/authlog"
	"github.com/credgate/credgate/internal/config"
	"github.com/credgate/credgate/internal/gate"
	"github.com/credgate/credgate/internal/ratelimit"
	"github.com/credgate/credgate/internal/store"
	pkglogger "github.com/credgate/credgate/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	gate     *gate.Gate
	analyzer *analyzer.Analyzer
	recorder *authlog.Recorder
}

func newApp() (*app, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.Open(cfg.Store.Path, cfg.Store.Pepper, logger)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxAttempts)
	recorder := authlog.NewFile(cfg.AuthLog.Path, cfg.AuthLog.MaxSizeMB, cfg.AuthLog.MaxBackups)
	audit := pkglogger.NewAuditLogger(logger)

	g := gate.New(st, limiter, recorder, gate.Config{
		HashAlgorithm:    st.HashAlgorithm(),
		PepperConfigured: true,
		Policy:           cfg.Policy,
	}, logger, audit)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		gate:     g,
		analyzer: analyzer.New(cfg.AuthLog.Path, cfg.Analyzer.SuspiciousUsernames, logger),
		recorder: recorder,
	}, nil
}

func (a *app) close() {
	a.recorder.Close()
	a.store.Close()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credgate",
		Short:         "Embedded authentication security subsystem",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd(), newSecurityInfoCmd(), newUsersCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var (
		hours  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the authentication log for attack patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if hours <= 0 {
				hours = a.cfg.Analyzer.HoursBack
			}
			report := a.analyzer.AnalyzeLogs(hours)

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Security Analysis (last %d hours)\n", hours)
			fmt.Fprintf(out, "Total events: %d\n", report.TotalEvents)
			if report.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", report.Error)
			}
			if len(report.FailedAttempts) > 0 {
				fmt.Fprintln(out, "\nFailed authentication attempts:")
				for username, count := range report.FailedAttempts {
					fmt.Fprintf(out, "  %s: %d\n", username, count)
				}
			}
			if len(report.BruteForceAttempts) > 0 {
				fmt.Fprintln(out, "\nPotential brute force attacks:")
				for username, c := range report.BruteForceAttempts {
					fmt.Fprintf(out, "  %s: %d attempts (%d rapid) over %.1f minutes [%s]\n",
						username, c.TotalAttempts, c.RapidAttempts, c.TimeSpanMinutes, c.Severity)
				}
			}
			if len(report.SuspiciousUsernames) > 0 {
				fmt.Fprintln(out, "\nSuspicious username attempts:")
				for _, username := range report.SuspiciousUsernames {
					fmt.Fprintf(out, "  %s\n", username)
				}
			}
			if len(report.TestDataInLogs) > 0 {
				fmt.Fprintf(out, "\nTest data in production logs: %d entries\n", len(report.TestDataInLogs))
			}
			fmt.Fprintln(out, "\nRecommendations:")
			for i, rec := range report.Recommendations {
				fmt.Fprintf(out, "  %d. %s\n", i+1, rec)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "analysis window in hours (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	return cmd
}

func newSecurityInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "security-info",
		Short: "Print the active security configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.gate.SecurityInfo())
		},
	}
}

func newUsersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Non-interactive user administration",
	}

	var adminUser string

	list := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.gate.ListUsers(context.Background()))
		},
	}

	unlock := &cobra.Command{
		Use:   "unlock <username>",
		Short: "Unlock a user account and clear its rate-limit state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			res := a.gate.UnlockUser(context.Background(), args[0], adminUser)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.OK {
				os.Exit(1)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			res := a.gate.DeleteUser(context.Background(), args[0], adminUser)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.OK {
				os.Exit(1)
			}
			return nil
		},
	}

	users.PersistentFlags().StringVar(&adminUser, "admin", "cli", "administrator performing the operation")
	users.AddCommand(list, unlock, del)
	return users
}
