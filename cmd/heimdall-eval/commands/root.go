// Package commands implements the heimdall-eval CLI: one-shot flag
// evaluation against the CDN or a local flag file.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/fetcher"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	sdkKey           string
	baseURL          string
	dataGovernance   string
	overrideFile     string
	overrideBehavior string
	format           string
	timeout          time.Duration
	verbose          bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "heimdall-eval",
		Short: "Evaluate feature flags from the command line",
		Long: `heimdall-eval downloads the config JSON for an SDK key (or reads a local
flag file) and evaluates flags exactly like the SDK does.

Examples:
  heimdall-eval eval darkMode --user-id 42 --email jane@example.com
  heimdall-eval eval plan --attr Tier=gold --verbose
  heimdall-eval all --user-id 42 --format json
  heimdall-eval keys --flag-file flags.yaml --override-behavior local_only`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.sdkKey, "sdk-key", os.Getenv("HEIMDALL_SDK_KEY"), "SDK key (defaults to $HEIMDALL_SDK_KEY)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Custom CDN or proxy URL")
	flags.StringVar(&opts.dataGovernance, "data-governance", "global", "CDN region (global, eu)")
	flags.StringVar(&opts.overrideFile, "flag-file", "", "Local JSON or YAML flag file")
	flags.StringVar(&opts.overrideBehavior, "override-behavior", "local_over_remote", "How the flag file combines with the CDN config (local_only, local_over_remote, remote_over_local)")
	flags.StringVar(&opts.format, "format", string(FormatTable), "Output format (table, json, yaml)")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "HTTP timeout")
	flags.BoolVar(&opts.verbose, "verbose", false, "Print evaluation logs")

	root.AddCommand(newEvalCmd(opts), newAllCmd(opts), newKeysCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newClient creates a manual-polling client and downloads the config once.
func (o *globalOptions) newClient(ctx context.Context, cmd *cobra.Command) (*client.Client, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	governance, err := fetcher.ParseDataGovernance(o.dataGovernance)
	if err != nil {
		return nil, err
	}

	var overrides *override.Overrides
	if o.overrideFile != "" {
		behavior, err := override.ParseBehavior(o.overrideBehavior)
		if err != nil {
			return nil, err
		}
		if overrides, err = override.FromFile(o.overrideFile, behavior); err != nil {
			return nil, err
		}
	}

	c, err := client.New(client.Options{
		SDKKey:         o.sdkKey,
		BaseURL:        o.baseURL,
		DataGovernance: governance,
		PollingMode:    configservice.Manual,
		HTTPTimeout:    o.timeout,
		Overrides:      overrides,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	if err := c.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to download config JSON: %w", err)
	}
	return c, nil
}
