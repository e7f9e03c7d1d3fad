// Command ticketbot runs the ticket bot on Discord and Telegram.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/m3rciful/ticketbot/core/buildinfo"
	"github.com/m3rciful/ticketbot/core/cmd"
	coreconfig "github.com/m3rciful/ticketbot/core/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "ticketbot",
		Short:        "Prefix command bot for support tickets",
		SilenceUsage: true,
		Version:      buildinfo.String(),
		RunE:         func(c *cobra.Command, _ []string) error { return runBot(c.Context(), configPath) },
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("CONFIG_PATH", defaultConfigPath), "path to the YAML config")
	root.AddCommand(
		newRunCmd(&configPath),
		newCommandsCmd(),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the configured chat platforms and serve commands",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runBot(c.Context(), *configPath)
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands the bot registers",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return listCommands(c.Context(), c.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintf(c.OutOrStdout(), "ticketbot %s\n", buildinfo.String())
			if buildinfo.Date != "" {
				fmt.Fprintf(c.OutOrStdout(), "  Build: %s\n", buildinfo.Date)
			}
			fmt.Fprintf(c.OutOrStdout(), "  Go: %s\n", runtime.Version())
		},
	}
}

func runBot(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return cmd.Run(ctx, cmd.Options{Config: cfg})
}

// listCommands prints the registry built with default settings and no plugins.
func listCommands(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := &coreconfig.Config{Commands: coreconfig.CommandsConfig{
		DefaultPrefix:      coreconfig.DefaultPrefix,
		DefaultLocale:      coreconfig.DefaultLocale,
		ErrorColour:        coreconfig.DefaultErrorColour,
		SuccessColour:      coreconfig.DefaultSuccessColour,
		ExecTimeoutSeconds: coreconfig.DefaultExecTimeout,
	}}
	app, err := cmd.NewApp(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tALIASES\tMODE\tPERMISSIONS\tSTAFF")
	for _, d := range app.Registry.Commands() {
		perms := make([]string, 0, len(d.Permissions))
		for _, p := range d.Permissions {
			perms = append(perms, string(p))
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%t\n",
			cfg.Commands.DefaultPrefix, d.Name,
			dash(strings.Join(slices.DeleteFunc(slices.Clone(d.Aliases), func(a string) bool { return a == d.Name }), ",")),
			d.Mode,
			dash(strings.Join(perms, ",")),
			d.StaffOnly,
		)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
