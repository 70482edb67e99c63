package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigInitCommand(ctx))
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.cfgPath != "" {
				printField(out, "config_file", ctx.cfgPath)
			}
			printField(out, "media_dir", cfg.Paths.MediaDir)
			printField(out, "data_dir", cfg.Paths.DataDir)
			printField(out, "log_dir", cfg.Paths.LogDir)
			printField(out, "api_bind", cfg.Paths.APIBind)
			printField(out, "retry_limit", strconv.Itoa(cfg.Workflow.RetryLimit))
			printField(out, "retry_delay_seconds", strconv.Itoa(cfg.Workflow.RetryDelaySeconds))
			printField(out, "workers", strconv.Itoa(cfg.Workflow.Workers))
			printField(out, "allowed_codecs", strings.Join(cfg.Media.AllowedCodecs, ", "))
			printField(out, "default_timeline_count", strconv.Itoa(cfg.Media.DefaultTimelineCount))
			if cfg.Media.PublicBaseURL != "" {
				printField(out, "public_base_url", cfg.Media.PublicBaseURL)
			}
			printField(out, "log_level", cfg.Logging.Level)
			printField(out, "log_format", cfg.Logging.Format)
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if ctx.configFlag != nil && strings.TrimSpace(*ctx.configFlag) != "" {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", path)
				}
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
