package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newThumbsCommand(ctx *commandContext) *cobra.Command {
	var count int
	var force bool

	cmd := &cobra.Command{
		Use:   "thumbs <id>",
		Short: "Request timeline thumbnails for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			existing, job, err := client.thumbnails(args[0], count, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if job != nil {
				fmt.Fprintf(out, "queued timeline job %d\n", job.ID)
				return nil
			}
			fmt.Fprintf(out, "timeline already generated (%d frames)\n", len(existing.Thumbnails))
			for _, thumb := range existing.Thumbnails {
				if thumb.URL != "" {
					fmt.Fprintln(out, thumb.URL)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Frame count (0 uses the configured default)")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even when a set exists")
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var imagePath string
	var timestamp float64

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Set a project's preview thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath == "" && timestamp < 0 {
				return fmt.Errorf("one of --image or --timestamp is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read %s: %w", imagePath, err)
				}
				thumb, err := client.previewFromImage(args[0], data, imagePath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "preview set to %s\n", thumb.Filename)
				return nil
			}

			thumb, err := client.previewAtTimestamp(args[0], timestamp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "preview captured at %.2fs as %s\n", timestamp, thumb.Filename)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Image file to use as the preview")
	cmd.Flags().Float64Var(&timestamp, "timestamp", -1, "Capture position in seconds")
	return cmd
}
