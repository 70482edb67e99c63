package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video and create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			doc, err := client.upload(args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded project %s (version %d)\n", doc.ID, doc.Version)
			if doc.URL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), doc.URL)
			}
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			page, err := client.list(offset, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Projects))
			for _, doc := range page.Projects {
				codec, duration, size := "-", "-", "-"
				if doc.Metadata != nil {
					codec = doc.Metadata.CodecName
					duration = formatDuration(doc.Metadata.Duration)
					size = formatBytes(doc.Metadata.Size)
				}
				state := "ready"
				if doc.Processing {
					state = "processing"
				}
				rows = append(rows, []string{
					doc.ID,
					strconv.Itoa(doc.Version),
					truncate(doc.OriginalFilename, 32),
					codec,
					duration,
					size,
					state,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Ver", "Filename", "Codec", "Duration", "Size", "State"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d projects\n", len(page.Projects), page.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "List offset")
	cmd.Flags().IntVar(&limit, "limit", 20, "List page size")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printField(out, "id", doc.ID)
			printField(out, "original_filename", doc.OriginalFilename)
			printField(out, "version", strconv.Itoa(doc.Version))
			if doc.Parent != "" {
				printField(out, "parent", doc.Parent)
			}
			printField(out, "processing", strconv.FormatBool(doc.Processing))
			printField(out, "mime_type", doc.MimeType)
			if doc.URL != "" {
				printField(out, "url", doc.URL)
			}
			printField(out, "create_date", doc.CreateDate.Format("2006-01-02 15:04:05"))
			if meta := doc.Metadata; meta != nil {
				printField(out, "codec_name", meta.CodecName)
				printField(out, "dimensions", fmt.Sprintf("%dx%d", meta.Width, meta.Height))
				printField(out, "duration", formatDuration(meta.Duration))
				printField(out, "size", formatBytes(meta.Size))
			}
			for count, set := range doc.Thumbnails {
				printField(out, "timeline_set", fmt.Sprintf("%s frames (%d stored)", count, len(set)))
			}
			if doc.PreviewThumbnail != nil {
				printField(out, "preview_thumbnail", doc.PreviewThumbnail.Filename)
			}

			jobs, err := client.jobs(doc.ID, 5)
			if err == nil && len(jobs.Jobs) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(jobs.Jobs))
				for _, job := range jobs.Jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Kind,
						job.Status,
						strconv.Itoa(job.Attempts),
						truncate(job.LastError, 48),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Kind", "Status", "Attempts", "Last Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
			}
			return nil
		},
	}
}

func printField(out io.Writer, field, value string) {
	fmt.Fprintf(out, "%-20s %s\n", displayLabel(field)+":", value)
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and its derived versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.deleteProject(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", args[0])
			return nil
		},
	}
}
