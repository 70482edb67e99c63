package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/videoeditor"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Queue edits against a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newEditApplyCommand(ctx, false))
	cmd.AddCommand(newEditApplyCommand(ctx, true))
	return cmd
}

func newEditApplyCommand(ctx *commandContext, fork bool) *cobra.Command {
	var (
		cutFlag    string
		cropFlag   string
		rotateFlag int
		crfFlag    int
	)

	use, short := "put <id>", "Edit a derived project in place"
	if fork {
		use, short = "post <id>", "Fork an original project with an edit"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := buildEditSpec(cutFlag, cropFlag, rotateFlag, crfFlag)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.edit(args[0], spec, fork)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Project != nil {
				fmt.Fprintf(out, "created fork %s (version %d)\n", result.Project.ID, result.Project.Version)
			}
			if result.Job != nil {
				fmt.Fprintf(out, "queued edit job %d\n", result.Job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cutFlag, "cut", "", "Trim range as start:end in seconds, e.g. 5:10")
	cmd.Flags().StringVar(&cropFlag, "crop", "", "Crop window as WxH+X+Y, e.g. 640x480+10+20")
	cmd.Flags().IntVar(&rotateFlag, "rotate", 0, "Rotation in degrees")
	cmd.Flags().IntVar(&crfFlag, "crf", -1, "Constant quality level (0-51)")
	return cmd
}

func buildEditSpec(cut, crop string, rotate, crf int) (videoeditor.EditSpec, error) {
	var spec videoeditor.EditSpec

	if cut != "" {
		startStr, endStr, found := strings.Cut(cut, ":")
		if !found {
			return spec, fmt.Errorf("invalid --cut %q, want start:end", cut)
		}
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return spec, fmt.Errorf("invalid --cut start %q", startStr)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return spec, fmt.Errorf("invalid --cut end %q", endStr)
		}
		spec.Cut = &videoeditor.CutSpec{Start: start, End: end}
	}

	if crop != "" {
		dims, offsets, found := strings.Cut(crop, "+")
		if !found {
			return spec, fmt.Errorf("invalid --crop %q, want WxH+X+Y", crop)
		}
		widthStr, heightStr, foundDims := strings.Cut(dims, "x")
		xStr, yStr, foundOffsets := strings.Cut(offsets, "+")
		if !foundDims || !foundOffsets {
			return spec, fmt.Errorf("invalid --crop %q, want WxH+X+Y", crop)
		}
		width, errW := strconv.Atoi(widthStr)
		height, errH := strconv.Atoi(heightStr)
		x, errX := strconv.Atoi(xStr)
		y, errY := strconv.Atoi(yStr)
		if errW != nil || errH != nil || errX != nil || errY != nil {
			return spec, fmt.Errorf("invalid --crop %q, want WxH+X+Y", crop)
		}
		spec.Crop = &videoeditor.CropSpec{Width: width, Height: height, X: x, Y: y}
	}

	if rotate != 0 {
		spec.Rotate = &videoeditor.RotateSpec{Degree: rotate}
	}
	if crf >= 0 {
		spec.Quality = &videoeditor.QualitySpec{CRF: crf}
	}

	if spec.IsZero() {
		return spec, fmt.Errorf("at least one of --cut, --crop, --rotate, --crf is required")
	}
	return spec, nil
}
