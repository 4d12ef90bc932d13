package main

import (
	"fmt"
	"io"
	"time"

	"easel/internal/queue"
)

func printSubmissionDetail(out io.Writer, sub *queue.Submission) {
	fmt.Fprintf(out, "Submission %d\n", sub.ID)
	fmt.Fprintf(out, "  Status:     %s (%s lane)\n", formatStatusLabel(sub.Status), queue.LaneForStatus(sub.Status))
	fmt.Fprintf(out, "  Prompt:     %s\n", sub.Prompt)
	if sub.SubmitterEmail != "" {
		fmt.Fprintf(out, "  Submitter:  %s\n", sub.SubmitterEmail)
	}
	if sub.PriorityScore != 0 {
		fmt.Fprintf(out, "  Priority:   %d\n", sub.PriorityScore)
	}
	if sub.ProgressStage != "" {
		fmt.Fprintf(out, "  Progress:   %s %.0f%%", sub.ProgressStage, sub.ProgressPercent)
		if sub.ProgressMessage != "" {
			fmt.Fprintf(out, " (%s)", sub.ProgressMessage)
		}
		fmt.Fprintln(out)
	}
	if sub.ArtworkID != "" {
		fmt.Fprintf(out, "  Artwork:    %s\n", sub.ArtworkID)
	}
	if sub.Title != "" {
		fmt.Fprintf(out, "  Title:      %s\n", sub.Title)
	}
	if sub.ArtistStatement != "" {
		fmt.Fprintf(out, "  Statement:  %s\n", sub.ArtistStatement)
	}
	if sub.ArtworkURL != "" {
		fmt.Fprintf(out, "  Gallery:    %s\n", sub.ArtworkURL)
	}
	if sub.ImageURL != "" {
		fmt.Fprintf(out, "  Image:      %s\n", sub.ImageURL)
	}
	if sub.VideoURL != "" {
		fmt.Fprintf(out, "  Video:      %s\n", sub.VideoURL)
	}
	if sub.RecordingFile != "" {
		fmt.Fprintf(out, "  Recording:  %s\n", sub.RecordingFile)
	}
	if sub.CompressedFile != "" {
		fmt.Fprintf(out, "  Compressed: %s\n", sub.CompressedFile)
	}
	if sub.ImageFile != "" {
		fmt.Fprintf(out, "  Image file: %s\n", sub.ImageFile)
	}
	if sub.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:      %s\n", sub.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:    %s\n", sub.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "  Updated:    %s\n", sub.UpdatedAt.UTC().Format(time.RFC3339))
}
