package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"easel/internal/queue"
)

const promptColumnWidth = 48

var statusCaser = cases.Title(language.English)

func formatStatusLabel(status queue.Status) string {
	return statusCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

func truncatePrompt(prompt string, width int) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	runes := []rune(prompt)
	if len(runes) <= width {
		return prompt
	}
	return string(runes[:width-3]) + "..."
}

// buildQueueStatusRows orders counts by lifecycle position and drops empty
// statuses so the summary stays readable.
func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count := stats[status]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(status), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(subs []*queue.Submission) [][]string {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, []string{
			strconv.FormatInt(sub.ID, 10),
			truncatePrompt(sub.Prompt, promptColumnWidth),
			formatStatusLabel(sub.Status),
			string(queue.LaneForStatus(sub.Status)),
			sub.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid submission id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
