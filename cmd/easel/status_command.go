package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/api"
	"easel/internal/config"
	"easel/internal/deps"
	"easel/internal/preflight"
	"easel/internal/queue"
)

const daemonProbeTimeout = 3 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, service, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			daemonStatus, daemonErr := fetchDaemonStatus(cmd.Context(), cfg)
			checks := preflight.RunAll(cmd.Context(), cfg)
			dependencies := preflight.CheckSystemDeps(cfg)

			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, buildStatusJSON(daemonStatus, daemonErr, checks, dependencies, stats))
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderDaemonLine(cfg, daemonStatus, daemonErr, colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Service Checks", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, check := range checks {
					kind := statusError
					if check.Passed {
						kind = statusOK
					}
					fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range dependencyLines(dependencies, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Queue Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full status snapshot as JSON")
	return cmd
}

// fetchDaemonStatus asks a running daemon for its status over the local HTTP
// API. A nil status with a nil error means the API is not configured.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}

	probeCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon API returned %s", resp.Status)
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

func renderDaemonLine(cfg *config.Config, status *api.DaemonStatus, probeErr error, colorize bool) string {
	switch {
	case status != nil && status.Running:
		return renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize)
	case status != nil:
		return renderStatusLine("Daemon", statusWarn, "Reachable but workflow stopped", colorize)
	case probeErr == nil:
		return renderStatusLine("Daemon", statusInfo, "API disabled in config", colorize)
	default:
		return renderStatusLine("Daemon", statusWarn, fmt.Sprintf("Not reachable at %s", cfg.Paths.APIBind), colorize)
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func buildStatusJSON(daemonStatus *api.DaemonStatus, daemonErr error, checks []preflight.Result, dependencies []deps.Status, stats map[queue.Status]int) map[string]any {
	type jsonCheck struct {
		Name   string `json:"name"`
		Passed bool   `json:"passed"`
		Detail string `json:"detail,omitempty"`
	}
	type jsonDep struct {
		Name      string `json:"name"`
		Command   string `json:"command,omitempty"`
		Available bool   `json:"available"`
		Detail    string `json:"detail,omitempty"`
	}

	checkItems := make([]jsonCheck, 0, len(checks))
	for _, check := range checks {
		checkItems = append(checkItems, jsonCheck{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	depItems := make([]jsonDep, 0, len(dependencies))
	for _, dep := range dependencies {
		depItems = append(depItems, jsonDep{Name: dep.Name, Command: dep.Command, Available: dep.Available, Detail: dep.Detail})
	}

	result := map[string]any{
		"checks":       checkItems,
		"dependencies": depItems,
		"queueStats":   stats,
	}
	if daemonStatus != nil {
		result["daemon"] = daemonStatus
	} else if daemonErr != nil {
		result["daemonError"] = daemonErr.Error()
	}
	return result
}
