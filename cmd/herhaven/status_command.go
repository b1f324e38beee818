package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"herhaven/internal/api"
	"herhaven/internal/preflight"
	"herhaven/internal/queue"
)

type statusReport struct {
	Daemon *api.DaemonStatus  `json:"daemon,omitempty"`
	Checks []preflight.Result `json:"checks"`
	Queues []api.QueueStatus  `json:"queues"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, service and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{}

			client, dialErr := ctx.dialClient()
			switch {
			case dialErr == nil:
				defer client.Close()
				status, err := client.Status()
				if err != nil {
					return err
				}
				report.Daemon = status
				report.Queues = status.Queues
			case errors.Is(dialErr, errDaemonNotRunning):
				err := ctx.withQueues(cmd, func(q queueAPI) error {
					for _, kind := range queue.Kinds {
						qs, err := q.Status(cmd.Context(), kind)
						if err != nil {
							return err
						}
						report.Queues = append(report.Queues, qs)
					}
					return nil
				})
				if err != nil {
					return err
				}
			default:
				return dialErr
			}

			report.Checks = preflight.RunAll(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			renderStatusReport(newStatusPrinter(cmd.OutOrStdout()), report)
			return nil
		},
	}
}

func renderStatusReport(p *statusPrinter, report statusReport) {
	p.section("Daemon")
	if d := report.Daemon; d != nil {
		p.line("Daemon", severityOK, fmt.Sprintf("running (pid %d)", d.PID))
		if d.Online {
			p.line("Remote API", severityOK, "online")
		} else {
			p.line("Remote API", severityWarn, "offline; submissions are queued")
		}
		if d.BreakerState != "" {
			sev := severityOK
			if d.BreakerState != "closed" {
				sev = severityWarn
			}
			p.line("Circuit breaker", sev, d.BreakerState)
		}
		p.line("Storage", severityInfo, d.StorageBackend)
		if len(d.PendingSync) > 0 {
			p.line("Background sync", severityInfo, strings.Join(d.PendingSync, ", "))
		}
		if d.LastError != "" {
			p.line("Last error", severityError, d.LastError)
		}
	} else {
		p.line("Daemon", severityWarn, "not running")
	}
	fmt.Fprintln(p.out)

	p.section("Checks")
	for _, check := range report.Checks {
		sev := severityOK
		if !check.Passed {
			sev = severityError
		}
		p.line(check.Name, sev, check.Detail)
	}
	fmt.Fprintln(p.out)

	p.section("Queues")
	for _, qs := range report.Queues {
		c := qs.Counts
		p.line(qs.Kind, queueSeverity(c.Pending, c.Failed),
			fmt.Sprintf("%d pending, %d failed, %d synced", c.Pending, c.Failed, c.Synced))
	}
}
