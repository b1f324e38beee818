package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"herhaven/internal/api"
	"herhaven/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		follow bool
		queue  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{Limit: limit})
				if err != nil {
					return err
				}
				printLogEvents(out, resp.Events, queue)
				next := resp.Next
				for follow {
					if err := cmd.Context().Err(); err != nil {
						return nil
					}
					resp, err := client.LogTail(ipc.LogTailRequest{Since: next, Limit: limit, Follow: true, WaitMillis: 10000})
					if err != nil {
						return err
					}
					printLogEvents(out, resp.Events, queue)
					next = resp.Next
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "lines", "n", 50, "Number of events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().StringVar(&queue, "queue", "", "Only show events for one queue")
	return cmd
}

func printLogEvents(out io.Writer, events []api.LogEvent, queueFilter string) {
	for _, evt := range events {
		if queueFilter != "" && !strings.EqualFold(queueFilter, evt.Queue) {
			continue
		}
		fmt.Fprintln(out, formatLogEvent(evt))
	}
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, " %-5s", evt.Level)
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if evt.Queue != "" {
		fmt.Fprintf(&b, " queue=%s", evt.Queue)
	}
	if evt.EntryID != "" {
		fmt.Fprintf(&b, " entry=%s", evt.EntryID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}
	return b.String()
}
