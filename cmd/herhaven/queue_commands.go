package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"herhaven/internal/api"
	"herhaven/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the submission queues",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	queueCmd.AddCommand(newQueueClearSyncedCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueuePruneCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [" + queueKindNames() + "]...",
		Short: "Show per-status entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				statuses := make([]api.QueueStatus, 0, len(kinds))
				for _, kind := range kinds {
					status, err := q.Status(cmd.Context(), kind)
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, statuses)
				}
				rows, footer := buildQueueStatusRows(statuses)
				fmt.Fprint(cmd.OutOrStdout(), renderTable(queueStatusHeaders, rows, queueStatusAligns, footer))
				if q.Direct() {
					fmt.Fprintln(cmd.OutOrStdout(), "(daemon not running; read from storage)")
				}
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var withPayload bool

	cmd := &cobra.Command{
		Use:   "list <" + queueKindNames() + ">",
		Short: "List queue entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := queue.ParseKind(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				entries, err := q.List(cmd.Context(), kind, listStatuses, withPayload)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.EntryListResponse{Kind: string(kind), Entries: api.SortEntriesNewestFirst(entries)})
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "The %s queue is empty\n", kind)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(queueListHeaders, buildQueueListRows(entries, time.Now()), queueListAligns, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by entry status (repeatable)")
	cmd.Flags().BoolVar(&withPayload, "payload", false, "Include raw payloads (JSON output only)")
	return cmd
}

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain [" + queueKindNames() + "]...",
		Short: "Submit pending entries now",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				results := make([]api.DrainInfo, 0, len(kinds))
				for _, kind := range kinds {
					info, err := q.Drain(cmd.Context(), kind)
					if err != nil {
						return fmt.Errorf("drain %s: %w", kind, err)
					}
					results = append(results, info)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				for _, info := range results {
					if info.Skipped {
						fmt.Fprintf(out, "%s: drain already in progress\n", info.Kind)
						continue
					}
					fmt.Fprintf(out, "%s: %d attempted, %d synced, %d retrying, %d failed, %d purged\n",
						info.Kind, info.Attempted, info.Synced, info.Retrying, info.Failed, info.Purged)
				}
				return nil
			})
		},
	}
}

func newQueueClearSyncedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-synced [" + queueKindNames() + "]...",
		Short: "Remove delivered entries regardless of age",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				for _, kind := range kinds {
					removed, err := q.ClearSynced(cmd.Context(), kind)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: cleared %d synced entries\n", kind, removed)
				}
				return nil
			})
		},
	}
}

func newQueuePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune [" + queueKindNames() + "]...",
		Short: "Keep only pending and in-flight entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				for _, kind := range kinds {
					removed, err := q.RetainActive(cmd.Context(), kind)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: pruned %d synced or failed entries\n", kind, removed)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <" + queueKindNames() + "> <id>...",
		Short: "Remove specific entries",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := queue.ParseKind(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueues(cmd, func(q queueAPI) error {
				out := cmd.OutOrStdout()
				var missing int
				for _, id := range args[1:] {
					removed, err := q.Remove(cmd.Context(), kind, id)
					if err != nil {
						return err
					}
					if removed == 0 {
						missing++
						fmt.Fprintf(out, "Entry %s not found\n", id)
						continue
					}
					fmt.Fprintf(out, "Removed entry %s\n", id)
				}
				if missing == len(args)-1 {
					return errors.New("no entries removed")
				}
				return nil
			})
		},
	}
}
