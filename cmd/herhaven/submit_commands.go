package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"herhaven/internal/api"
	"herhaven/internal/queue"
	"herhaven/internal/submission"
)

func newSOSCommand(ctx *commandContext) *cobra.Command {
	sosCmd := &cobra.Command{
		Use:   "sos",
		Short: "Raise SOS alerts",
	}

	var (
		lat, lng, accuracy float64
		note, payloadFile  string
		offline            bool
	)
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Queue an SOS alert for delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayloadFile(cmd, payloadFile)
			if err != nil {
				return err
			}
			if payload == nil {
				if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
					return errors.New("--lat and --lng are required unless --file is given")
				}
				req := submission.SOSRequest{
					Location: submission.NewLocation(lat, lng),
					Note:     note,
					Offline:  offline,
				}
				if cmd.Flags().Changed("accuracy") {
					req.Location.Accuracy = &accuracy
				}
				if payload, err = json.Marshal(req); err != nil {
					return err
				}
			}
			return submitPayload(ctx, cmd, queue.KindSOS, payload)
		},
	}
	sendCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	sendCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude in decimal degrees")
	sendCmd.Flags().Float64Var(&accuracy, "accuracy", 0, "Position accuracy in metres")
	sendCmd.Flags().StringVar(&note, "note", "", "Free-text note for responders")
	sendCmd.Flags().BoolVar(&offline, "offline", false, "Mark the alert as raised without connectivity")
	sendCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read the JSON payload from a file (- for stdin)")

	sosCmd.AddCommand(sendCmd)
	return sosCmd
}

func newContactCommand(ctx *commandContext) *cobra.Command {
	contactCmd := &cobra.Command{
		Use:   "contact",
		Short: "Send contact messages",
	}

	var msg submission.ContactMessage
	var payloadFile string
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Queue a contact message for delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayloadFile(cmd, payloadFile)
			if err != nil {
				return err
			}
			if payload == nil {
				if payload, err = json.Marshal(msg); err != nil {
					return err
				}
			}
			return submitPayload(ctx, cmd, queue.KindContact, payload)
		},
	}
	sendCmd.Flags().StringVar(&msg.FirstName, "first-name", "", "Sender first name")
	sendCmd.Flags().StringVar(&msg.LastName, "last-name", "", "Sender last name")
	sendCmd.Flags().StringVar(&msg.Email, "email", "", "Reply-to email address")
	sendCmd.Flags().StringVar(&msg.Phone, "phone", "", "Optional phone number")
	sendCmd.Flags().StringVarP(&msg.Message, "message", "m", "", "Message body")
	sendCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read the JSON payload from a file (- for stdin)")

	contactCmd.AddCommand(sendCmd)
	return contactCmd
}

// readPayloadFile returns nil when no file was requested.
func readPayloadFile(cmd *cobra.Command, path string) (json.RawMessage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return json.RawMessage(data), nil
}

func submitPayload(ctx *commandContext, cmd *cobra.Command, kind queue.Kind, payload json.RawMessage) error {
	return ctx.withQueues(cmd, func(q queueAPI) error {
		resp, err := q.Submit(cmd.Context(), kind, payload)
		if err != nil {
			return describeSubmitError(err)
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, resp)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Queued %s entry %s\n", kind, resp.ID)
		switch {
		case q.Direct():
			fmt.Fprintln(out, "Daemon not running; the entry is delivered once `herhaven start` runs or `herhaven queue drain` runs")
		case !resp.Online:
			fmt.Fprintln(out, "Remote API unreachable; delivery resumes when connectivity returns")
		}
		return nil
	})
}

func describeSubmitError(err error) error {
	var verr *submission.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	resp := api.ErrorFrom(err)
	lines := make([]string, 0, len(resp.Problems)+1)
	lines = append(lines, "payload rejected:")
	for _, p := range resp.Problems {
		lines = append(lines, fmt.Sprintf("  %s: %s", p.Field, p.Reason))
	}
	return errors.New(strings.Join(lines, "\n"))
}
