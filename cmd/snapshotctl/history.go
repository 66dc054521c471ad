package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-snapshot/pkg/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and move through the undo history of a document",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded payloads, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), false, func(h *state.History) error {
			current, _ := h.Current()
			rows := pterm.TableData{{"", "ID", "Label", "Recorded", "Names"}}
			for _, entry := range h.Entries() {
				marker := ""
				if entry.ID == current.ID {
					marker = "*"
				}
				names := 0
				if entry.Payload != nil {
					names = len(entry.Payload.Names)
				}
				rows = append(rows, []string{
					marker,
					entry.ID.String(),
					entry.Label,
					entry.RecordedAt.Format("2006-01-02 15:04:05"),
					fmt.Sprint(names),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		})
	},
}

var historyUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Step the history back one entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), true, func(h *state.History) error {
			if _, err := h.Undo(); err != nil {
				return err
			}
			current, _ := h.Current()
			pterm.Success.Printfln("current: %s %s", current.ID, current.Label)
			return nil
		})
	},
}

var historyRedoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Step the history forward one entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), true, func(h *state.History) error {
			if _, err := h.Redo(); err != nil {
				return err
			}
			current, _ := h.Current()
			pterm.Success.Printfln("current: %s %s", current.ID, current.Label)
			return nil
		})
	},
}

var recordLabel string

var historyRecordCmd = &cobra.Command{
	Use:   "record <payload.json>",
	Short: "Record a payload file as the new current entry and store it for --doc",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := loadPayload(cmd.Context(), args)
		if err != nil {
			return err
		}
		err = withHistory(cmd.Context(), true, func(h *state.History) error {
			entry, err := h.Record(recordLabel, payload)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("recorded %s", entry.ID)
			return nil
		})
		if err != nil {
			return err
		}

		ref, _ := documentRef()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := state.OpenPayloadStore(cfg.State.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		_, err = store.Save(cmd.Context(), ref, payload, state.Meta{SnapshotID: payload.ID.String()})
		return err
	},
}

var exportPath string

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current payload as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), false, func(h *state.History) error {
			current, ok := h.Current()
			if !ok {
				return state.ErrNothingToUndo
			}
			data, err := current.Payload.Encode()
			if err != nil {
				return err
			}
			if exportPath == "" || exportPath == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(exportPath, data, 0o644); err != nil {
				return err
			}
			pterm.Success.Printfln("wrote %s", exportPath)
			return nil
		})
	},
}

// withHistory loads the history for --doc, runs fn and, when save is set,
// writes it back guarded by the loaded ETag.
func withHistory(ctx context.Context, save bool, fn func(*state.History) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ref, err := documentRef()
	if err != nil {
		return fmt.Errorf("--doc is required: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := state.NewSQLiteStore[state.HistoryLog](cfg.State.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	h, meta, err := state.LoadHistory(ctx, store, ref.History())
	if err != nil {
		return err
	}
	if len(h.Entries()) == 0 {
		h = state.NewHistory(cfg.State.HistoryLimit)
	}
	if err := fn(h); err != nil {
		return err
	}
	if !save {
		return nil
	}
	_, err = state.SaveHistory(ctx, store, ref.History(), h, state.Meta{ETag: meta.ETag})
	return err
}

func init() {
	historyRecordCmd.Flags().StringVarP(&recordLabel, "label", "l", "", "Label for the history entry")
	historyExportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Output file (stdout when empty)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyUndoCmd)
	historyCmd.AddCommand(historyRedoCmd)
	historyCmd.AddCommand(historyExportCmd)
}
