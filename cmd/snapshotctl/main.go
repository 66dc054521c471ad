package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	snapshot "github.com/goliatone/go-snapshot"
	"github.com/goliatone/go-snapshot/internal/config"
	"github.com/goliatone/go-snapshot/pkg/state"
)

var (
	rootCmd = &cobra.Command{
		Use:           "snapshotctl",
		Short:         "Inspect snapshot payloads, their resources and undo history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
	document   string
	owner      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the payload database (SQLite); defaults to state.path from config")
	rootCmd.PersistentFlags().StringVar(&document, "doc", "", "Document name in the database")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "Document owner in the database")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.State.Path = dbPath
	}
	return cfg, nil
}

func documentRef() (state.Ref, error) {
	ref := state.Ref{Document: document, Owner: owner}
	if _, err := ref.Identifier(); err != nil {
		return state.Ref{}, err
	}
	return ref, nil
}

// loadPayload reads a payload file when one is given, otherwise the payload
// stored for --doc.
func loadPayload(ctx context.Context, args []string) (*snapshot.Payload, error) {
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return snapshot.DecodePayload(data)
	}

	ref, err := documentRef()
	if err != nil {
		return nil, fmt.Errorf("pass a payload file or --doc: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := state.OpenPayloadStore(cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	payload, _, ok, err := store.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrNotFound, ref.Document)
	}
	return payload, nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
