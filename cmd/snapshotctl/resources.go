package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-snapshot/resources"
)

var resourceCulture string

var resourcesCmd = &cobra.Command{
	Use:   "resources [payload.json]",
	Short: "List the resources of a payload as seen from a culture",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := loadPayload(cmd.Context(), args)
		if err != nil {
			return err
		}
		svc, err := payload.ResourceService()
		if err != nil {
			return fmt.Errorf("failed to decode resources: %w", err)
		}

		culture := payload.Culture
		if resourceCulture != "" {
			culture = resources.ParseCulture(resourceCulture)
		}
		store := resources.NewStore(svc, culture)

		flat, err := store.Flatten(culture)
		if err != nil {
			return err
		}
		keys, err := store.Keys("")
		if err != nil {
			return err
		}

		pterm.DefaultSection.Printfln("Resources (%s)", culture)
		rows := pterm.TableData{{"Key", "Value", "Layer"}}
		for _, key := range keys {
			rows = append(rows, []string{key, fmt.Sprint(flat[key]), layerOf(store, culture, key)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}

		meta, err := store.MetadataEntries()
		if err != nil {
			return err
		}
		if len(meta) == 0 {
			return nil
		}
		pterm.DefaultSection.Println("Metadata")
		rows = pterm.TableData{{"Key", "Value"}}
		for _, entry := range meta {
			rows = append(rows, []string{entry.Name, fmt.Sprint(entry.Value)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

// layerOf names the culture whose layer supplies key.
func layerOf(store *resources.Store, culture resources.Culture, key string) string {
	for _, c := range culture.Chain() {
		entries, err := store.Entries(c)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.Name == key {
				return c.String()
			}
		}
	}
	return "-"
}

func init() {
	resourcesCmd.Flags().StringVar(&resourceCulture, "culture", "", "Culture to read through (defaults to the payload's culture)")
}
