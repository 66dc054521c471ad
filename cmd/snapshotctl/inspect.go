package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-snapshot/ir"
)

var showStatements bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [payload.json]",
	Short: "Show the names, statements and restore data of a payload",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := loadPayload(cmd.Context(), args)
		if err != nil {
			return err
		}

		pterm.DefaultSection.Printfln("Payload %s", payload.ID)
		pterm.Info.Printfln("root=%s culture=%s created=%s", payload.Root, payload.Culture, payload.CreatedAt.Format("2006-01-02 15:04:05"))

		rows := pterm.TableData{{"Name", "Statements", "Defaults", "Resources", "Events", "Modifier"}}
		for _, name := range payload.Names {
			entry := payload.Entry(name)
			if entry == nil {
				rows = append(rows, []string{name, "missing", "-", "-", "-", "-"})
				continue
			}
			count := strconv.Itoa(len(entry.Statements))
			if entry.Placeholder {
				count = "placeholder"
			}
			modifier := entry.Modifier
			if modifier == "" {
				modifier = "-"
			}
			rows = append(rows, []string{
				name,
				count,
				joinOrDash(entry.DefaultMembers),
				joinOrDash(entry.ResourceRefs),
				joinOrDash(entry.EventResets),
				modifier,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}

		if len(payload.Shims) > 0 {
			pterm.Warning.Printfln("shims: %s", joinOrDash(payload.Shims))
		}
		if len(payload.Locals) > 0 {
			pterm.Info.Printfln("locals: %s", joinOrDash(payload.Locals))
		}

		if !showStatements {
			return nil
		}
		for _, name := range payload.Names {
			entry := payload.Entry(name)
			if entry == nil || (len(entry.Statements) == 0 && len(entry.Expressions) == 0) {
				continue
			}
			pterm.DefaultSection.WithLevel(2).Println(name)
			for _, stmt := range entry.Statements {
				fmt.Println("  " + ir.Describe(stmt))
			}
			for _, expr := range entry.Expressions {
				fmt.Println("  " + ir.DescribeExpression(expr))
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVarP(&showStatements, "statements", "s", false, "Print every statement grouped by name")
}
