package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/stewardhq/steward/src/agent"
	"github.com/stewardhq/steward/src/stewardagent"
)

// ToolsCmd inspects the tool set.
type ToolsCmd struct {
	List ToolsListCmd `cmd:"" default:"1" help:"List the tools the selected profile exposes"`
	Show ToolsShowCmd `cmd:"" help:"Show one tool's description and schema"`
}

// ToolsListCmd lists available tools with their approval states.
type ToolsListCmd struct {
	Format string `short:"f" enum:"table,json" default:"table" help:"Output format"`
}

func (c *ToolsListCmd) Run(ctx *kong.Context, cli *CLI) error {
	_, profile, err := loadConfigAndProfile(cli)
	if err != nil {
		return err
	}

	toolbox, err := stewardagent.BuildToolbox(profile, stewardagent.Deps{
		Logger: createCLILogger(cli.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to build toolbox: %w", err)
	}

	type row struct {
		ID          string `json:"id"`
		State       string `json:"approval_state"`
		Description string `json:"description"`
	}
	rows := make([]row, 0)
	for _, tool := range toolbox.Tools() {
		id := agent.ToolID(tool)
		rows = append(rows, row{
			ID:          id,
			State:       string(profile.StateFor(id)),
			Description: firstLine(tool.GetDescription()),
		})
	}

	if c.Format == "json" {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "TOOL\tAPPROVAL\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.State, r.Description)
	}
	return nil
}

// ToolsShowCmd shows one tool in detail.
type ToolsShowCmd struct {
	Name   string `arg:"" help:"Tool name"`
	Schema bool   `short:"s" help:"Include the JSON schema of the parameters"`
}

func (c *ToolsShowCmd) Run(ctx *kong.Context, cli *CLI) error {
	_, profile, err := loadConfigAndProfile(cli)
	if err != nil {
		return err
	}

	toolbox, err := stewardagent.BuildToolbox(profile, stewardagent.Deps{
		Logger: createCLILogger(cli.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to build toolbox: %w", err)
	}
	tool, ok := toolbox.GetTool(c.Name)
	if !ok {
		return fmt.Errorf("tool %s not found on this profile", c.Name)
	}

	fmt.Printf("Tool: %s\n", agent.ToolID(tool))
	fmt.Printf("Approval: %s\n\n", profile.StateFor(agent.ToolID(tool)))
	fmt.Println(tool.GetDescription())

	if c.Schema {
		data, err := json.MarshalIndent(tool.GetParameters(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("\nParameters:\n%s\n", data)
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
