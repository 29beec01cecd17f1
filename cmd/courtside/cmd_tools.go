package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/courtside/internal/capability"
	"github.com/tjfontaine/courtside/internal/runtime"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)

	toolsListCmd.Flags().Bool("json", false, "print the tool definitions sent to the model")
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and run capabilities",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the capabilities offered to the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(registry.Tools())
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
		for _, d := range registry.Describe() {
			params := make([]string, 0, len(d.Parameters))
			for _, p := range d.Parameters {
				name := p.Name
				if !p.Required {
					name += "?"
				}
				params = append(params, name)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, strings.Join(params, ","), d.Description)
		}
		return w.Flush()
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call NAME [ARGS_JSON]",
	Short: "Invoke a capability directly",
	Example: `  courtside tools call get_team_info '{"team_name":"Lakers"}'
  courtside tools call get_player_injuries`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		var raw json.RawMessage
		if len(args) == 2 {
			raw = json.RawMessage(args[1])
		}
		result, err := registry.Invoke(cmd.Context(), args[0], raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

// loadRegistry builds the registry from configuration, logging to w.
func loadRegistry(w io.Writer) (*capability.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, w)
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("command", "tools"))
	return runtime.NewRegistry(runtime.NewNBAProvider(cfg.NBA, logger), cfg.NBA, logger)
}
