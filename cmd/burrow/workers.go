package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinas-io/burrow/pkg/client"
)

const defaultServerAddr = "127.0.0.1:8090"

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect and scale the worker pool",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers with live status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		workers, err := c.ListWorkers(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONTAINER\tSTATUS\tEXECUTIONS\tCREATED")
		for _, wk := range workers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				wk.ID, wk.ContainerName, wk.Status, wk.Executions,
				wk.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var workersScaleCmd = &cobra.Command{
	Use:   "scale <count>",
	Short: "Scale the pool to a target worker count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", args[0], err)
		}

		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		report, err := c.Scale(ctx, target)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d -> %d workers\n", report.Action, report.PreviousCount, report.CurrentCount)
		return nil
	},
}

var workersLoadCmd = &cobra.Command{
	Use:   "load [namespace...]",
	Short: "Preload shared-pool functions into every worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		report, err := c.LoadFunctions(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d function(s) into %d worker(s)\n",
			report.Functions, report.Workers)
		for _, e := range report.Errors {
			fmt.Printf("  warning: %s\n", e)
		}
		return nil
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <namespace> <name>",
	Short: "Execute a function through the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputJSON, _ := cmd.Flags().GetString("input")
		var input map[string]any
		if inputJSON != "" {
			if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
				return fmt.Errorf("invalid --input JSON: %w", err)
			}
		}

		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		result, err := c.Execute(ctx, args[0], args[1], input, "")
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if result.Status != "completed" {
			os.Exit(1)
		}
		return nil
	},
}

// apiClient builds a client from the persistent --addr/--timeout flags
// registered on every API-backed command
func apiClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return client.NewClient(addr), ctx, cancel
}

func registerAPIFlags(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.Flags().String("addr", defaultServerAddr, "Burrow server address")
		cmd.Flags().Duration("timeout", 60*time.Second, "Request timeout")
	}
}

func init() {
	workersCmd.AddCommand(workersListCmd)
	workersCmd.AddCommand(workersScaleCmd)
	workersCmd.AddCommand(workersLoadCmd)

	execCmd.Flags().String("input", "", "Input data as a JSON object")

	registerAPIFlags(workersListCmd, workersScaleCmd, workersLoadCmd, execCmd)
}
