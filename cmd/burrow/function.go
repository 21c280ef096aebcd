package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinas-io/burrow/pkg/types"
)

var functionCmd = &cobra.Command{
	Use:   "function",
	Short: "Manage registered functions",
}

var functionAddCmd = &cobra.Command{
	Use:   "add <namespace> <name>",
	Short: "Register or update a function from a source file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		code, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		active, _ := cmd.Flags().GetBool("active")
		shared, _ := cmd.Flags().GetBool("shared-pool")

		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		fn := &types.FunctionSource{
			Namespace:  args[0],
			Name:       args[1],
			Code:       string(code),
			IsActive:   active,
			SharedPool: shared,
		}
		if err := c.PutFunction(ctx, fn); err != nil {
			return err
		}
		fmt.Printf("Registered %s/%s\n", fn.Namespace, fn.Name)
		return nil
	},
}

var functionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		fns, err := c.ListFunctions(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAMESPACE\tNAME\tACTIVE\tSHARED\tUPDATED")
		for _, fn := range fns {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n",
				fn.Namespace, fn.Name, fn.IsActive, fn.SharedPool,
				fn.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var functionRmCmd = &cobra.Command{
	Use:   "rm <namespace> <name>",
	Short: "Remove a registered function",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := apiClient(cmd)
		defer cancel()

		if err := c.DeleteFunction(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed %s/%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	functionAddCmd.Flags().String("file", "", "Path to the function source file")
	functionAddCmd.Flags().Bool("active", true, "Mark the function active")
	functionAddCmd.Flags().Bool("shared-pool", true, "Make the function eligible for the shared pool")

	functionCmd.AddCommand(functionAddCmd)
	functionCmd.AddCommand(functionListCmd)
	functionCmd.AddCommand(functionRmCmd)

	registerAPIFlags(functionAddCmd, functionListCmd, functionRmCmd)
}
