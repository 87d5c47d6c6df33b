package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/spf13/cobra"
)

var historyOutput string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse stored scan results",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		services, err := getAppContext(cmd).Container(cmd.Context())
		if err != nil {
			return err
		}
		if services.History == nil {
			return errors.New("history is disabled (--history=none)")
		}

		results, err := services.History.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if historyOutput == outputJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded yet")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tCOMPLETED\tTYPE\tSTATUS\tSCORE\tTARGET")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				r.SessionID,
				r.CompletedAt.Local().Format("2006-01-02 15:04:05"),
				r.TargetType,
				formatStatusWithColor(string(r.Verdict.Status())),
				r.Verdict.Score(),
				displayTarget(r.Target),
			)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Container(cmd.Context())
		if err != nil {
			return err
		}
		if services.History == nil {
			return errors.New("history is disabled (--history=none)")
		}
		result, err := services.History.FindByID(cmd.Context(), args[0])
		if errors.Is(err, sharedErrors.ErrScanResultNotFound) {
			return fmt.Errorf("no scan with session id %s", args[0])
		}
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), result, historyOutput)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete one stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Container(cmd.Context())
		if err != nil {
			return err
		}
		if services.History == nil {
			return errors.New("history is disabled (--history=none)")
		}
		if err := services.History.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, sharedErrors.ErrScanResultNotFound) {
				return fmt.Errorf("no scan with session id %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", colorSuccess("✓"), args[0])
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyOutput, "output", outputText, "output format: text or json")
	historyListCmd.Flags().Int("limit", 20, "maximum number of scans to list (0 = all)")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
}
