package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one scheduled job immediately and print its record",
	Long: `Run one of the standard jobs once, outside its schedule.

Jobs:
  daily_data_sync     pull the last 7 completed days from every connected account
  daily_optimization  apply scale/cut/pause rules to active campaigns
  weekly_strategy     regenerate and cache each client's budget plan
  budget_check        enforce monthly caps and detect spend anomalies`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.scheduler.RunNow(ctx, args[0], "cli")
	if err != nil {
		return err
	}
	if err := printJSON(run); err != nil {
		return err
	}
	if !run.OK {
		return fmt.Errorf("job %s failed: %s", run.Job, run.Err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
