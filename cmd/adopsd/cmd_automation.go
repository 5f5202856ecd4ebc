package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ad-autopilot/internal/application/automation"
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Manage a client's automation lifecycle",
}

var (
	automationClientID  string
	deployWithCampaigns bool
)

func init() {
	rootCmd.AddCommand(automationCmd)
	automationCmd.PersistentFlags().StringVar(&automationClientID, "client", "", "Client id")

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy automation for a client",
		RunE: withAutomation(func(cmd *cobra.Command, svc *automation.Service) (interface{}, error) {
			return svc.Deploy(commandContext(cmd), automationClientID, automation.DeployOptions{CreateCampaigns: deployWithCampaigns})
		}),
	}
	deployCmd.Flags().BoolVar(&deployWithCampaigns, "create-campaigns", false, "Generate a plan and create paused campaigns while deploying")

	automationCmd.AddCommand(
		deployCmd,
		&cobra.Command{
			Use:   "pause",
			Short: "Pause automation for a client",
			RunE: withAutomation(func(cmd *cobra.Command, svc *automation.Service) (interface{}, error) {
				status, err := svc.Pause(commandContext(cmd), automationClientID)
				return map[string]interface{}{"client_id": automationClientID, "automation_status": status}, err
			}),
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume paused automation for a client",
			RunE: withAutomation(func(cmd *cobra.Command, svc *automation.Service) (interface{}, error) {
				status, err := svc.Resume(commandContext(cmd), automationClientID)
				return map[string]interface{}{"client_id": automationClientID, "automation_status": status}, err
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show a client's automation status",
			RunE: withAutomation(func(cmd *cobra.Command, svc *automation.Service) (interface{}, error) {
				return svc.Status(commandContext(cmd), automationClientID)
			}),
		},
	)
}

func withAutomation(fn func(cmd *cobra.Command, svc *automation.Service) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if automationClientID == "" {
			return errors.New("--client is required")
		}
		a, err := newApp(commandContext(cmd), configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := fn(cmd, a.automation)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}
