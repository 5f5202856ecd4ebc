package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ad-autopilot/internal/domain/account"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected ad accounts",
}

var (
	accountsClientID    string
	accountsPlatform    string
	accountsCode        string
	accountsRedirectURI string
)

var accountsConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Exchange an OAuth code and store every accessible ad account",
	RunE:  runAccountsConnect,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a client's ad accounts",
	RunE:  runAccountsList,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsConnectCmd, accountsListCmd)
	accountsCmd.PersistentFlags().StringVar(&accountsClientID, "client", "", "Client id")

	accountsConnectCmd.Flags().StringVar(&accountsPlatform, "platform", "", "Ad platform (meta|google)")
	accountsConnectCmd.Flags().StringVar(&accountsCode, "code", "", "OAuth authorization code")
	accountsConnectCmd.Flags().StringVar(&accountsRedirectURI, "redirect-uri", "", "Redirect URI used for the authorization")
}

func runAccountsConnect(cmd *cobra.Command, args []string) error {
	if accountsClientID == "" || accountsCode == "" {
		return errors.New("--client and --code are required")
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	connected, err := a.connector.Connect(ctx, accountsClientID, account.Platform(accountsPlatform), accountsCode, accountsRedirectURI)
	if err != nil {
		return err
	}
	return printJSON(connected)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	if accountsClientID == "" {
		return errors.New("--client is required")
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.connector.List(ctx, accountsClientID)
	if err != nil {
		return err
	}
	return printJSON(list)
}
