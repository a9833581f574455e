package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"coworkshell/pkg/api"
)

func init() {
	rootCmd.AddCommand(decisionCmd)
	decisionCmd.AddCommand(decisionShowCmd)
	decisionCmd.AddCommand(decisionResetCmd)
}

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Inspect or clear the persisted launch decision",
}

var decisionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted redirect decision as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := api.NewService(cfg, api.Options{}, log)
		if err != nil {
			return err
		}
		defer svc.Close(cmd.Context())

		d, ok := svc.Decision(cmd.Context())
		last, _ := svc.LastLoaded(cmd.Context())
		info := map[string]any{
			"stored":     ok,
			"redirect":   d.RedirectURL,
			"uiMode":     d.UIMode.String(),
			"lastLoaded": last,
		}
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var decisionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the persisted decision so the next launch resolves again",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := api.NewService(cfg, api.Options{}, log)
		if err != nil {
			return err
		}
		defer svc.Close(cmd.Context())

		if err := svc.ResetDecision(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "decision cleared")
		return nil
	},
}
