package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errDraftRejected = errors.New("draft rejected")

func newCriticCmd() *cobra.Command {
	var subject, message string
	cmd := &cobra.Command{
		Use:   "critic",
		Short: "Check a draft against the tone and compliance rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, engines, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			res := engines.Critic.Check(subject, message)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Passed {
				return fmt.Errorf("%w: %d violations", errDraftRejected, len(res.Violations))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "draft subject line")
	cmd.Flags().StringVar(&message, "message", "", "draft body")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
