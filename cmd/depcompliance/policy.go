package main

import (
	"github.com/spf13/cobra"

	"depcompliance/internal/config"
	"depcompliance/internal/license"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective license policy as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{config.KeyPolicyFile: "policy"})
			if err != nil {
				return err
			}
			policy, err := license.LoadPolicy(cfg.PolicyFile)
			if err != nil {
				return err
			}
			data, err := policy.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("policy", "", "License policy YAML file")
	return cmd
}
