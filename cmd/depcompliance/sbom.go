package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"depcompliance/internal/config"
	"depcompliance/internal/license"
	"depcompliance/internal/logging"
	"depcompliance/internal/pipeline"
	"depcompliance/internal/report"
	"depcompliance/internal/sbom"
)

func newSBOMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sbom [path]",
		Short: "Print the SPDX document of a project without querying external sources",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			cfg, err := loadConfig(cmd, map[string]string{
				config.KeyPolicyFile: "policy",
				config.KeyTimeout:    "timeout",
			})
			if err != nil {
				return err
			}
			policy, err := license.LoadPolicy(cfg.PolicyFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			doc := pipeline.New(pipeline.Options{
				Policy:      policy,
				Logger:      logging.New("pipeline"),
				ToolVersion: version,
			}).Analyze(ctx, target)
			if doc.Metadata.Status == report.StatusError {
				return &exitError{code: ExitDegraded, msg: "FAILURE: " + doc.Error.Message}
			}

			data, err := sbom.MarshalSPDX(doc.SBOM)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().String("policy", "", "License policy YAML file")
	cmd.Flags().Duration("timeout", 0, "Wall-clock budget of the analysis (default 5m)")
	return cmd
}
