package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/dtnd/pkg/adminapi"
	"github.com/cuemby/dtnd/pkg/config"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a node configuration file",
	Long: `Apply one or more Link/Route/Registration/SecurityKey/Interface
resources from a YAML file to a running dtnd over its admin API.

Examples:
  dtnd apply -f link.yaml
  dtnd apply -f cluster-links.yaml --admin-addr 10.0.0.1:4557`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	applyCmd.Flags().String("admin-addr", "127.0.0.1:4557", "node's admin API address")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")

	resources, err := config.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %v", filename, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := adminapi.DialInsecurePlaintext(ctx, adminAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", adminAddr, err)
	}
	defer conn.Close()

	client := adminapi.NewClient(conn)
	for _, res := range resources {
		fmt.Printf("Applying %s %q...\n", res.Kind, res.Metadata.Name)
		if err := client.ApplyResource(ctx, res.APIVersion, res.Kind, res.Metadata.Name, res.Spec); err != nil {
			return fmt.Errorf("failed to apply %s %q: %v", res.Kind, res.Metadata.Name, err)
		}
		fmt.Printf("✓ %s applied: %s\n", res.Kind, res.Metadata.Name)
	}
	return nil
}
