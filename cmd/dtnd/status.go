package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/dtnd/pkg/adminapi"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running node's top-level status",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := adminapi.DialInsecurePlaintext(ctx, adminAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %v", adminAddr, err)
		}
		defer conn.Close()

		status, err := adminapi.NewClient(conn).Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to query status: %v", err)
		}
		fmt.Printf("local_eid:       %v\n", status["local_eid"])
		fmt.Printf("links:           %v\n", status["links"])
		fmt.Printf("registrations:   %v\n", status["registrations"])
		fmt.Printf("pending_bundles: %v\n", status["pending_bundles"])
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Inspect configured links",
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every link and its contact state",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := adminapi.DialInsecurePlaintext(ctx, adminAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %v", adminAddr, err)
		}
		defer conn.Close()

		links, err := adminapi.NewClient(conn).ListLinks(ctx)
		if err != nil {
			return fmt.Errorf("failed to list links: %v", err)
		}
		for _, l := range links {
			fmt.Printf("%v\n", l)
		}
		return nil
	},
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect the route table",
}

var routeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every route table entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := adminapi.DialInsecurePlaintext(ctx, adminAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %v", adminAddr, err)
		}
		defer conn.Close()

		routes, err := adminapi.NewClient(conn).ListRoutes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list routes: %v", err)
		}
		for _, r := range routes {
			fmt.Printf("%v\n", r)
		}
		return nil
	},
}

var regCmd = &cobra.Command{
	Use:   "reg",
	Short: "Inspect registrations",
}

var regListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := adminapi.DialInsecurePlaintext(ctx, adminAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %v", adminAddr, err)
		}
		defer conn.Close()

		regs, err := adminapi.NewClient(conn).ListRegistrations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list registrations: %v", err)
		}
		for _, r := range regs {
			fmt.Printf("%v\n", r)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, linkCmd, routeCmd, regCmd} {
		c.PersistentFlags().String("admin-addr", "127.0.0.1:4557", "node's admin API address")
	}
	linkCmd.AddCommand(linkListCmd)
	routeCmd.AddCommand(routeListCmd)
	regCmd.AddCommand(regListCmd)
}
