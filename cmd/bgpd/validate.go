package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/routebird/bgpd/config"
)

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and sanity-check a peer configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(path)
			if err != nil {
				return startupError{err}
			}
			for _, pc := range doc.Peers {
				if _, err := pc.FamilySet(); err != nil {
					return startupError{fmt.Errorf("peer %s: %w", pc.Name, err)}
				}
				if pc.RouterID != "" {
					if _, err := pc.RouterIDBytes(); err != nil {
						return startupError{fmt.Errorf("peer %s: %w", pc.Name, err)}
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d peer(s) OK\n", path, len(doc.Peers))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "bgpd.yaml", "path to the peer configuration document")
	return cmd
}
