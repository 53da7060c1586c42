package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shugur-Network/nostr-client/internal/keys"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new identity key",
		Long:  "Generate a secp256k1 key pair and write the private key to the identity file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("identity-file")
			if path == "" {
				var err error
				if path, err = keys.DefaultIdentityPath(); err != nil {
					return err
				}
			}

			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("identity file %s already exists (use --force to overwrite)", path)
			}

			kp, err := keys.Generate()
			if err != nil {
				return err
			}
			if err := keys.Save(path, kp); err != nil {
				return err
			}
			fmt.Printf("Identity written to %s\n", path)
			fmt.Printf("Public key: %s\n", kp.PublicKey())
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing identity file")
	return cmd
}
