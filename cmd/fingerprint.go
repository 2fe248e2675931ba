package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kibrowser/ki-browser/internal/stealth"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Generate a stealth fingerprint without starting the browser",
	Long:  "Generates the fingerprint a given profile and seed would produce, either as JSON or as the injection script itself.",
	RunE: func(cmd *cobra.Command, args []string) error {
		profileName, _ := cmd.Flags().GetString("profile")
		seed, _ := cmd.Flags().GetString("seed")
		asScript, _ := cmd.Flags().GetBool("script")

		var bundle stealth.Bundle
		switch {
		case seed != "":
			bundle = stealth.ConsistentBundle(seed)
		case profileName != "":
			bundle = stealth.BundleFromProfile(stealth.ParseProfile(profileName))
		default:
			bundle = stealth.RandomBundle()
		}

		if asScript {
			fmt.Fprintln(cmd.OutOrStdout(), bundle.InjectionScript())
			return nil
		}

		out, err := json.MarshalIndent(bundle.Fingerprint, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	fingerprintCmd.Flags().String("profile", "", "fingerprint profile (windows-chrome, mac-safari, linux-firefox, ...)")
	fingerprintCmd.Flags().String("seed", "", "deterministic seed; equal seeds produce equal fingerprints")
	fingerprintCmd.Flags().Bool("script", false, "print the injection script instead of the fingerprint JSON")
	rootCmd.AddCommand(fingerprintCmd)
}
