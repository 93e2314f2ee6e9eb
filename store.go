package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"echo-helper/utils/database"

	"github.com/spf13/cobra"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func storeCommand() *cobra.Command {
	var backend, dataDir string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect or migrate the persistent store",
	}
	cmd.PersistentFlags().StringVar(&backend, "backend", envOr("STORE_BACKEND", "json"), "store backend (json|sqlite)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", envOr("DATA_DIR", "data"), "data directory")

	cmd.AddCommand(&cobra.Command{
		Use:       "dump <domain>",
		Short:     "Print every record of one domain as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: domainNames(),
		RunE: func(c *cobra.Command, args []string) error {
			domain := database.Domain(args[0])
			if !slices.Contains(database.Domains, domain) {
				return fmt.Errorf("unknown domain %q, one of %v", args[0], domainNames())
			}
			db, err := database.Open(backend, dataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.Backend().Scan(c.Context(), domain)
			if err != nil {
				return fmt.Errorf("scan %s: %w", domain, err)
			}
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	})

	var target string
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every domain from the JSON files into SQLite",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			src, err := database.Open("json", dataDir)
			if err != nil {
				return err
			}
			defer src.Close()
			if target == "" {
				target = dataDir
			}
			dst, err := database.Open("sqlite", target)
			if err != nil {
				return err
			}
			defer dst.Close()

			n, err := database.Copy(c.Context(), dst.Backend(), src.Backend())
			if err != nil {
				return fmt.Errorf("migrate after %d records: %w", n, err)
			}
			fmt.Fprintf(c.OutOrStdout(), "migrated %d records\n", n)
			return nil
		},
	}
	migrate.Flags().StringVar(&target, "target", "", "directory for echo.db (defaults to --data-dir)")
	cmd.AddCommand(migrate)
	return cmd
}

func domainNames() []string {
	out := make([]string, 0, len(database.Domains))
	for _, d := range database.Domains {
		out = append(out, string(d))
	}
	return out
}
