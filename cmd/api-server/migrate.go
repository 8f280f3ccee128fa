package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/MoeeinAali/CE419-WP/db/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			if opts.cfg.PostgresConn == "" {
				return errors.New("POSTGRES_CONN is not set")
			}
			dbConn, err := sql.Open("postgres", opts.cfg.PostgresConn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer dbConn.Close()

			switch direction {
			case "up":
				return migrations.Run(dbConn)
			case "down":
				return migrations.Down(dbConn)
			case "version":
				v, err := migrations.Version(dbConn)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			default:
				return fmt.Errorf("unknown direction %q", direction)
			}
		},
	}
	return cmd
}
