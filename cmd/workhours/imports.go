package main

import (
	"fmt"
	"os"

	"github.com/pbaille/workhours/internal/assign"
	"github.com/pbaille/workhours/internal/dedupe"
	"github.com/pbaille/workhours/internal/importer"
	"github.com/pbaille/workhours/internal/resolver"
	"github.com/pbaille/workhours/internal/sheet"
	"github.com/pbaille/workhours/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func readSheet(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheet.Read(path, f)
}

func newImporter(s *store.Store, log *zap.Logger) *importer.Importer {
	return importer.New(s, resolver.New(s, log), dedupe.New(s), log)
}

func printOutcome(out *importer.Outcome) {
	fmt.Printf("Imported:   %d\n", out.SuccessCount)
	fmt.Printf("Duplicates: %d\n", out.DuplicateCount)
	fmt.Printf("Errors:     %d\n", out.ErrorCount)
	for _, e := range out.RowErrors {
		fmt.Printf("  row %d: %s\n", e.Row, e.Err)
	}
	if out.UnresolvedCount > 0 {
		fmt.Printf("Unknown clients (%d rows skipped):\n", out.UnresolvedCount)
		for _, name := range out.MissingClientNames {
			fmt.Printf("  - %s\n", name)
		}
	}
	if out.Incomplete {
		fmt.Println("Import stopped early; rows after the failure were not processed.")
	}
}

func importCmd() *cobra.Command {
	var autoAssign bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import work records from an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readSheet(args[0])
			if err != nil {
				return err
			}

			log, err := getLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := newImporter(s, log).ImportRows(cmd.Context(), rows)
			if out != nil {
				printOutcome(out)
			}
			if err != nil {
				return err
			}

			if autoAssign {
				n, err := assign.New(s, log).AssignUnownedRecords(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Assigned:   %d\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoAssign, "assign", true, "assign imported records to users afterwards")
	return cmd
}

func importContactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-contacts [file]",
		Short: "Import client contacts from an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readSheet(args[0])
			if err != nil {
				return err
			}

			log, err := getLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := newImporter(s, log).ImportContacts(cmd.Context(), rows)
			if out != nil {
				printOutcome(out)
			}
			return err
		},
	}
}

func assignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign",
		Short: "Assign unowned records to users by technician name",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := getLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := assign.New(s, log).AssignUnownedRecords(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Assigned %d records\n", n)
			return nil
		},
	}
}

func deleteRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-records [id...]",
		Short: "Delete work records by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.DeleteRecords(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d of %d records\n", n, len(args))
			return nil
		},
	}
}
