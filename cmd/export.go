package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutline/vendorscout/internal/export"
	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/internal/results"
	"github.com/scoutline/vendorscout/pkg/notion"
	"github.com/scoutline/vendorscout/pkg/salesforce"
)

var exportInput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export accumulated vendors to an external destination",
}

// loadVendors reads the result document being exported.
func loadVendors() ([]model.Vendor, error) {
	path := exportInput
	if path == "" {
		path = cfg.Research.OutputPath
	}
	rs, err := results.NewStore(path).Load()
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, eris.Errorf("export: no vendors in %s", path)
	}
	return rs.Vendors, nil
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx <path>",
	Short: "Write vendors to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendors, err := loadVendors()
		if err != nil {
			return err
		}
		if err := export.WriteXLSX(args[0], vendors); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d vendors to %s\n", len(vendors), args[0])
		return nil
	},
}

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Create one Notion page per vendor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export-notion"); err != nil {
			return err
		}
		vendors, err := loadVendors()
		if err != nil {
			return err
		}

		nc := notion.NewClient(cfg.Notion.Token)
		created, err := export.ExportNotion(cmd.Context(), nc, cfg.Notion.DatabaseID, vendors)
		if created > 0 {
			fmt.Fprintf(os.Stdout, "Created %d of %d Notion pages\n", created, len(vendors))
		}
		return err
	},
}

var exportSalesforceCmd = &cobra.Command{
	Use:   "salesforce",
	Short: "Insert vendors as Salesforce leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export-salesforce"); err != nil {
			return err
		}
		vendors, err := loadVendors()
		if err != nil {
			return err
		}

		sc, err := salesforce.Connect(
			cfg.Salesforce.Domain,
			cfg.Salesforce.Username,
			cfg.Salesforce.Password,
			cfg.Salesforce.SecurityToken,
			cfg.Salesforce.ConsumerKey,
			cfg.Salesforce.ConsumerSecret,
		)
		if err != nil {
			return err
		}

		summary, err := export.ExportSalesforce(cmd.Context(), sc, vendors)
		if summary != nil {
			fmt.Fprintf(os.Stdout, "Inserted %d leads (%d failed, %d skipped)\n",
				summary.Inserted, summary.Failed, summary.Skipped)
		}
		return err
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&exportInput, "input", "", "result document to export (default from config)")

	exportCmd.AddCommand(exportXLSXCmd)
	exportCmd.AddCommand(exportNotionCmd)
	exportCmd.AddCommand(exportSalesforceCmd)
	rootCmd.AddCommand(exportCmd)
}
