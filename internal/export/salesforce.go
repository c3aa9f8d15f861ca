package export

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/pkg/salesforce"
)

// SalesforceSummary reports the outcome of a lead export.
type SalesforceSummary struct {
	Inserted int
	Failed   int
	Skipped  int
}

// ExportSalesforce inserts the vendors as Lead records. Vendors without a
// name are skipped since a Lead requires Company. Per-record rejections are
// counted and logged, not fatal.
func ExportSalesforce(ctx context.Context, sc salesforce.Client, vendors []model.Vendor) (*SalesforceSummary, error) {
	summary := &SalesforceSummary{}

	var records []map[string]any
	for _, v := range vendors {
		if v.Name() == "" {
			summary.Skipped++
			continue
		}
		records = append(records, leadFields(v))
	}
	if len(records) == 0 {
		return summary, nil
	}

	results, err := sc.InsertCollection(ctx, "Lead", records)
	if err != nil {
		return summary, eris.Wrap(err, "export: insert leads")
	}

	for _, r := range results {
		if r.Success {
			summary.Inserted++
			continue
		}
		summary.Failed++
		zap.L().Warn("export: lead rejected", zap.Strings("errors", r.Errors))
	}
	return summary, nil
}

// leadFields maps a vendor onto Salesforce Lead fields. Leads require a
// LastName; the vendor name stands in since these are company records.
func leadFields(v model.Vendor) map[string]any {
	fields := map[string]any{
		"Company":    v.Name(),
		"LastName":   v.Name(),
		"LeadSource": "Web Research",
	}
	if u := v.URL(); u != "" {
		fields["Website"] = u
	}
	if loc := v.Location(); loc != "" {
		fields["City"] = loc
	}
	if desc := v.Description(); desc != "" {
		fields["Description"] = desc
	}
	return fields
}
