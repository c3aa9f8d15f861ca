// Package export pushes accumulated vendor records to external destinations.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/scoutline/vendorscout/internal/model"
)

// xlsxHeader is the column order of the vendor sheet.
var xlsxHeader = []string{"Name", "URL", "Location", "Description", "Extras"}

// WriteXLSX writes the vendors to an XLSX workbook with a single "Vendors"
// sheet. Fields beyond the four canonical columns are JSON-encoded into the
// Extras column.
func WriteXLSX(path string, vendors []model.Vendor) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Vendors")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, v := range vendors {
		row := sheet.AddRow()
		row.AddCell().SetString(v.Name())
		row.AddCell().SetString(v.URL())
		row.AddCell().SetString(v.Location())
		row.AddCell().SetString(v.Description())

		extras := v.Extras()
		if len(extras) == 0 {
			row.AddCell().SetString("")
			continue
		}
		encoded, err := json.Marshal(extras)
		if err != nil {
			return eris.Wrap(err, "export: encode extras")
		}
		row.AddCell().SetString(string(encoded))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, fmt.Sprintf("export: save %s", path))
	}
	return nil
}
