package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/pkg/notion"
)

// ExportNotion creates one page per vendor in the given Notion database and
// returns the number of pages created. The first create failure stops the
// export; pages already created stand.
func ExportNotion(ctx context.Context, nc notion.Client, dbID string, vendors []model.Vendor) (int, error) {
	created := 0
	for _, v := range vendors {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "export: notion cancelled")
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: vendorPageProperties(v),
		}

		if _, err := nc.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, fmt.Sprintf("export: create page for %q", v.Name()))
		}
		created++
	}
	return created, nil
}

// vendorPageProperties converts a vendor to Notion page properties. Name
// becomes the title, URL a url property, everything else rich_text. Empty
// fields are omitted.
func vendorPageProperties(v model.Vendor) notionapi.Properties {
	props := make(notionapi.Properties)

	props["Name"] = notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v.Name()}},
		},
	}

	if u := v.URL(); u != "" {
		props["URL"] = notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  u,
		}
	}
	if loc := v.Location(); loc != "" {
		props["Location"] = richText(loc)
	}
	if desc := v.Description(); desc != "" {
		props["Description"] = richText(desc)
	}

	if extras := v.Extras(); len(extras) > 0 {
		if encoded, err := json.Marshal(extras); err == nil {
			props["Extras"] = richText(string(encoded))
		}
	}

	return props
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}
