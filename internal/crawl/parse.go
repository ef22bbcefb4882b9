package crawl

import (
	"strings"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"github.com/PuerkitoBio/goquery"
)

const minCells = 6

// ParsedRow is the inline content of one listing row.
type ParsedRow struct {
	Raw project.RawRow
	// HasMore is set when the investors cell collapses entries behind a
	// "+N" button; Raw.Investors is then empty and must come from the overlay.
	HasMore bool
}

// ParseRow reads a listing row from its outer HTML. ok is false for rows
// with fewer than six cells.
func ParseRow(rowHTML string) (row ParsedRow, ok bool, err error) {
	// a bare <tr> is dropped by the HTML parser outside of a table
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tbody>" + rowHTML + "</tbody></table>"))
	if err != nil {
		return ParsedRow{}, false, err
	}
	cells := doc.Find("tr").First().Find("td")
	if cells.Length() < minCells {
		return ParsedRow{}, false, nil
	}

	nameCell := cells.Eq(0)
	raw := project.RawRow{
		Name:      nameCell.Find(".list_name").First().Text(),
		Logo:      nameCell.Find("img").First().AttrOr("src", ""),
		Link:      nameCell.Find("a").First().AttrOr("href", ""),
		Round:     cells.Eq(1).Text(),
		Amount:    cells.Eq(2).Text(),
		Valuation: cells.Eq(3).Text(),
		Date:      cells.Eq(4).Text(),
	}

	investorsCell := cells.Eq(5)
	if investorsCell.Find(".more_btn").Length() > 0 {
		return ParsedRow{Raw: raw, HasMore: true}, true, nil
	}
	investorsCell.Find("a").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Find(".animation_underline").First().Text())
		if name == "" {
			name = a.Text()
		}
		raw.Investors = append(raw.Investors, project.RawInvestor{
			Name: name,
			Logo: a.Find("img").First().AttrOr("src", ""),
			Link: a.AttrOr("href", ""),
		})
	})
	return ParsedRow{Raw: raw}, true, nil
}

// ParseOverlay reads the investor entries of the expanded "+N more" dialog.
// hasClose reports whether the dialog carries a close button.
func ParseOverlay(overlayHTML string) (investors []project.RawInvestor, hasClose bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(overlayHTML))
	if err != nil {
		return nil, false, err
	}
	doc.Find(".item").Each(func(_ int, item *goquery.Selection) {
		investors = append(investors, project.RawInvestor{
			Name: item.Find("span").First().Text(),
			Logo: item.Find("img").First().AttrOr("src", ""),
			Link: item.Closest("a").AttrOr("href", ""),
		})
	})
	return investors, doc.Find(".dialog_close").Length() > 0, nil
}
