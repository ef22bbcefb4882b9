package project

import (
	"net/url"
	"strings"
)

// Placeholder is what the listing shows in a cell that has no data.
const Placeholder = "--"

type Investor struct {
	Name string  `json:"investor_name"`
	Logo *string `json:"investor_logo"`
	Link *string `json:"investor_link"`
}

type Record struct {
	Name      string     `json:"project_name"`
	Logo      *string    `json:"project_logo"`
	Link      *string    `json:"project_link"`
	Round     *string    `json:"project_round"`
	Amount    *string    `json:"project_amount"`
	Valuation *string    `json:"project_valuation"`
	Date      *string    `json:"project_date"`
	Investors []Investor `json:"project_investors"`
}

// RawInvestor is an investor entry as read from the page, before any filtering.
type RawInvestor struct {
	Name string
	Logo string
	Link string
}

// RawRow holds the untrimmed text and attribute values of one listing row.
type RawRow struct {
	Name      string
	Logo      string
	Link      string
	Round     string
	Amount    string
	Valuation string
	Date      string
	Investors []RawInvestor
}

// Normalize turns a raw row into a Record. Relative logo and link values are
// resolved against base when it is set. The second return value is false when
// the row has no project name and must be dropped.
func Normalize(raw RawRow, base *url.URL) (Record, bool) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return Record{}, false
	}
	return Record{
		Name:      name,
		Logo:      resolve(raw.Logo, base),
		Link:      resolve(raw.Link, base),
		Round:     optional(raw.Round),
		Amount:    stripPlaceholder(raw.Amount),
		Valuation: stripPlaceholder(raw.Valuation),
		Date:      optional(raw.Date),
		Investors: NormalizeInvestors(raw.Investors, base),
	}, true
}

// NormalizeInvestors keeps DOM order and drops entries without a usable name.
func NormalizeInvestors(raw []RawInvestor, base *url.URL) []Investor {
	investors := make([]Investor, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" || name == Placeholder {
			continue
		}
		investors = append(investors, Investor{
			Name: name,
			Logo: resolve(r.Logo, base),
			Link: resolve(r.Link, base),
		})
	}
	return investors
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// stripPlaceholder removes the first placeholder occurrence rather than
// comparing the whole value, so "$5M--" becomes "$5M".
func stripPlaceholder(s string) *string {
	s = strings.TrimSpace(s)
	if s == Placeholder {
		return nil
	}
	return optional(strings.Replace(s, Placeholder, "", 1))
}

func resolve(ref string, base *url.URL) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if base != nil {
		if u, err := url.Parse(ref); err == nil {
			ref = base.ResolveReference(u).String()
		}
	}
	return &ref
}

// Names returns the project names of records, in order.
func Names(records []Record) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}
