package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Reason classifies why a filename failed a pattern family or was rejected
// outright. Reasons are stable codes intended for the variations table, not
// display prose.
type Reason string

const (
	ReasonBadExtension      Reason = "BAD_EXTENSION"
	ReasonNotASpreadsheet   Reason = "NOT_A_SPREADSHEET"
	ReasonNoPrefixMatch     Reason = "NO_PREFIX_MATCH"
	ReasonMissingTokens     Reason = "MISSING_TOKENS"
	ReasonBadPeriodToken    Reason = "BAD_PERIOD_TOKEN"
	ReasonEmptyClient       Reason = "EMPTY_CLIENT"
	ReasonEmptyJurisdiction Reason = "EMPTY_JURISDICTION"
)

// PeriodKind describes the shape of a family's trailing period token.
type PeriodKind string

const (
	PeriodLabel      PeriodKind = "label"       // free-form single token, e.g. Apr24
	PeriodDate       PeriodKind = "date"        // DDMMYYYY
	PeriodMonth      PeriodKind = "month"       // month abbreviation, optional 2-digit year
	PeriodMonthRange PeriodKind = "month-range" // start and end month tokens
	PeriodYear       PeriodKind = "year"        // four-digit year
)

// Period is the parsed period token of a classified filename. Start and End
// are populated only for month-range periods; Label holds the canonical
// single-token form for every other kind.
type Period struct {
	Kind  PeriodKind
	Label string
	Start string
	End   string
}

// String renders the period exactly as it appears between delimiters in a
// canonical filename.
func (p Period) String() string {
	if p.Kind == PeriodMonthRange {
		return p.Start + "-" + p.End
	}
	return p.Label
}

// Classified is a filename successfully parsed against one pattern family.
type Classified struct {
	SourceName       string
	Category         Category
	Client           string
	Jurisdiction     string
	JurisdictionCode string
	Period           Period
	Extension        string
}

// Key returns the client identity key, `<Client>-<Code>`.
func (c Classified) Key() string {
	return ClientKey(c.Client, c.Jurisdiction, 0)
}

// Attempt records one pattern family tried against a non-conforming name.
type Attempt struct {
	Category Category
	Reason   Reason
}

// NonConforming is a filename that failed every pattern family. It is
// surfaced for operator review and never placed.
type NonConforming struct {
	SourceName string
	Reason     Reason
	Attempts   []Attempt
}

const delimiter = "-"

type family struct {
	category      Category
	prefix        string
	period        PeriodKind
	trailingCount int // tokens anchored from the end, excluding jurisdiction
}

// families in matching priority order.
var families = []family{
	{category: CategoryGSTR2BReco, prefix: "GSTR-2B-Reco-", period: PeriodLabel, trailingCount: 1},
	{category: CategoryIMSReco, prefix: "ImsReco-", period: PeriodDate, trailingCount: 1},
	{category: CategoryGSTR3B, prefix: "GSTR3B-", period: PeriodMonth, trailingCount: 1},
	{category: CategorySalesReco, prefix: "SalesReco-", period: PeriodLabel, trailingCount: 1},
	{category: CategorySales, prefix: "Sales-", period: PeriodMonthRange, trailingCount: 2},
	{category: CategoryAnnualReport, prefix: "AnnualReport-", period: PeriodYear, trailingCount: 1},
}

// SpreadsheetExtensions lists the extensions accepted for classification.
var SpreadsheetExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
	".xlsm": {},
}

// copyCounterPrefix tolerates browser-download style "(2) " prefixes on
// GSTR-3B exports, matching how monthly exports accumulate in practice.
var copyCounterPrefix = regexp.MustCompile(`^\(\d+\)\s*`)

var yearToken = regexp.MustCompile(`^\d{4}$`)
var dateToken = regexp.MustCompile(`^\d{8}$`)
var monthToken = regexp.MustCompile(`^([A-Za-z]{3,9})(\d{2})?$`)

var titleCaser = cases.Title(language.Und)

// monthAbbrevs maps accepted month spellings to their lowercase abbreviation;
// the title caser produces the canonical display form.
var monthAbbrevs = map[string]string{
	"jan": "jan", "january": "jan",
	"feb": "feb", "february": "feb",
	"mar": "mar", "march": "mar",
	"apr": "apr", "april": "apr",
	"may": "may",
	"jun": "jun", "june": "jun",
	"jul": "jul", "july": "jul",
	"aug": "aug", "august": "aug",
	"sep": "sep", "sept": "sep", "september": "sep",
	"oct": "oct", "october": "oct",
	"nov": "nov", "november": "nov",
	"dec": "dec", "december": "dec",
}

// Classify parses a filename against the six pattern families in priority
// order. It is a pure function: the first matching family wins, and a name
// matching none is returned as NonConforming with per-family reasons.
func Classify(filename string) (Classified, *NonConforming) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := SpreadsheetExtensions[ext]; !ok {
		return Classified{}, &NonConforming{SourceName: filename, Reason: ReasonBadExtension}
	}
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	attempts := make([]Attempt, 0, len(families))
	for _, fam := range families {
		classified, reason := matchFamily(fam, stem)
		if reason == "" {
			classified.SourceName = filename
			classified.Extension = ext
			return classified, nil
		}
		attempts = append(attempts, Attempt{Category: fam.category, Reason: reason})
	}
	return Classified{}, &NonConforming{
		SourceName: filename,
		Reason:     ReasonNoPrefixMatch,
		Attempts:   attempts,
	}
}

// matchFamily returns the parsed record or a non-empty reason.
func matchFamily(fam family, stem string) (Classified, Reason) {
	candidate := stem
	if fam.category == CategoryGSTR3B {
		candidate = copyCounterPrefix.ReplaceAllString(candidate, "")
	}
	if len(candidate) < len(fam.prefix) || !strings.EqualFold(candidate[:len(fam.prefix)], fam.prefix) {
		return Classified{}, ReasonNoPrefixMatch
	}
	rest := candidate[len(fam.prefix):]

	// The trailing period token(s) and the jurisdiction are anchored from
	// the end of the name; everything before them belongs to the client,
	// which may itself contain the delimiter.
	tokens := strings.Split(rest, delimiter)
	needed := fam.trailingCount + 2 // client + jurisdiction + period tokens
	if len(tokens) < needed {
		return Classified{}, ReasonMissingTokens
	}

	periodTokens := tokens[len(tokens)-fam.trailingCount:]
	jurisdiction := strings.TrimSpace(tokens[len(tokens)-fam.trailingCount-1])
	client := strings.TrimSpace(strings.Join(tokens[:len(tokens)-fam.trailingCount-1], delimiter))

	if client == "" {
		return Classified{}, ReasonEmptyClient
	}
	if jurisdiction == "" {
		return Classified{}, ReasonEmptyJurisdiction
	}

	period, ok := parsePeriod(fam.period, periodTokens)
	if !ok {
		return Classified{}, ReasonBadPeriodToken
	}

	return Classified{
		Category:         fam.category,
		Client:           client,
		Jurisdiction:     jurisdiction,
		JurisdictionCode: JurisdictionCode(jurisdiction),
		Period:           period,
	}, ""
}

func parsePeriod(kind PeriodKind, tokens []string) (Period, bool) {
	switch kind {
	case PeriodLabel:
		label := strings.TrimSpace(tokens[0])
		if label == "" {
			return Period{}, false
		}
		return Period{Kind: PeriodLabel, Label: label}, true
	case PeriodDate:
		token := strings.TrimSpace(tokens[0])
		if !dateToken.MatchString(token) {
			return Period{}, false
		}
		if _, err := time.Parse("02012006", token); err != nil {
			return Period{}, false
		}
		return Period{Kind: PeriodDate, Label: token}, true
	case PeriodMonth:
		label, ok := canonicalMonth(tokens[0])
		if !ok {
			return Period{}, false
		}
		return Period{Kind: PeriodMonth, Label: label}, true
	case PeriodMonthRange:
		start, ok := canonicalMonth(tokens[0])
		if !ok {
			return Period{}, false
		}
		end, ok := canonicalMonth(tokens[1])
		if !ok {
			return Period{}, false
		}
		return Period{Kind: PeriodMonthRange, Start: start, End: end}, true
	case PeriodYear:
		token := strings.TrimSpace(tokens[0])
		if !yearToken.MatchString(token) {
			return Period{}, false
		}
		return Period{Kind: PeriodYear, Label: token}, true
	default:
		return Period{}, false
	}
}

// canonicalMonth normalizes a month token like "apr", "April" or "Apr24"
// into its canonical abbreviation, preserving a trailing two-digit year.
func canonicalMonth(token string) (string, bool) {
	match := monthToken.FindStringSubmatch(strings.TrimSpace(token))
	if match == nil {
		return "", false
	}
	abbrev, ok := monthAbbrevs[strings.ToLower(match[1])]
	if !ok {
		return "", false
	}
	return TitleCase(abbrev) + match[2], true
}

// Build reconstructs the canonical filename for a classified record. It is
// the inverse of Classify: the result re-classifies to an equivalent record.
func Build(c Classified) string {
	fam, ok := familyFor(c.Category)
	if !ok {
		return c.SourceName
	}
	ext := c.Extension
	if ext == "" {
		ext = ".xlsx"
	}
	return fmt.Sprintf("%s%s%s%s%s%s%s",
		fam.prefix, c.Client, delimiter, c.Jurisdiction, delimiter, c.Period.String(), ext)
}

// Describe returns the documented shape of a family's filenames, used in
// operator-facing variation listings.
func Describe(category Category) string {
	switch category {
	case CategoryGSTR2BReco:
		return "GSTR-2B-Reco-Client-Jurisdiction-Period.xlsx"
	case CategoryIMSReco:
		return "ImsReco-Client-Jurisdiction-DDMMYYYY.xlsx"
	case CategoryGSTR3B:
		return "GSTR3B-Client-Jurisdiction-Month.xlsx"
	case CategorySalesReco:
		return "SalesReco-Client-Jurisdiction-Period.xlsx"
	case CategorySales:
		return "Sales-Client-Jurisdiction-StartMonth-EndMonth.xlsx"
	case CategoryAnnualReport:
		return "AnnualReport-Client-Jurisdiction-Year.xlsx"
	default:
		return string(category)
	}
}

func familyFor(category Category) (family, bool) {
	for _, fam := range families {
		if fam.category == category {
			return fam, true
		}
	}
	return family{}, false
}

// TitleCase normalizes mixed-case tokens for display.
func TitleCase(value string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(value)))
}
