package naming

import (
	"regexp"
	"strings"
)

// jurisdictionCodes maps full Indian state and union territory names to the
// two-letter codes used in folder naming. Alternative spellings share a code.
var jurisdictionCodes = map[string]string{
	"andhra pradesh":    "AP",
	"arunachal pradesh": "AR",
	"assam":             "AS",
	"bihar":             "BR",
	"chhattisgarh":      "CG",
	"goa":               "GA",
	"gujarat":           "GJ",
	"haryana":           "HR",
	"himachal pradesh":  "HP",
	"jharkhand":         "JH",
	"karnataka":         "KA",
	"kerala":            "KL",
	"madhya pradesh":    "MP",
	"maharashtra":       "MH",
	"manipur":           "MN",
	"meghalaya":         "ML",
	"mizoram":           "MZ",
	"nagaland":          "NL",
	"odisha":            "OD",
	"orissa":            "OD",
	"punjab":            "PB",
	"rajasthan":         "RJ",
	"sikkim":            "SK",
	"tamil nadu":        "TN",
	"telangana":         "TS",
	"tripura":           "TR",
	"uttar pradesh":     "UP",
	"uttarakhand":       "UK",
	"west bengal":       "WB",
	"andaman and nicobar islands": "AN",
	"chandigarh":                  "CH",
	"dadra and nagar haveli and daman and diu": "DD",
	"delhi": "DL",
	"national capital territory of delhi": "DL",
	"jammu and kashmir":                   "JK",
	"ladakh":                              "LA",
	"lakshadweep":                         "LD",
	"puducherry":                          "PY",
	"pondicherry":                         "PY",
}

// JurisdictionCode converts a jurisdiction name into its short code. Names
// missing from the table fall back to an initials abbreviation so unknown
// regions still produce stable folder keys.
func JurisdictionCode(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	if cleaned == "" {
		return ""
	}
	if code, ok := jurisdictionCodes[cleaned]; ok {
		return code
	}
	words := strings.Fields(cleaned)
	if len(words) >= 2 {
		return strings.ToUpper(words[0][:1] + words[1][:1])
	}
	limit := 3
	if len(cleaned) < limit {
		limit = len(cleaned)
	}
	return strings.ToUpper(cleaned[:limit])
}

var privateWord = regexp.MustCompile(`(?i)\bPrivate\b`)
var limitedWord = regexp.MustCompile(`(?i)\bLimited\b`)

// abbreviateClient applies the business abbreviations used throughout folder
// and report naming.
func abbreviateClient(client string) string {
	client = privateWord.ReplaceAllString(client, "Pvt")
	return limitedWord.ReplaceAllString(client, "Ltd")
}

// DefaultKeyLength caps client keys in folder names unless configured
// otherwise.
const DefaultKeyLength = 35

// ClientKey builds the `<Client>-<Code>` identity key. A maxLength of zero
// applies DefaultKeyLength; the client portion is truncated first so the
// jurisdiction code survives intact.
func ClientKey(client, jurisdiction string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultKeyLength
	}
	cleaned := abbreviateClient(strings.TrimSpace(client))
	code := JurisdictionCode(jurisdiction)

	key := cleaned + delimiter + code
	if len(key) <= maxLength {
		return key
	}
	available := maxLength - len(code) - len(delimiter)
	if available > 5 {
		return cleaned[:available] + delimiter + code
	}
	return key[:maxLength]
}
