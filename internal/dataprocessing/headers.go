package dataprocessing

import (
	"strings"
)

// Canonical names of the fields the analyzer reports on. These are registry
// entries; referencing them through constants keeps the analyzer and the
// HTTP layer in sync with the registry spellings.
const (
	HeaderDomicile          = "Domicile"
	HeaderLegalStatus       = "Legal Status"
	HeaderFundName          = "Fund Name"
	HeaderPromoterInitiator = "Promoter/Initiator"
	HeaderIndustry          = "Industry"
	HeaderAssetAllocation   = "Asset Allocation"
	HeaderTNAVUSD           = "TNAV USD"
	HeaderUSSTNAV           = "USS TNAV"
)

// commonHeaders is the registry of fund data columns recognized across
// uploaded workbooks, in canonical order. Spellings mirror the upstream
// fund register export exactly, quirks included ("Monterey SchemelD",
// "ManCo/AlFM Location", "UCITS/ AIF"), because matching is performed
// against the files as they actually arrive.
var commonHeaders = []string{
	HeaderDomicile, HeaderLegalStatus, HeaderPromoterInitiator, "Monterey SchemelD",
	HeaderFundName, "Sub-Fund Name", "Region & Category", HeaderIndustry,
	HeaderAssetAllocation, "Fund Of Funds / Fund of Hedge Funds", "Master/Feeder",
	"Monterey Admin ID", "Administrator Location", "Monterey Audit ID",
	"Auditor", "Auditor Location", "Monterey Leg ID", "Legal Adviser",
	"Legal Adviser Location", "Transfer Agent", "Monterey ManCo/AIFM ID",
	"ManCo/AlFM Location", "ManCo/AIFM Parent Origin", "ManCo/AIFM Third Party",
	"Registered AIFM", "Self Managed", "Fund Vintage Year/Launch Date",
	"Sub-Fund Vintage Year/Launch Date", "Promoter Origin Code", "Administrator",
	"UCITS/ AIF", HeaderTNAVUSD, HeaderUSSTNAV,
}

// canonicalByKey maps the case-folded normalized form of every registry
// entry to its canonical spelling.
var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(commonHeaders))
	for _, h := range commonHeaders {
		m[headerKey(h)] = h
	}
	return m
}()

// registryRank maps each canonical header to its position in the registry.
var registryRank = func() map[string]int {
	m := make(map[string]int, len(commonHeaders))
	for i, h := range commonHeaders {
		m[h] = i
	}
	return m
}()

// CanonicalHeaders returns the registry in canonical order. The returned
// slice is a copy and safe to modify.
func CanonicalHeaders() []string {
	headers := make([]string, len(commonHeaders))
	copy(headers, commonHeaders)
	return headers
}

// PriorityHeaders returns the columns consolidated ahead of all other
// matched columns.
func PriorityHeaders() []string {
	return []string{HeaderDomicile, HeaderLegalStatus}
}

// NormalizeHeader cleans a workbook column name for matching: surrounding
// whitespace is trimmed and periods are removed. Case is preserved so the
// cleaned spelling can still be reported back to the user.
func NormalizeHeader(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, ".", "")
}

// headerKey returns the case-folded lookup key for a column name.
func headerKey(s string) string {
	return strings.ToLower(NormalizeHeader(s))
}

// MatchHeader resolves a workbook column name against the registry. The
// lookup ignores surrounding whitespace, periods, and case. It returns the
// canonical registry spelling and whether the name matched.
func MatchHeader(s string) (string, bool) {
	canonical, ok := canonicalByKey[headerKey(s)]
	return canonical, ok
}

// IsCommonHeader reports whether a workbook column name matches the registry.
func IsCommonHeader(s string) bool {
	_, ok := MatchHeader(s)
	return ok
}

// OrderColumns orders a set of canonical headers for extraction and
// consolidation: priority headers first (when present), then the remaining
// headers in registry order. Duplicates and names outside the registry are
// dropped.
func OrderColumns(canonical []string) []string {
	present := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		if _, ok := registryRank[c]; ok {
			present[c] = true
		}
	}

	ordered := make([]string, 0, len(present))
	for _, p := range PriorityHeaders() {
		if present[p] {
			ordered = append(ordered, p)
			present[p] = false
		}
	}
	for _, h := range commonHeaders {
		if present[h] {
			ordered = append(ordered, h)
			present[h] = false
		}
	}
	return ordered
}
