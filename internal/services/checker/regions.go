package checker

import "strings"

// DefaultRegions is the full storefront set probed when nothing narrower is asked for.
var DefaultRegions = []string{
	"us", "gb", "fr", "de", "it", "es", "se", "no", "dk", "fi", "nl", "be", "ie", "pt",
	"ca", "mx", "br", "ar", "cl", "cn", "co", "pe",
	"au", "nz", "jp", "kr", "tw", "hk", "sg", "my", "th", "vn", "ph", "id", "in",
	"sa", "ae", "eg", "ma", "tn", "za", "tr",
}

// MajorRegions is the reduced set used by the daily recheck. Removals that only
// affect smaller storefronts are not detected there.
var MajorRegions = []string{"us", "gb", "de", "fr", "jp", "ca", "au"}

var knownRegions = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DefaultRegions))
	for _, r := range DefaultRegions {
		m[r] = struct{}{}
	}
	return m
}()

// NormalizeRegions lower-cases, drops unknown codes and duplicates, and falls back
// to fallback (or DefaultRegions) when nothing usable is left.
func NormalizeRegions(requested []string, fallback []string) []string {
	out := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		r = strings.ToLower(strings.TrimSpace(r))
		if _, ok := knownRegions[r]; !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) > 0 {
		return out
	}
	if len(fallback) > 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), DefaultRegions...)
}

// ParseRegions accepts the comma separated form used in query strings.
func ParseRegions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
