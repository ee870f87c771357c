package anchor

import "strings"

// SchemeForDomain applies the URL scheme derivation rule shared by the
// discovery publisher and the transfer engine's status-page URLs
// (spec.md §4.1 "URL derivation"): localhost and 127.0.0.1 get plain
// HTTP, everything else gets HTTPS.
func SchemeForDomain(domain string) string {
	if strings.HasPrefix(domain, "localhost") || strings.HasPrefix(domain, "127.0.0.1") {
		return "http"
	}
	return "https"
}
