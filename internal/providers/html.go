// Copyright 2025 James Ross
package providers

import (
	"regexp"
	"strings"
)

var titleTagPattern = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

// extractTitleTag returns the contents of the page's <title> element,
// used by the scraping-based clients (TrekCore, StartrekCom) that don't
// expose a structured API.
func extractTitleTag(html string) string {
	m := titleTagPattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
