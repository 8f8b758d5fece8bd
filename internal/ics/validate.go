// Package ics provides ICS/webcal feed validation, fetching and parsing.
package ics

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// Validation rule identifiers, reported back to the caller so domain
// mismatches can be surfaced distinctly from scheme problems.
const (
	RuleMalformed = "malformed"
	RuleScheme    = "scheme"
	RuleDomain    = "domain"
)

// ValidationError describes why a sync URL was rejected.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ContentError describes why ICS content was rejected.
type ContentError struct {
	Message string
}

func (e *ContentError) Error() string {
	return e.Message
}

// Allowed domain suffixes per provider. A URL classified as a known provider
// must resolve to one of these hosts, otherwise the request could be steered
// at an arbitrary or internal host.
var providerDomains = map[models.SyncType][]string{
	models.SyncTypeGoogle: {"google.com", "googleusercontent.com"},
	models.SyncTypeICloud: {"icloud.com", "icloud-content.com"},
}

// ClassifySyncType determines the provider behind a calendar URL based on
// its host name. Unknown hosts are treated as generic webcal/custom feeds.
func ClassifySyncType(rawURL string) models.SyncType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.SyncTypeCustom
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "google.com"):
		return models.SyncTypeGoogle
	case strings.Contains(host, "icloud.com"):
		return models.SyncTypeICloud
	default:
		return models.SyncTypeCustom
	}
}

// ValidateSyncURL classifies and validates a candidate sync URL.
// It rejects malformed URLs, schemes other than http/https/webcal, and
// provider hosts outside the provider's allow-list.
func ValidateSyncURL(rawURL string) (models.SyncType, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", &ValidationError{
			Rule:    RuleMalformed,
			Message: "calendar URL is not a valid URL",
		}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal":
	default:
		return "", &ValidationError{
			Rule:    RuleScheme,
			Message: fmt.Sprintf("unsupported URL scheme %q (expected http, https or webcal)", u.Scheme),
		}
	}

	syncType := ClassifySyncType(rawURL)

	if domains, ok := providerDomains[syncType]; ok {
		host := strings.ToLower(u.Hostname())
		if !hostMatchesAny(host, domains) {
			return "", &ValidationError{
				Rule:    RuleDomain,
				Message: fmt.Sprintf("host %q is not an allowed %s calendar domain", host, syncType),
			}
		}
	}

	return syncType, nil
}

// hostMatchesAny reports whether host equals a domain or is a subdomain of it.
func hostMatchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ValidateContent checks that raw ICS text is well-formed enough to hand to
// the reconciler: non-empty, wrapped in a VCALENDAR envelope and containing
// at least one event block. This is the single gate between arbitrary feed
// bytes and the database.
func ValidateContent(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return &ContentError{Message: "ICS content is empty"}
	}

	if !strings.HasPrefix(trimmed, "BEGIN:VCALENDAR") {
		return &ContentError{Message: "ICS content is missing the BEGIN:VCALENDAR envelope"}
	}

	if !strings.Contains(trimmed, "END:VCALENDAR") {
		return &ContentError{Message: "ICS content is missing the END:VCALENDAR envelope"}
	}

	if !strings.Contains(trimmed, "BEGIN:VEVENT") {
		return &ContentError{Message: "ICS content contains no events"}
	}

	return nil
}
