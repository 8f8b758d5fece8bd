package ics

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DataURLPrefix marks an embedded one-time import: the uploaded ICS content
// is stored base64-encoded directly in the sync record's URL field.
const DataURLPrefix = "data:text/calendar;base64,"

// EncodeContentURL embeds raw ICS content in a data URL for storage.
func EncodeContentURL(content []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(content)
}

// Fetcher retrieves ICS content for a sync record, either from a remote
// feed URL or from embedded one-time import content.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given outbound timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch returns the raw ICS body for the given calendar URL.
// webcal:// URLs are rewritten to https:// before the request; data URLs are
// decoded locally without any network access.
func (f *Fetcher) Fetch(ctx context.Context, calendarURL string) ([]byte, error) {
	if strings.HasPrefix(calendarURL, DataURLPrefix) {
		body, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(calendarURL, DataURLPrefix))
		if err != nil {
			return nil, fmt.Errorf("decoding embedded ICS content: %w", err)
		}
		return body, nil
	}

	fetchURL := calendarURL
	if strings.HasPrefix(strings.ToLower(fetchURL), "webcal://") {
		fetchURL = "https://" + fetchURL[len("webcal://"):]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed body: %w", err)
	}

	return body, nil
}
