package words

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Translator fetches accepted translations from the MyMemory API.
type Translator struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewTranslator builds a client for the given MyMemory endpoint
// (normally https://api.mymemory.translated.net/get).
func NewTranslator(baseURL string) *Translator {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil // retries are not worth log noise

	return &Translator{baseURL: baseURL, client: c}
}

type translateResponse struct {
	Matches []struct {
		Translation string `json:"translation"`
	} `json:"matches"`
}

// Translate returns every normalized translation candidate for an Italian
// word. The API may suggest several; all of them count as correct answers.
func (t *Translator) Translate(ctx context.Context, word string) ([]string, error) {
	q := url.Values{}
	q.Set("q", word)
	q.Set("langpair", "it|en")
	reqURL := t.baseURL + "?" + q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying mymemory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mymemory status %s", resp.Status)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding mymemory response: %w", err)
	}
	if len(decoded.Matches) == 0 {
		return nil, fmt.Errorf("no translations for %q", word)
	}

	accepted := make([]string, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		accepted = append(accepted, Normalize(m.Translation))
	}
	return accepted, nil
}

// Normalize lowercases a word and strips everything except latin letters,
// digits and spaces, so answer comparison ignores punctuation and casing.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
