// Package evidence provides knowledge-base clients that supply textual
// snippets for grounding candidate answers.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipperhouse/uax29/v2/sentences"

	"github.com/ahrav/go-quorum/internal/ports"
)

// DefaultTimeout bounds individual API requests.
const DefaultTimeout = 10 * time.Second

const userAgent = "go-quorum/1.0 (evidence retrieval)"

// WikipediaConfig configures the Wikipedia evidence source.
type WikipediaConfig struct {
	// Language selects the Wikipedia language edition, e.g. "en".
	Language string

	// BaseURL overrides the API endpoint, mainly for tests. Empty
	// derives the endpoint from Language.
	BaseURL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Wikipedia implements ports.EvidenceSource over the MediaWiki action
// API. Disambiguation pages resolve to the first alternative title, one
// level deep.
type Wikipedia struct {
	baseURL string
	client  *http.Client
}

var _ ports.EvidenceSource = (*Wikipedia)(nil)

// NewWikipedia creates the client.
func NewWikipedia(config WikipediaConfig) *Wikipedia {
	lang := config.Language
	if lang == "" {
		lang = "en"
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Wikipedia{baseURL: baseURL, client: client}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string            `json:"title"`
			Extract   string            `json:"extract"`
			Missing   *string           `json:"missing"`
			PageProps map[string]string `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns up to maxResults article titles matching the query.
func (w *Wikipedia) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprintf("%d", maxResults)},
		"format":   {"json"},
	}

	var resp searchResponse
	if err := w.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, item := range resp.Query.Search {
		titles = append(titles, item.Title)
	}
	return titles, nil
}

// FetchSummary returns the introductory extract of a page, truncated to
// maxSentences sentences. A missing page yields an empty string and no
// error. A disambiguation page resolves to the first different title
// from a fresh search, one level only.
func (w *Wikipedia) FetchSummary(ctx context.Context, title string, maxSentences int) (string, error) {
	extract, disambiguation, err := w.fetchExtract(ctx, title)
	if err != nil {
		return "", err
	}

	if disambiguation {
		alternatives, err := w.Search(ctx, title, 5)
		if err != nil {
			return "", err
		}
		for _, alt := range alternatives {
			if alt == title {
				continue
			}
			extract, disambiguation, err = w.fetchExtract(ctx, alt)
			if err != nil {
				return "", err
			}
			if disambiguation {
				extract = ""
			}
			break
		}
		if disambiguation {
			return "", nil
		}
	}

	return truncateSentences(extract, maxSentences), nil
}

// fetchExtract returns the plain-text intro of a page and whether the
// page is a disambiguation page.
func (w *Wikipedia) fetchExtract(ctx context.Context, title string) (string, bool, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|pageprops"},
		"explaintext": {"1"},
		"exintro":     {"1"},
		"redirects":   {"1"},
		"titles":      {title},
		"format":      {"json"},
	}

	var resp extractResponse
	if err := w.get(ctx, params, &resp); err != nil {
		return "", false, fmt.Errorf("wikipedia extract: %w", err)
	}

	for _, page := range resp.Query.Pages {
		if page.Missing != nil {
			return "", false, nil
		}
		if _, ok := page.PageProps["disambiguation"]; ok {
			return "", true, nil
		}
		return strings.TrimSpace(page.Extract), false, nil
	}
	return "", false, nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// truncateSentences keeps the first max sentences of text.
func truncateSentences(text string, max int) string {
	if text == "" || max <= 0 {
		return ""
	}

	var sb strings.Builder
	count := 0
	segs := sentences.FromString(text)
	for segs.Next() {
		sb.WriteString(segs.Value())
		count++
		if count >= max {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}
