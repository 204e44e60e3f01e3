package grounding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SemanticClient is the primary grounding provider: an HTTP client for a
// local semantic-similarity search service.
type SemanticClient struct {
	baseURL    string
	topK       int
	httpClient *http.Client
}

// NewSemanticClient creates a SemanticClient targeting the given base URL.
// Timeouts come from the resolver's per-attempt context, not the client.
func NewSemanticClient(baseURL string, topK int) *SemanticClient {
	if topK <= 0 {
		topK = 5
	}
	return &SemanticClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		topK:       topK,
		httpClient: &http.Client{Timeout: 0},
	}
}

func (c *SemanticClient) Name() string { return "semantic" }

type semanticRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type semanticResponse struct {
	Results []struct {
		Title string  `json:"title"`
		Text  string  `json:"text"`
		Score float32 `json:"score"`
	} `json:"results"`
}

// Fetch posts the query to the search service and maps its hits to passages.
func (c *SemanticClient) Fetch(ctx context.Context, query string) ([]Passage, error) {
	body, err := json.Marshal(semanticRequest{Query: query, TopK: c.topK})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting semantic search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	passages := make([]Passage, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		passages = append(passages, Passage{Source: "semantic", Title: r.Title, Text: r.Text})
	}
	return passages, nil
}
