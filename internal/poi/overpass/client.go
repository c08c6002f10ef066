// Package overpass provides a client for the OSM Overpass API, used to bulk
// import POIs for a region into the local store.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/poi"
	"github.com/urbanindex/urbanindex/internal/resilience"
)

const (
	// DefaultBaseURL is the public Overpass API endpoint.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// ProviderName identifies this provider.
	ProviderName = "overpass"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// BaseURL is the interpreter endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with
	// retry and circuit breaking is created.
	HTTPClient HTTPDoer

	// Timeout for individual queries (default: 60s; Overpass region queries
	// are slow).
	Timeout time.Duration
}

// Client is an Overpass API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Overpass JSON response types.

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FetchRegion queries Overpass for all elements matching the given tag
// strings ("key=value") inside the bounding box and returns them as POIs.
// Ways and relations are collapsed to their center point.
func (c *Client) FetchRegion(ctx context.Context, bounds geo.Bounds, tags []string) ([]poi.POI, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	query, err := buildQuery(bounds, tags)
	if err != nil {
		return nil, err
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode)
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	pois := make([]poi.POI, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		p, ok := toPOI(el, tags)
		if ok {
			pois = append(pois, p)
		}
	}
	return pois, nil
}

// buildQuery assembles an Overpass QL query selecting nodes, ways, and
// relations for every tag inside the box.
func buildQuery(bounds geo.Bounds, tags []string) (string, error) {
	bbox := fmt.Sprintf("%f,%f,%f,%f", bounds.MinLat, bounds.MinLng, bounds.MaxLat, bounds.MaxLng)

	var b strings.Builder
	b.WriteString("[out:json][timeout:90];(")
	for _, tag := range tags {
		key, value, ok := strings.Cut(tag, "=")
		if !ok {
			return "", fmt.Errorf("malformed tag %q, want key=value", tag)
		}
		fmt.Fprintf(&b, `node[%q=%q](%s);way[%q=%q](%s);`, key, value, bbox, key, value, bbox)
	}
	b.WriteString(");out center;")
	return b.String(), nil
}

func toPOI(el overpassElement, requested []string) (poi.POI, bool) {
	lat, lng := el.Lat, el.Lon
	if el.Center != nil {
		lat, lng = el.Center.Lat, el.Center.Lon
	}
	if lat == 0 && lng == 0 {
		return poi.POI{}, false
	}

	// Match the element back to the requested tag that selected it.
	var tag string
	for _, t := range requested {
		key, value, _ := strings.Cut(t, "=")
		if el.Tags[key] == value {
			tag = t
			break
		}
	}
	if tag == "" {
		return poi.POI{}, false
	}

	return poi.POI{
		ID:   el.Type + "/" + strconv.FormatInt(el.ID, 10),
		Lat:  lat,
		Lng:  lng,
		Name: el.Tags["name"],
		Tag:  tag,
	}, true
}
