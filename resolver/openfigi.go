package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultOpenFIGIURL is the OpenFIGI mapping endpoint.
const DefaultOpenFIGIURL = "https://api.openfigi.com/v3/mapping"

// OpenFIGI resolves ISINs with the OpenFIGI mapping API.
//
// Answers, including misses, are memoized for the lifetime of the client.
type OpenFIGI struct {
	URL     string
	Key     string // optional API key
	Client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
}

// NewOpenFIGI returns a client for the public OpenFIGI endpoint.
//
// Anonymous requests are limited to 25 per minute, keyed ones to 25 per 6 seconds.
func NewOpenFIGI(key string) *OpenFIGI {
	every := 60 * time.Second / 25
	if key != "" {
		every = 6 * time.Second / 25
	}
	return &OpenFIGI{
		URL:     DefaultOpenFIGIURL,
		Key:     key,
		Client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(every), 5),
		cache:   cache.New(cache.NoExpiration, 0),
	}
}

type figiJob struct {
	IDType   string `json:"idType"`
	IDValue  string `json:"idValue"`
	Currency string `json:"currency,omitempty"`
}

type cached struct {
	m   Match
	err error
}

// Resolve implements Resolver.
func (o *OpenFIGI) Resolve(ctx context.Context, q Query) (Match, error) {
	if v, ok := o.cache.Get(q.Key()); ok {
		c := v.(cached)
		return c.m, c.err
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return Match{}, err
	}

	var jobj any
	jobs := []figiJob{{IDType: "ID_ISIN", IDValue: q.ISIN, Currency: q.Currency}}
	if err := o.jwpost(ctx, jobs, &jobj); err != nil {
		return Match{}, fmt.Errorf("error resolving %q: %w", q.ISIN, err)
	}
	m, err := pickFIGI(q, jobj)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Match{}, fmt.Errorf("error parsing answer for %q: %w", q.ISIN, err)
	}
	o.cache.Set(q.Key(), cached{m, err}, cache.DefaultExpiration)
	return m, err
}

// pickFIGI selects the best candidate in an OpenFIGI answer.
//
// A candidate listed on the venue hint wins with full confidence.
// Otherwise the first one wins, with a confidence shared among the distinct tickers.
func pickFIGI(q Query, jobj any) (Match, error) {
	jval, err := jsonpath.Get("$[0].data", jobj)
	if err != nil {
		// OpenFIGI reports misses as a "warning" without "data".
		if _, werr := jsonpath.Get("$[0].warning", jobj); werr == nil {
			return Match{}, ErrNotFound
		}
		return Match{}, err
	}
	data, ok := jval.([]any)
	if !ok || len(data) == 0 {
		return Match{}, ErrNotFound
	}

	var candidates []Match
	tickers := make(map[string]bool)
	for _, d := range data {
		ticker, _ := jsonpath.Get("$.ticker", d)
		venue, _ := jsonpath.Get("$.exchCode", d)
		t, _ := ticker.(string)
		v, _ := venue.(string)
		if t == "" {
			continue
		}
		tickers[t] = true
		candidates = append(candidates, Match{Ticker: t, Venue: v})
	}
	if len(candidates) == 0 {
		return Match{}, ErrNotFound
	}
	if q.Venue != "" {
		for _, c := range candidates {
			if c.Venue == q.Venue {
				c.Confidence = 1
				return c, nil
			}
		}
	}
	best := candidates[0]
	best.Confidence = 1 / float64(len(tickers))
	return best, nil
}

// jwpost posts data as JSON and decodes the JSON answer into jobj.
func (o *OpenFIGI) jwpost(ctx context.Context, data, jobj any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.Key != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", o.Key)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http POST %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), jobj)
}
