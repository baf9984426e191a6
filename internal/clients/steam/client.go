package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/pkg/retry"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

// AppDetails is the normalized shape of one catalog entry.
type AppDetails struct {
	AppID               int64
	Name                string
	ShortDescription    string
	DetailedDescription string
	MediaURLs           []string
	Developers          []string
	Tags                []string
	ComingSoon          bool
	ReleaseDateText     string
	ReleaseDate         *time.Time
	Raw                 json.RawMessage
}

// SearchResult is one hit from the store's title search, already filtered to
// game entries.
type SearchResult struct {
	AppID     int64
	Name      string
	Thumbnail string
}

type Client interface {
	// AppDetails resolves one identifier to a catalog entry. Non-game
	// entry types (DLC, soundtracks, bundles) surface as ErrNotFound.
	AppDetails(ctx context.Context, appID int64) (*AppDetails, error)
	// Search resolves a bare title to candidate identifiers.
	Search(ctx context.Context, term string) ([]SearchResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client

	// One limiter across both endpoints: the upstream rate-limits per
	// origin, not per route.
	limiter *rate.Limiter
	policy  retry.Policy

	// Bounded search-response cache. Advisory only; entries evict LRU and
	// the cache is safe to lose on restart.
	searchCache *lru.Cache[string, []SearchResult]
}

const searchCacheSize = 512

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := utils.GetEnv("STEAM_API_BASE_URL", "https://store.steampowered.com", log)
	minIntervalMS := utils.GetEnvAsInt("STEAM_MIN_CALL_INTERVAL_MS", 1500, log)
	timeoutSec := utils.GetEnvAsInt("STEAM_TIMEOUT_SECONDS", 20, log)

	cache, err := lru.New[string, []SearchResult](searchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init search cache: %w", err)
	}

	return &client{
		log:         log.With("client", "SteamClient"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Duration(minIntervalMS)*time.Millisecond), 1),
		policy:      retry.DefaultPolicy(),
		searchCache: cache,
	}, nil
}

// ---- appdetails ----

type appDetailsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type appDetailsData struct {
	Type                string   `json:"type"`
	Name                string   `json:"name"`
	ShortDescription    string   `json:"short_description"`
	DetailedDescription string   `json:"detailed_description"`
	HeaderImage         string   `json:"header_image"`
	Developers          []string `json:"developers"`
	Screenshots         []struct {
		PathFull string `json:"path_full"`
	} `json:"screenshots"`
	Movies []struct {
		MP4 struct {
			Max string `json:"max"`
		} `json:"mp4"`
	} `json:"movies"`
	Genres []struct {
		Description string `json:"description"`
	} `json:"genres"`
	Categories []struct {
		Description string `json:"description"`
	} `json:"categories"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

func (c *client) AppDetails(ctx context.Context, appID int64) (*AppDetails, error) {
	if appID <= 0 {
		return nil, apperrors.ErrInvalidArgument
	}

	endpoint := fmt.Sprintf("%s/api/appdetails?appids=%d&l=en", c.baseURL, appID)

	var raw []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var opErr error
		raw, opErr = c.getOnce(ctx, endpoint)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	// Response is keyed by the requested id:
	// {"<appid>": {"success": bool, "data": {...}}}
	var outer map[string]appDetailsEnvelope
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("%w: appdetails payload: %v", apperrors.ErrMalformedResponse, err)
	}
	env, ok := outer[strconv.FormatInt(appID, 10)]
	if !ok || !env.Success || len(env.Data) == 0 {
		return nil, apperrors.ErrNotFound
	}

	var data appDetailsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: appdetails data: %v", apperrors.ErrMalformedResponse, err)
	}
	if data.Type != "game" {
		c.log.Debug("Rejecting non-game catalog entry", "app_id", appID, "type", data.Type)
		return nil, apperrors.ErrNotFound
	}
	if strings.TrimSpace(data.Name) == "" {
		return nil, fmt.Errorf("%w: appdetails entry has no name", apperrors.ErrMalformedResponse)
	}

	return normalizeAppDetails(appID, &data, env.Data), nil
}

func normalizeAppDetails(appID int64, data *appDetailsData, raw json.RawMessage) *AppDetails {
	var media []string
	if data.HeaderImage != "" {
		media = append(media, data.HeaderImage)
	}
	for _, s := range data.Screenshots {
		if s.PathFull != "" {
			media = append(media, s.PathFull)
		}
	}
	for _, m := range data.Movies {
		if m.MP4.Max != "" {
			media = append(media, m.MP4.Max)
		}
	}

	var tags []string
	seen := map[string]bool{}
	for _, g := range data.Genres {
		if g.Description != "" && !seen[g.Description] {
			seen[g.Description] = true
			tags = append(tags, g.Description)
		}
	}
	for _, cat := range data.Categories {
		if cat.Description != "" && !seen[cat.Description] {
			seen[cat.Description] = true
			tags = append(tags, cat.Description)
		}
	}

	out := &AppDetails{
		AppID:               appID,
		Name:                data.Name,
		ShortDescription:    data.ShortDescription,
		DetailedDescription: data.DetailedDescription,
		MediaURLs:           media,
		Developers:          data.Developers,
		Tags:                tags,
		ComingSoon:          data.ReleaseDate.ComingSoon,
		ReleaseDateText:     data.ReleaseDate.Date,
		Raw:                 raw,
	}
	if t, err := parseReleaseDate(data.ReleaseDate.Date); err == nil {
		out.ReleaseDate = &t
	}
	return out
}

var releaseDateLayouts = []string{"Jan 2, 2006", "2 Jan, 2006", "January 2, 2006", "2006"}

func parseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ---- store search ----

type searchResponse struct {
	Items []struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
		Name string `json:"name"`
		Tiny string `json:"tiny_image"`
	} `json:"items"`
}

func (c *client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	cacheKey := strings.ToLower(term)
	if hit, ok := c.searchCache.Get(cacheKey); ok {
		return hit, nil
	}

	endpoint := fmt.Sprintf("%s/api/storesearch/?term=%s&l=en&cc=US", c.baseURL, url.QueryEscape(term))

	var raw []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var opErr error
		raw, opErr = c.getOnce(ctx, endpoint)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: storesearch payload: %v", apperrors.ErrMalformedResponse, err)
	}

	out := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		// The store mixes apps, bundles and music into search output.
		if item.Type != "app" && item.Type != "game" {
			continue
		}
		if item.ID <= 0 {
			continue
		}
		out = append(out, SearchResult{AppID: item.ID, Name: item.Name, Thumbnail: item.Tiny})
	}

	c.searchCache.Add(cacheKey, out)
	return out, nil
}

// ---- transport ----

func (c *client) getOnce(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: catalog http 429", apperrors.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: catalog http %d", apperrors.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: catalog http %d: %s", apperrors.ErrMalformedResponse, resp.StatusCode, truncate(string(raw), 200))
	}
}

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
