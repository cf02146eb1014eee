package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HammerMeetNail/friendhub/internal/config"
	"github.com/HammerMeetNail/friendhub/internal/logging"
)

const (
	KindAddress = "address"
	KindPOI     = "poi"

	maxQueryLength   = 200
	searchLimit      = 10
	nearbyLimit      = 20
	defaultRadius    = 1000
	maxRadius        = 10000
	cacheKeyPrefix   = "places:"
	maxErrorBodySize = 4 * 1024
)

// Place is a validated location returned to clients.
type Place struct {
	Kind      string  `json:"kind"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PageID    int64   `json:"page_id,omitempty"`
	Distance  float64 `json:"distance,omitempty"`
}

// Result is either a successful list of places or a soft failure with a
// message for display. Upstream outages never surface as Go errors.
type Result struct {
	Success bool    `json:"success"`
	Places  []Place `json:"places"`
	Error   string  `json:"error,omitempty"`
}

func success(places []Place) Result {
	return Result{Success: true, Places: places}
}

func failure(msg string) Result {
	return Result{Success: false, Places: []Place{}, Error: msg}
}

// Cache stores serialized results. *services.RedisAdapter satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type Service struct {
	nominatimURL string
	wikipediaURL string
	userAgent    string
	cacheTTL     time.Duration
	client       *http.Client
	cache        Cache
}

func NewService(cfg config.PlacesConfig, cache Cache) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		nominatimURL: strings.TrimRight(cfg.NominatimURL, "/"),
		wikipediaURL: cfg.WikipediaURL,
		userAgent:    cfg.UserAgent,
		cacheTTL:     cfg.CacheTTL,
		client:       &http.Client{Timeout: timeout},
		cache:        cache,
	}
}

// Nominatim wire format. Coordinates arrive as strings.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Wikipedia geosearch wire format.
type geosearchResponse struct {
	Query struct {
		GeoSearch []geosearchPage `json:"geosearch"`
	} `json:"query"`
}

type geosearchPage struct {
	PageID int64   `json:"pageid"`
	Title  string  `json:"title"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Dist   float64 `json:"dist"`
}

// Search geocodes a free-text query.
func (s *Service) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(query) > maxQueryLength {
		return Result{}, ErrInvalidQuery
	}

	key := cacheKeyPrefix + "search:" + strings.ToLower(query)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(searchLimit))

	var raw []nominatimPlace
	if err := s.getJSON(ctx, s.nominatimURL+"/search?"+params.Encode(), &raw); err != nil {
		return s.softFailure("search", err), nil
	}

	places := make([]Place, 0, len(raw))
	for _, p := range raw {
		if place, ok := p.toPlace(); ok {
			places = append(places, place)
		}
	}

	result := success(places)
	s.toCache(ctx, key, result)
	return result, nil
}

// Nearby lists points of interest within radius meters of the coordinates.
func (s *Service) Nearby(ctx context.Context, lat, lng float64, radius int) (Result, error) {
	if !validCoordinates(lat, lng) {
		return Result{}, ErrInvalidLocation
	}
	if radius <= 0 {
		radius = defaultRadius
	}
	if radius > maxRadius {
		radius = maxRadius
	}

	key := fmt.Sprintf("%snearby:%.4f:%.4f:%d", cacheKeyPrefix, lat, lng, radius)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "geosearch")
	params.Set("format", "json")
	params.Set("gscoord", fmt.Sprintf("%f|%f", lat, lng))
	params.Set("gsradius", strconv.Itoa(radius))
	params.Set("gslimit", strconv.Itoa(nearbyLimit))

	var raw geosearchResponse
	if err := s.getJSON(ctx, s.wikipediaURL+"?"+params.Encode(), &raw); err != nil {
		return s.softFailure("nearby", err), nil
	}

	places := make([]Place, 0, len(raw.Query.GeoSearch))
	for _, p := range raw.Query.GeoSearch {
		if place, ok := p.toPlace(); ok {
			places = append(places, place)
		}
	}

	result := success(places)
	s.toCache(ctx, key, result)
	return result, nil
}

func (p nominatimPlace) toPlace() (Place, bool) {
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = strings.TrimSpace(p.Name)
	}
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lng, errLng := strconv.ParseFloat(p.Lon, 64)
	if name == "" || errLat != nil || errLng != nil || !validCoordinates(lat, lng) {
		return Place{}, false
	}
	return Place{Kind: KindAddress, Name: name, Latitude: lat, Longitude: lng}, true
}

func (p geosearchPage) toPlace() (Place, bool) {
	name := strings.TrimSpace(p.Title)
	if name == "" || !validCoordinates(p.Lat, p.Lon) {
		return Place{}, false
	}
	return Place{
		Kind:      KindPOI,
		Name:      name,
		Latitude:  p.Lat,
		Longitude: p.Lon,
		PageID:    p.PageID,
		Distance:  p.Dist,
	}, true
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func (s *Service) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ErrRateLimitExceeded, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response", ErrProviderUnavailable)
	}
	return nil
}

func (s *Service) softFailure(op string, err error) Result {
	logging.Warn("Places lookup failed", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	if errors.Is(err, ErrRateLimitExceeded) {
		return failure("Too many place lookups, try again shortly")
	}
	return failure("Places are unavailable right now")
}

func (s *Service) fromCache(ctx context.Context, key string) (Result, bool) {
	if s.cache == nil {
		return Result{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, false
	}
	return result, true
}

// toCache only stores successful results.
func (s *Service) toCache(ctx context.Context, key string, result Result) {
	if s.cache == nil || s.cacheTTL <= 0 || !result.Success {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		logging.Warn("Failed to cache places result", map[string]interface{}{
			"error": err.Error(),
			"key":   key,
		})
	}
}
