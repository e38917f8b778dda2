package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/providers/common"
)

const (
	serviceName        = "tmdb"
	defaultBaseURL     = "https://api.themoviedb.org/3"
	posterBaseURL      = "https://image.tmdb.org/t/p/w500"
	defaultLanguage    = "en-US"
	defaultGenreTTL    = 24 * time.Hour
	redisGenreKey      = "moviesearch:tmdb:genres:"
	unknownGenre       = "Unknown Genre"
	topCastSize        = 5
	enrichConcurrency  = 4
	defaultHTTPTimeout = 30 * time.Second
)

type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	redis    *redis.Client
	genreTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	genresMu   sync.RWMutex
	genres     map[int]string
	genreGroup singleflight.Group
}

type Config struct {
	APIKey        string
	BaseURL       string
	Language      string
	Client        *http.Client
	Redis         *redis.Client
	GenreCacheTTL time.Duration
	Logger        *slog.Logger
}

type SearchResult struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
}

func (r SearchResult) PosterURL() string {
	if strings.TrimSpace(r.PosterPath) == "" {
		return ""
	}
	return posterBaseURL + r.PosterPath
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Details struct {
	ID       int     `json:"id"`
	Runtime  int     `json:"runtime"`
	Genres   []Genre `json:"genres"`
	Keywords struct {
		Keywords []Keyword `json:"keywords"`
	} `json:"keywords"`
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
}

// Augmentation is the part of a MovieRecord that only the detail endpoints know.
type Augmentation struct {
	TimeDuration string
	Keywords     []string
	Cast         []string
	FetchedAt    time.Time
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

type genreListResponse struct {
	Genres []Genre `json:"genres"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	genreTTL := cfg.GenreCacheTTL
	if genreTTL <= 0 {
		genreTTL = defaultGenreTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     httpClient,
		redis:    cfg.Redis,
		genreTTL: genreTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Client) Name() string { return serviceName }

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Search runs a movie search and converts every hit into a MovieRecord with
// genre names, runtime, keywords and top cast. Enrichment failures degrade to
// the bare hit.
func (c *Client) Search(ctx context.Context, query string) ([]domain.MovieRecord, error) {
	if !c.Enabled() {
		return []domain.MovieRecord{}, nil
	}
	hits, err := c.SearchMovie(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []domain.MovieRecord{}, nil
	}

	genres, err := c.GenreList(ctx)
	if err != nil {
		c.logger.Warn("tmdb genre list unavailable",
			slog.String("error", err.Error()),
		)
	}

	records := make([]domain.MovieRecord, len(hits))
	var group errgroup.Group
	group.SetLimit(enrichConcurrency)
	for index, hit := range hits {
		records[index] = c.toRecord(hit, genres)
		group.Go(func() error {
			augmentation, err := c.FetchDetails(ctx, hit.ID)
			if err != nil {
				c.logger.Debug("tmdb details unavailable",
					slog.Int("movieId", hit.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			applyAugmentation(&records[index], augmentation)
			return nil
		})
	}
	_ = group.Wait()
	return records, nil
}

// FetchDetails loads runtime, keywords and the top of the cast list for one movie.
func (c *Client) FetchDetails(ctx context.Context, movieID int) (Augmentation, error) {
	var (
		details Details
		credits Credits
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		details, err = c.MovieDetails(groupCtx, movieID)
		return err
	})
	group.Go(func() error {
		var err error
		credits, err = c.Credits(groupCtx, movieID)
		return err
	})
	if err := group.Wait(); err != nil {
		return Augmentation{}, err
	}

	augmentation := Augmentation{
		Keywords:  make([]string, 0, len(details.Keywords.Keywords)),
		Cast:      make([]string, 0, topCastSize),
		FetchedAt: c.now().UTC(),
	}
	if details.Runtime > 0 {
		augmentation.TimeDuration = fmt.Sprintf("%d mins", details.Runtime)
	}
	for _, keyword := range details.Keywords.Keywords {
		if name := strings.TrimSpace(keyword.Name); name != "" {
			augmentation.Keywords = append(augmentation.Keywords, name)
		}
	}
	for _, member := range credits.Cast {
		if len(augmentation.Cast) == topCastSize {
			break
		}
		if name := strings.TrimSpace(member.Name); name != "" {
			augmentation.Cast = append(augmentation.Cast, name)
		}
	}
	return augmentation, nil
}

func (c *Client) SearchMovie(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"query":    {strings.TrimSpace(query)},
		"language": {c.language},
		"page":     {"1"},
	}
	var response searchResponse
	if err := c.get(ctx, "/search/movie", params, &response); err != nil {
		return nil, err
	}
	if response.Results == nil {
		return []SearchResult{}, nil
	}
	return response.Results, nil
}

func (c *Client) MovieDetails(ctx context.Context, movieID int) (Details, error) {
	params := url.Values{"append_to_response": {"keywords"}}
	var details Details
	if err := c.get(ctx, "/movie/"+strconv.Itoa(movieID), params, &details); err != nil {
		return Details{}, err
	}
	return details, nil
}

func (c *Client) Credits(ctx context.Context, movieID int) (Credits, error) {
	var credits Credits
	if err := c.get(ctx, "/movie/"+strconv.Itoa(movieID)+"/credits", nil, &credits); err != nil {
		return Credits{}, err
	}
	return credits, nil
}

// GenreList returns the genre id to name table. It is loaded once per process
// (concurrent first callers share one request) and shared through Redis when
// configured. Failed loads are not memoized.
func (c *Client) GenreList(ctx context.Context) (map[int]string, error) {
	c.genresMu.RLock()
	genres := c.genres
	c.genresMu.RUnlock()
	if genres != nil {
		return genres, nil
	}

	value, err, _ := c.genreGroup.Do("genres", func() (any, error) {
		c.genresMu.RLock()
		loaded := c.genres
		c.genresMu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		table, ok := c.loadSharedGenres(ctx)
		if !ok {
			var response genreListResponse
			if err := c.get(ctx, "/genre/movie/list", url.Values{"language": {c.language}}, &response); err != nil {
				return nil, err
			}
			table = make(map[int]string, len(response.Genres))
			for _, genre := range response.Genres {
				table[genre.ID] = genre.Name
			}
			c.storeSharedGenres(ctx, table)
			c.logger.Info("tmdb genre list loaded", slog.Int("genres", len(table)))
		}

		c.genresMu.Lock()
		c.genres = table
		c.genresMu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(map[int]string), nil
}

func (c *Client) loadSharedGenres(ctx context.Context) (map[int]string, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, redisGenreKey+c.language).Bytes()
	if err != nil {
		return nil, false
	}
	var table map[int]string
	if err := json.Unmarshal(data, &table); err != nil || len(table) == 0 {
		return nil, false
	}
	return table, true
}

func (c *Client) storeSharedGenres(ctx context.Context, table map[int]string) {
	if c.redis == nil || len(table) == 0 {
		return
	}
	data, err := json.Marshal(table)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisGenreKey+c.language, data, c.genreTTL).Err(); err != nil {
		c.logger.Debug("tmdb genre list not shared", slog.String("error", err.Error()))
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return common.DoJSON(c.http, serviceName, req, out)
}

func (c *Client) toRecord(hit SearchResult, genres map[int]string) domain.MovieRecord {
	names := make([]string, 0, len(hit.GenreIDs))
	for _, id := range hit.GenreIDs {
		name, ok := genres[id]
		if !ok || name == "" {
			name = unknownGenre
		}
		names = append(names, name)
	}
	record := domain.MovieRecord{
		Name:         strings.TrimSpace(hit.Title),
		Poster:       hit.PosterURL(),
		Description:  strings.TrimSpace(hit.Overview),
		Cast:         []string{},
		YearReleased: common.YearFromDate(hit.ReleaseDate),
		Metadata: domain.MovieMetadata{
			Source:      serviceName,
			Genres:      names,
			Popularity:  hit.Popularity,
			LastUpdated: c.now().UTC(),
		},
	}
	if language := strings.TrimSpace(hit.OriginalLanguage); language != "" {
		record.Metadata.Languages = []string{language}
	}
	return record
}

func applyAugmentation(record *domain.MovieRecord, augmentation Augmentation) {
	if augmentation.TimeDuration != "" {
		record.TimeDuration = augmentation.TimeDuration
	}
	if len(augmentation.Cast) > 0 {
		record.Cast = augmentation.Cast
	}
	if len(augmentation.Keywords) > 0 {
		record.Metadata.Keywords = augmentation.Keywords
	}
	if !augmentation.FetchedAt.IsZero() {
		record.Metadata.LastUpdated = augmentation.FetchedAt
	}
}
