package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/platform"
)

const (
	defaultAPIBase = "https://api.twitter.com"

	maxMessageLength = 10000
)

var languagePattern = regexp.MustCompile(`^[a-z]{2}$`)

// Adapter finds users through recent tweet search and reaches them with
// direct messages. Search runs on the app bearer token, direct messages on
// the user-context token.
type Adapter struct {
	logger     *zap.Logger
	appClient  *http.Client
	userClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
	language   string
	account    string
}

func New(ctx context.Context, cfg config.TwitterConfig, logger *zap.Logger) (*Adapter, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("missing required twitter config: bearer_token")
	}
	if cfg.UserToken == "" {
		return nil, fmt.Errorf("missing required twitter config: user_token")
	}

	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 60 * time.Second})
	appClient := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken}))
	userClient := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.UserToken}))

	a := newAdapter(appClient, userClient, defaultAPIBase, cfg, logger)
	if err := a.authenticate(ctx, cfg.Username); err != nil {
		return nil, err
	}
	return a, nil
}

func newAdapter(appClient, userClient *http.Client, apiBase string, cfg config.TwitterConfig, logger *zap.Logger) *Adapter {
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 0.5
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	return &Adapter{
		logger:     logger.With(zap.String("platform", string(models.PlatformTwitter))),
		appClient:  appClient,
		userClient: userClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		apiBase:    strings.TrimRight(apiBase, "/"),
		language:   language,
	}
}

type user struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
	} `json:"public_metrics"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (a *Adapter) authenticate(ctx context.Context, configured string) error {
	var resp struct {
		Data user `json:"data"`
	}
	if err := a.getJSON(ctx, a.userClient, "/2/users/me", nil, &resp); err != nil {
		return fmt.Errorf("twitter authentication failed: %w", err)
	}
	a.account = resp.Data.Username
	if a.account == "" {
		a.account = configured
	}
	if configured != "" && !strings.EqualFold(configured, a.account) {
		a.logger.Warn("Configured username differs from token owner",
			zap.String("configured", configured),
			zap.String("token_owner", a.account))
	}
	a.logger.Info("Twitter authenticated", zap.String("account", a.account))
	return nil
}

func (a *Adapter) Platform() models.Platform { return models.PlatformTwitter }
func (a *Adapter) Enabled() bool             { return true }
func (a *Adapter) AccountID() string         { return a.account }
func (a *Adapter) MaxMessageLength() int     { return maxMessageLength }

// NormalizeCriteria uses the scope as the tweet language filter.
func (a *Adapter) NormalizeCriteria(criteria models.SearchCriteria) (models.SearchCriteria, error) {
	criteria.Keywords = strings.TrimSpace(criteria.Keywords)
	if criteria.Keywords == "" {
		return criteria, fmt.Errorf("search keywords are required")
	}
	scope := strings.ToLower(strings.TrimSpace(criteria.Scope))
	if scope == "" {
		scope = a.language
	}
	if !languagePattern.MatchString(scope) {
		return criteria, fmt.Errorf("invalid language code %q", criteria.Scope)
	}
	criteria.Scope = scope
	return criteria, nil
}

// BuildQuery excludes retweets so every hit has an original author.
func BuildQuery(criteria models.SearchCriteria) string {
	return fmt.Sprintf("%s -is:retweet lang:%s", criteria.Keywords, criteria.Scope)
}

func (a *Adapter) Search(ctx context.Context, criteria models.SearchCriteria, limit int) ([]platform.Candidate, error) {
	// recent search accepts 10..100
	if limit < 10 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := url.Values{}
	query.Set("query", BuildQuery(criteria))
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("expansions", "author_id")
	query.Set("user.fields", "username,name")

	var resp struct {
		Data []struct {
			ID       string `json:"id"`
			Text     string `json:"text"`
			AuthorID string `json:"author_id"`
		} `json:"data"`
		Includes struct {
			Users []user `json:"users"`
		} `json:"includes"`
	}
	if err := a.getJSON(ctx, a.appClient, "/2/tweets/search/recent", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to search tweets: %w", err)
	}

	authors := make(map[string]user, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		authors[u.ID] = u
	}

	candidates := make([]platform.Candidate, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		author, ok := authors[tweet.AuthorID]
		if !ok {
			continue
		}
		candidates = append(candidates, platform.Candidate{
			ID:          author.Username,
			DisplayName: author.Name,
			Source:      "tweet search: " + criteria.Keywords,
			Attributes: map[string]string{
				"user_id":  author.ID,
				"tweet_id": tweet.ID,
			},
		})
	}
	return candidates, nil
}

func (a *Adapter) lookupUser(ctx context.Context, username string) (*user, error) {
	query := url.Values{}
	query.Set("user.fields", "description,location,verified,public_metrics")

	var resp struct {
		Data   *user      `json:"data"`
		Errors []apiError `json:"errors"`
	}
	path := "/2/users/by/username/" + url.PathEscape(username)
	if err := a.getJSON(ctx, a.appClient, path, query, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("@%s: %w", username, platform.ErrProfileNotFound)
	}
	return resp.Data, nil
}

func (a *Adapter) GetProfile(ctx context.Context, candidateID string) (*platform.Profile, error) {
	u, err := a.lookupUser(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	name := u.Name
	if name == "" {
		name = u.Username
	}
	return &platform.Profile{
		ID:      u.Username,
		Name:    name,
		Title:   headline(u.Description),
		Company: u.Location,
		Bio:     u.Description,
		URL:     "https://x.com/" + u.Username,
		Attributes: map[string]string{
			"user_id":   u.ID,
			"followers": strconv.Itoa(u.PublicMetrics.FollowersCount),
			"tweets":    strconv.Itoa(u.PublicMetrics.TweetCount),
			"verified":  strconv.FormatBool(u.Verified),
		},
	}, nil
}

// headline takes the first sentence of a bio.
func headline(bio string) string {
	bio = strings.TrimSpace(bio)
	if i := strings.IndexAny(bio, ".|\n"); i > 0 {
		bio = bio[:i]
	}
	return strings.TrimSpace(bio)
}

func (a *Adapter) SendMessage(ctx context.Context, candidateID string, msg platform.Message) error {
	u, err := a.lookupUser(ctx, candidateID)
	if err != nil {
		return err
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	path := fmt.Sprintf("%s/2/dm_conversations/with/%s/messages", a.apiBase, url.PathEscape(u.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Data struct {
			EventID string `json:"dm_event_id"`
		} `json:"data"`
	}
	if err := a.do(a.userClient, req, &resp); err != nil {
		return err
	}
	a.logger.Debug("Twitter message sent",
		zap.String("user", candidateID),
		zap.String("event_id", resp.Data.EventID))
	return nil
}

func (a *Adapter) getJSON(ctx context.Context, client *http.Client, path string, query url.Values, out any) error {
	u := a.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(client, req, out)
}

func (a *Adapter) do(client *http.Client, req *http.Request, out any) error {
	if err := a.limiter.Wait(req.Context()); err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusNotFound:
			return platform.ErrProfileNotFound
		case http.StatusForbidden:
			return fmt.Errorf("%w: twitter returned 403: %s", platform.ErrMessageRejected, string(body))
		default:
			return fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(body))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
