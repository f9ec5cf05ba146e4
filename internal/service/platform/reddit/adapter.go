package reddit

import (
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
	defaultAPIBase  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// Reddit private messages accept up to 10000 characters.
	maxMessageLength = 10000
)

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,21}$`)

// Adapter searches subreddits and sends private messages through the
// Reddit OAuth API.
type Adapter struct {
	logger     *zap.Logger
	client     *http.Client
	limiter    *rate.Limiter
	apiBase    string
	userAgent  string
	timeFilter string
	account    string
}

// New authenticates with the password grant of a Reddit "script" app and
// resolves the automation account name.
func New(ctx context.Context, cfg config.RedditConfig, logger *zap.Logger) (*Adapter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  defaultTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 60 * time.Second})
	src := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		ctx:      baseCtx,
		config:   oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	})

	a := newAdapter(oauth2.NewClient(baseCtx, src), defaultAPIBase, cfg, logger)
	if err := a.authenticate(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func newAdapter(client *http.Client, apiBase string, cfg config.RedditConfig, logger *zap.Logger) *Adapter {
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 1
	}
	return &Adapter{
		logger:     logger.With(zap.String("platform", string(models.PlatformReddit))),
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		apiBase:    strings.TrimRight(apiBase, "/"),
		userAgent:  cfg.UserAgent,
		timeFilter: cfg.TimeFilter,
	}
}

func validateConfig(cfg config.RedditConfig) error {
	required := map[string]string{
		"client_id":     cfg.ClientID,
		"client_secret": cfg.ClientSecret,
		"username":      cfg.Username,
		"password":      cfg.Password,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("missing required reddit config: %s", key)
		}
	}
	return nil
}

type passwordTokenSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

func (a *Adapter) authenticate(ctx context.Context) error {
	var me struct {
		Name string `json:"name"`
	}
	if err := a.getJSON(ctx, "/api/v1/me", nil, &me); err != nil {
		return fmt.Errorf("reddit authentication failed: %w", err)
	}
	if me.Name == "" {
		return fmt.Errorf("reddit authentication failed: empty account name")
	}
	a.account = me.Name
	a.logger.Info("Reddit authenticated", zap.String("account", me.Name))
	return nil
}

func (a *Adapter) Platform() models.Platform { return models.PlatformReddit }
func (a *Adapter) Enabled() bool             { return true }
func (a *Adapter) AccountID() string         { return a.account }
func (a *Adapter) MaxMessageLength() int     { return maxMessageLength }

// NormalizeCriteria picks a default subreddit from the keywords when the
// job did not name one.
func (a *Adapter) NormalizeCriteria(criteria models.SearchCriteria) (models.SearchCriteria, error) {
	criteria.Keywords = strings.TrimSpace(criteria.Keywords)
	if criteria.Keywords == "" {
		return criteria, fmt.Errorf("search keywords are required")
	}

	scope := strings.TrimSpace(criteria.Scope)
	scope = strings.TrimPrefix(strings.TrimPrefix(scope, "/"), "r/")
	if scope == "" {
		scope = DefaultSubreddit(criteria.Keywords)
	}
	if !scopePattern.MatchString(scope) {
		return criteria, fmt.Errorf("invalid subreddit name %q", scope)
	}
	criteria.Scope = scope
	return criteria, nil
}

// DefaultSubreddit maps keywords onto a broad community.
func DefaultSubreddit(keywords string) string {
	lower := strings.ToLower(keywords)
	groups := []struct {
		subreddit string
		words     []string
	}{
		{"programming", []string{"developer", "programming", "code", "git", "software"}},
		{"startups", []string{"product", "startup", "entrepreneur"}},
		{"design", []string{"design", "ui", "ux"}},
	}
	for _, g := range groups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				return g.subreddit
			}
		}
	}
	return "technology"
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				Author    string `json:"author"`
				Subreddit string `json:"subreddit"`
				Score     int    `json:"score"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *Adapter) Search(ctx context.Context, criteria models.SearchCriteria, limit int) ([]platform.Candidate, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := url.Values{}
	query.Set("q", criteria.Keywords)
	query.Set("restrict_sr", "1")
	query.Set("sort", "relevance")
	query.Set("t", a.timeFilter)
	query.Set("limit", strconv.Itoa(limit))

	var result listing
	path := fmt.Sprintf("/r/%s/search", url.PathEscape(criteria.Scope))
	if err := a.getJSON(ctx, path, query, &result); err != nil {
		return nil, fmt.Errorf("failed to search r/%s: %w", criteria.Scope, err)
	}

	candidates := make([]platform.Candidate, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		post := child.Data
		candidates = append(candidates, platform.Candidate{
			ID:          post.Author,
			DisplayName: post.Author,
			Source:      "r/" + criteria.Scope + " search: " + criteria.Keywords,
			Attributes: map[string]string{
				"subreddit":  post.Subreddit,
				"post_id":    post.ID,
				"post_title": post.Title,
				"post_score": strconv.Itoa(post.Score),
			},
		})
	}

	a.logger.Debug("Reddit search finished",
		zap.String("subreddit", criteria.Scope),
		zap.Int("posts", len(candidates)))
	return candidates, nil
}

type about struct {
	Data struct {
		Name             string  `json:"name"`
		LinkKarma        int     `json:"link_karma"`
		CommentKarma     int     `json:"comment_karma"`
		CreatedUTC       float64 `json:"created_utc"`
		Verified         bool    `json:"verified"`
		HasVerifiedEmail bool    `json:"has_verified_email"`
		IsSuspended      bool    `json:"is_suspended"`
		Subreddit        struct {
			PublicDescription string `json:"public_description"`
		} `json:"subreddit"`
	} `json:"data"`
}

type commentListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Subreddit string `json:"subreddit"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *Adapter) GetProfile(ctx context.Context, candidateID string) (*platform.Profile, error) {
	var user about
	if err := a.getJSON(ctx, fmt.Sprintf("/user/%s/about", url.PathEscape(candidateID)), nil, &user); err != nil {
		return nil, err
	}
	if user.Data.Name == "" || user.Data.IsSuspended {
		return nil, fmt.Errorf("u/%s: %w", candidateID, platform.ErrProfileNotFound)
	}

	karma := user.Data.LinkKarma + user.Data.CommentKarma
	profile := &platform.Profile{
		ID:    user.Data.Name,
		Name:  user.Data.Name,
		Title: "Reddit user",
		Bio:   user.Data.Subreddit.PublicDescription,
		URL:   "https://www.reddit.com/user/" + user.Data.Name,
		Attributes: map[string]string{
			"karma":         strconv.Itoa(karma),
			"link_karma":    strconv.Itoa(user.Data.LinkKarma),
			"comment_karma": strconv.Itoa(user.Data.CommentKarma),
			"verified":      strconv.FormatBool(user.Data.Verified),
		},
	}

	// The most recent community the user commented in stands in for a company.
	query := url.Values{}
	query.Set("limit", "10")
	var comments commentListing
	if err := a.getJSON(ctx, fmt.Sprintf("/user/%s/comments", url.PathEscape(candidateID)), query, &comments); err != nil {
		a.logger.Debug("Failed to fetch recent comments", zap.String("user", candidateID), zap.Error(err))
	} else if len(comments.Data.Children) > 0 {
		profile.Company = "r/" + comments.Data.Children[0].Data.Subreddit
	}
	if profile.Company == "" {
		profile.Company = "reddit"
	}

	return profile, nil
}

type composeResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}

func (a *Adapter) SendMessage(ctx context.Context, candidateID string, msg platform.Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "Hello"
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("to", candidateID)
	form.Set("subject", subject)
	form.Set("text", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/api/compose", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp composeResponse
	if err := a.do(req, &resp); err != nil {
		return err
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("u/%s: %w: %v", candidateID, platform.ErrMessageRejected, resp.JSON.Errors[0])
	}

	a.logger.Debug("Reddit message sent", zap.String("user", candidateID))
	return nil
}

func (a *Adapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := a.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req, out)
}

func (a *Adapter) do(req *http.Request, out any) error {
	if err := a.limiter.Wait(req.Context()); err != nil {
		return err
	}

	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return platform.ErrProfileNotFound
	case resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: reddit returned 403: %s", platform.ErrMessageRejected, string(body))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
