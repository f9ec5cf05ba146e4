package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/platform"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.RedditConfig{UserAgent: "test-agent", TimeFilter: "week", RequestsPerS: 1000}
	a := newAdapter(srv.Client(), srv.URL, cfg, zap.NewNop())
	a.account = "outreach_bot"
	return a
}

func TestNormalizeCriteria(t *testing.T) {
	a := &Adapter{}

	got, err := a.NormalizeCriteria(models.SearchCriteria{Keywords: " git workflow "})
	require.NoError(t, err)
	assert.Equal(t, "git workflow", got.Keywords)
	assert.Equal(t, "programming", got.Scope)

	got, err = a.NormalizeCriteria(models.SearchCriteria{Keywords: "saas", Scope: "r/SaaS"})
	require.NoError(t, err)
	assert.Equal(t, "SaaS", got.Scope)

	_, err = a.NormalizeCriteria(models.SearchCriteria{Keywords: "x", Scope: "not a sub!"})
	assert.Error(t, err)

	_, err = a.NormalizeCriteria(models.SearchCriteria{})
	assert.Error(t, err)
}

func TestDefaultSubreddit(t *testing.T) {
	cases := map[string]string{
		"Software developer tools": "programming",
		"startup founders":         "startups",
		"UX research":              "design",
		"cooking recipes":          "technology",
	}
	for keywords, want := range cases {
		assert.Equal(t, want, DefaultSubreddit(keywords), keywords)
	}
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "generics", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
		assert.Equal(t, "week", r.URL.Query().Get("t"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"data":{"id":"p1","title":"Generics help","author":"alice","subreddit":"golang","score":12}},
			{"data":{"id":"p2","title":"Another","author":"bob","subreddit":"golang","score":3}}
		]}}`))
	})
	a := newTestAdapter(t, mux)

	got, err := a.Search(context.Background(), models.SearchCriteria{Keywords: "generics", Scope: "golang"}, 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].ID)
	assert.Equal(t, "p1", got[0].Attributes["post_id"])
	assert.Equal(t, "12", got[0].Attributes["post_score"])
}

func TestSearch_ServerError(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := a.Search(context.Background(), models.SearchCriteria{Keywords: "x", Scope: "golang"}, 10)
	assert.Error(t, err)
}

func TestGetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/alice/about", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"name":"alice","link_karma":10,"comment_karma":5,"verified":true,
			"subreddit":{"public_description":"gopher"}}}`))
	})
	mux.HandleFunc("/user/alice/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"children":[{"data":{"subreddit":"golang"}}]}}`))
	})
	a := newTestAdapter(t, mux)

	p, err := a.GetProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "r/golang", p.Company)
	assert.Equal(t, "gopher", p.Bio)
	assert.Equal(t, "15", p.Attributes["karma"])
}

func TestGetProfile_NotFound(t *testing.T) {
	a := newTestAdapter(t, http.NotFoundHandler())

	_, err := a.GetProfile(context.Background(), "ghost")
	assert.True(t, errors.Is(err, platform.ErrProfileNotFound))
}

func TestSendMessage(t *testing.T) {
	var got map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compose", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"to":      r.PostForm.Get("to"),
			"subject": r.PostForm.Get("subject"),
			"text":    r.PostForm.Get("text"),
		}
		_, _ = w.Write([]byte(`{"json":{"errors":[]}}`))
	})
	a := newTestAdapter(t, mux)

	err := a.SendMessage(context.Background(), "alice", platform.Message{Body: "hi alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", got["to"])
	assert.Equal(t, "Hello", got["subject"])
	assert.Equal(t, "hi alice", got["text"])
}

func TestSendMessage_Rejected(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"json":{"errors":[["NOT_WHITELISTED_BY_USER_MESSAGE","user does not accept messages","to"]]}}`))
	}))

	err := a.SendMessage(context.Background(), "alice", platform.Message{Body: "hi"})
	assert.True(t, errors.Is(err, platform.ErrMessageRejected))
}

func TestValidateConfig(t *testing.T) {
	err := validateConfig(config.RedditConfig{ClientID: "id"})
	assert.Error(t, err)

	err = validateConfig(config.RedditConfig{ClientID: "id", ClientSecret: "s", Username: "u", Password: "p"})
	assert.NoError(t, err)
}
