package twitter

import (
	"context"
	"encoding/json"
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

	cfg := config.TwitterConfig{Language: "en", RequestsPerS: 1000}
	a := newAdapter(srv.Client(), srv.Client(), srv.URL, cfg, zap.NewNop())
	a.account = "outreach_bot"
	return a
}

func userHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"data":{"id":"42","name":"Alice Liddell","username":"alice",
		"description":"Staff engineer. Likes Go","location":"Acme Corp",
		"public_metrics":{"followers_count":120,"tweet_count":900}}}`))
}

func TestNormalizeCriteria(t *testing.T) {
	a := &Adapter{language: "en"}

	got, err := a.NormalizeCriteria(models.SearchCriteria{Keywords: "golang"})
	require.NoError(t, err)
	assert.Equal(t, "en", got.Scope)

	got, err = a.NormalizeCriteria(models.SearchCriteria{Keywords: "golang", Scope: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "de", got.Scope)

	_, err = a.NormalizeCriteria(models.SearchCriteria{Keywords: "golang", Scope: "german"})
	assert.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(models.SearchCriteria{Keywords: "devtools", Scope: "en"})
	assert.Equal(t, "devtools -is:retweet lang:en", q)
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))
		_, _ = w.Write([]byte(`{
			"data":[{"id":"t1","text":"hello","author_id":"42"},{"id":"t2","text":"orphan","author_id":"99"}],
			"includes":{"users":[{"id":"42","name":"Alice","username":"alice"}]}}`))
	})
	a := newTestAdapter(t, mux)

	got, err := a.Search(context.Background(), models.SearchCriteria{Keywords: "go", Scope: "en"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].ID)
	assert.Equal(t, "42", got[0].Attributes["user_id"])
}

func TestGetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/alice", userHandler)
	a := newTestAdapter(t, mux)

	p, err := a.GetProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", p.Name)
	assert.Equal(t, "Staff engineer", p.Title)
	assert.Equal(t, "Acme Corp", p.Company)
	assert.Equal(t, "120", p.Attributes["followers"])
}

func TestGetProfile_NotFound(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"title":"Not Found Error","detail":"Could not find user"}]}`))
	}))

	_, err := a.GetProfile(context.Background(), "ghost")
	assert.True(t, errors.Is(err, platform.ErrProfileNotFound))
}

func TestSendMessage(t *testing.T) {
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/alice", userHandler)
	mux.HandleFunc("/2/dm_conversations/with/42/messages", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"dm_event_id":"e1","dm_conversation_id":"c1"}}`))
	})
	a := newTestAdapter(t, mux)

	err := a.SendMessage(context.Background(), "alice", platform.Message{Body: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey", body["text"])
}

func TestSendMessage_Forbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/alice", userHandler)
	mux.HandleFunc("/2/dm_conversations/with/42/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"You cannot send messages to this user"}`))
	})
	a := newTestAdapter(t, mux)

	err := a.SendMessage(context.Background(), "alice", platform.Message{Body: "hey"})
	assert.True(t, errors.Is(err, platform.ErrMessageRejected))
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "Founder", headline("Founder | building things"))
	assert.Equal(t, "", headline(""))
}
