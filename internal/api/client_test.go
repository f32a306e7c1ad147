package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetalk-app/wetalk-sync.git/internal/model"
)

func TestFetchContacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/u1", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]model.Conversation{
			{ID: "u2", Kind: model.KindDirect, DisplayName: "John Doe"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	contacts, err := c.FetchContacts("u1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "u2", contacts[0].ID)
}

func TestFetchDirectHistoryQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/direct", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("self"))
		assert.Equal(t, "u2", r.URL.Query().Get("peer"))
		_ = json.NewEncoder(w).Encode([]model.Message{{SenderID: "u2", Text: "hey", Time: 42}})
	}))
	defer srv.Close()

	msgs, err := New(srv.URL).FetchDirectHistory("u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hey", msgs[0].Text)
}

func TestCreateGroupPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/groups", r.URL.Path)
		var req createGroupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Team", req.Name)
		assert.Equal(t, "u1", req.CreatorID)
		assert.Equal(t, []string{"u2", "u3"}, req.MemberIDs)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.Conversation{
			ID: "g1", Kind: model.KindGroup, DisplayName: req.Name,
			Members: append([]string{req.CreatorID}, req.MemberIDs...),
			Admins:  []string{req.CreatorID},
		})
	}))
	defer srv.Close()

	grp, err := New(srv.URL).CreateGroup("Team", "u1", []string{"u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, "g1", grp.ID)
	assert.Equal(t, []string{"u1"}, grp.Admins)
}

func TestSetStarredFalseIsExplicit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		v, ok := body["starred"]
		require.True(t, ok, "starred must be on the wire even when false")
		assert.Equal(t, false, v)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).SetStarred("u1", "u2", false))
}

func TestMarkReadNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/read", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).MarkRead("u1", "u2"))
}

func TestServerErrorWrapsErrFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchContacts("u1")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestUnreachableServerWrapsErrFetch(t *testing.T) {
	_, err := New("http://127.0.0.1:1").FetchContacts("u1")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestBadJSONWrapsErrFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchContacts("u1")
	assert.ErrorIs(t, err, ErrFetch)
}
