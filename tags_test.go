package gather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTags(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"t1","type":"Tag","attributes":{"name":"member"}}]}`)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, newMemStore(t), apiSrv.URL, "https://auth.gather.example")

	tags, err := c.ListTags(context.Background(), "acct1", nil)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "t1", tags[0].ID)
	assert.Equal(t, "member", tags[0].Name)
}

func TestCreateTag(t *testing.T) {
	var gotBody []byte
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tags", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"t2","type":"Tag","attributes":{"name":"visitor"}}}`)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, newMemStore(t), apiSrv.URL, "https://auth.gather.example")

	tag, err := c.CreateTag(context.Background(), "acct1", "visitor")
	require.NoError(t, err)

	assert.JSONEq(t, `{"data":{"type":"Tag","attributes":{"name":"visitor"}}}`, string(gotBody))
	assert.Equal(t, "t2", tag.ID)
	assert.Equal(t, "visitor", tag.Name)
}

func TestTagPerson(t *testing.T) {
	var gotBody []byte
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/people/5/tags", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, newMemStore(t), apiSrv.URL, "https://auth.gather.example")

	require.NoError(t, c.TagPerson(context.Background(), "acct1", "5", "t2"))
	assert.JSONEq(t, `{"data":{"type":"Tag","id":"t2"}}`, string(gotBody))
}

func TestUntagPerson(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/people/5/tags/t2", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, newMemStore(t), apiSrv.URL, "https://auth.gather.example")
	assert.NoError(t, c.UntagPerson(context.Background(), "acct1", "5", "t2"))
}

func TestDeleteTag(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/tags/t2", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer apiSrv.Close()

	c := newTestClient(t, newMemStore(t), apiSrv.URL, "https://auth.gather.example")
	assert.NoError(t, c.DeleteTag(context.Background(), "acct1", "t2"))
}
