package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bookrec"
	"github.com/hupe1980/bookrec/blobstore"
	"github.com/hupe1980/bookrec/dataset"
)

const apiBooks = `ISBN,Book-Title,Book-Author,Year-Of-Publication,Publisher,Image-URL-M,Image-URL-L
ia,Title A,Author A,2000,Pub A,http://img/ma,http://img/la
ib,Title B,Author B,2001,Pub B,http://img/mb,http://img/lb
`

const apiRatings = `User-ID,ISBN,Book-Rating
1,ia,5
2,ia,4
1,ib,4
2,ib,5
`

const apiUsers = `User-ID,Age
1,30
2,40
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	files := dataset.Files{
		Books:   filepath.Join(dir, "books.csv"),
		Ratings: filepath.Join(dir, "ratings.csv"),
		Users:   filepath.Join(dir, "users.csv"),
	}
	require.NoError(t, os.WriteFile(files.Books, []byte(apiBooks), 0o644))
	require.NoError(t, os.WriteFile(files.Ratings, []byte(apiRatings), 0o644))
	require.NoError(t, os.WriteFile(files.Users, []byte(apiUsers), 0o644))

	eng, err := bookrec.Open(context.Background(),
		bookrec.WithDataset(files),
		bookrec.WithStore(blobstore.NewMemoryStore()),
		bookrec.WithThresholds(1, 1),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(eng, bookrec.NoopLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPIHealth(t *testing.T) {
	srv := newTestServer(t)

	var stats bookrec.Stats
	status := getJSON(t, srv.URL+"/api/v1/health", &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, bookrec.Stats{Titles: 2, Users: 2, Ratings: 4}, stats)
}

func TestAPIRecommend(t *testing.T) {
	srv := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		var result bookrec.RecommendResult
		status := getJSON(t, srv.URL+"/api/v1/recommend?title=Title+A&k=1", &result)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, bookrec.StatusFound, result.Status)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "Title B", result.Items[0].Title)
	})

	t.Run("unknown title", func(t *testing.T) {
		var result bookrec.RecommendResult
		status := getJSON(t, srv.URL+"/api/v1/recommend?title=Nope&k=1", &result)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, bookrec.StatusNotFound, result.Status)
		assert.Empty(t, result.Items)
	})

	t.Run("missing title", func(t *testing.T) {
		status := getJSON(t, srv.URL+"/api/v1/recommend", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("bad k", func(t *testing.T) {
		status := getJSON(t, srv.URL+"/api/v1/recommend?title=Title+A&k=zero", nil)
		assert.Equal(t, http.StatusBadRequest, status)

		status = getJSON(t, srv.URL+"/api/v1/recommend?title=Title+A&k=0", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestAPITop(t *testing.T) {
	srv := newTestServer(t)

	var books []bookrec.TopRatedBook
	status := getJSON(t, srv.URL+"/api/v1/top?n=1", &books)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, books, 1)
	assert.Equal(t, 2, books[0].NumRatings)

	status = getJSON(t, srv.URL+"/api/v1/top?n=-3", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPITitles(t *testing.T) {
	srv := newTestServer(t)

	var titles []string
	status := getJSON(t, srv.URL+"/api/v1/titles", &titles)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Title A", "Title B"}, titles)
}

func TestAPIRebuild(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/rebuild", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats bookrec.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Titles)
}

func TestAPIHealthNotReady(t *testing.T) {
	eng := bookrec.NewEngine(bookrec.WithStore(blobstore.NewMemoryStore()))
	srv := httptest.NewServer(newRouter(eng, bookrec.NoopLogger()))
	t.Cleanup(srv.Close)

	status := getJSON(t, srv.URL+"/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
