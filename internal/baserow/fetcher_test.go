package baserow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baserow-bridge/internal/common/errors"
)

type fakeBaserow struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	hits     int32
}

// newFakeBaserow serves pages in order; every page but the last points at
// the next one through the "next" cursor.
func newFakeBaserow(t *testing.T, pages ...[]map[string]interface{}) *fakeBaserow {
	t.Helper()
	fake := &fakeBaserow{}
	router := mux.NewRouter()
	router.HandleFunc("/api/database/rows/table/{table}/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fake.hits, 1)
		fake.mu.Lock()
		fake.requests = append(fake.requests, r)
		fake.mu.Unlock()

		index := 0
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &index)
		}

		var next interface{}
		if index+1 < len(pages) {
			next = fmt.Sprintf("%s%s?user_field_names=true&size=2&page=%d", fake.server.URL, r.URL.Path, index+1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   10,
			"next":    next,
			"results": pages[index],
		})
	}).Methods(http.MethodGet)

	fake.server = httptest.NewServer(router)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeBaserow) url() string {
	return f.server.URL + "/api/database/rows/table/42/"
}

func newTestFetcher(t *testing.T, opts Options) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(opts, nil)
	require.NoError(t, err)
	return fetcher
}

func TestFetchAll_ConcatenatesPagesInOrder(t *testing.T) {
	fake := newFakeBaserow(t,
		[]map[string]interface{}{{"id": 1}, {"id": 2}},
		[]map[string]interface{}{{"id": 3}},
	)
	fetcher := newTestFetcher(t, Options{URL: fake.url(), Token: "tok", PageSize: 2})

	rows, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, json.Number(fmt.Sprint(i+1)), row.ID())
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.hits))
}

func TestFetchAll_SendsAuthAndQuery(t *testing.T) {
	fake := newFakeBaserow(t, []map[string]interface{}{{"id": 1}})
	fetcher := newTestFetcher(t, Options{
		URL:      fake.url(),
		Token:    "secret-token",
		PageSize: 200,
		Filter:   &Filter{Field: "field_23", Type: "equal", Value: "get monthly traffic"},
	})

	_, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	req := fake.requests[0]
	assert.Equal(t, "Token secret-token", req.Header.Get("Authorization"))
	query := req.URL.Query()
	assert.Equal(t, "true", query.Get("user_field_names"))
	assert.Equal(t, "200", query.Get("size"))
	assert.Equal(t, "get monthly traffic", query.Get("filter__field_23__equal"))
}

func TestFetchAll_FollowsNextVerbatim(t *testing.T) {
	fake := newFakeBaserow(t,
		[]map[string]interface{}{{"id": 1}},
		[]map[string]interface{}{{"id": 2}},
	)
	fetcher := newTestFetcher(t, Options{
		URL:    fake.url(),
		Token:  "tok",
		Filter: &Filter{Field: "status", Type: "equal", Value: "x"},
	})

	_, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fake.requests, 2)

	second := fake.requests[1].URL.Query()
	assert.Equal(t, "1", second.Get("page"))
	assert.Equal(t, "2", second.Get("size"))
	assert.Empty(t, second.Get("filter__status__equal"))
}

func TestFetchAll_PreservesNestedStatusAndNumbers(t *testing.T) {
	fake := newFakeBaserow(t, []map[string]interface{}{
		{"id": 12345678901234, "status": map[string]interface{}{"id": 7, "value": "x"}},
	})
	fetcher := newTestFetcher(t, Options{URL: fake.url(), Token: "tok"})

	rows, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("12345678901234"), rows[0].ID())

	status, ok := rows[0]["status"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "x", status["value"])
	assert.Equal(t, json.Number("7"), status["id"])
}

func TestFetchAll_EmptyTable(t *testing.T) {
	fake := newFakeBaserow(t, []map[string]interface{}{})
	fetcher := newTestFetcher(t, Options{URL: fake.url(), Token: "tok"})

	rows, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchAll_HTTPErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"ERROR_INVALID_TOKEN"}`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, Options{URL: server.URL, Token: "bad"})
	rows, err := fetcher.FetchAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, errors.IsType(err, errors.ErrTypeHTTPStatus))
}

func TestFetchAll_SecondPageFailureLosesEverything(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			_, _ = fmt.Fprintf(w, `{"next":"%s/?page=2","results":[{"id":1}]}`, server.URL)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, Options{URL: server.URL, Token: "tok"})
	rows, err := fetcher.FetchAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, rows)
}

func TestFetchAll_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, Options{URL: server.URL, Token: "tok"})
	_, err := fetcher.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDecode))
}

func TestFetchAll_RepeatingCursor(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"next":"%s/?page=2","results":[]}`, server.URL)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, Options{URL: server.URL, Token: "tok"})
	_, err := fetcher.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDecode))
}

func TestFetchAll_SpacesPages(t *testing.T) {
	fake := newFakeBaserow(t,
		[]map[string]interface{}{{"id": 1}},
		[]map[string]interface{}{{"id": 2}},
		[]map[string]interface{}{{"id": 3}},
	)
	fetcher := newTestFetcher(t, Options{URL: fake.url(), Token: "tok", PageDelay: 40 * time.Millisecond})

	start := time.Now()
	rows, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestFetchAll_RetriesWhenConfigured(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"next":null,"results":[{"id":1}]}`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, Options{URL: server.URL, Token: "tok", MaxAttempts: 2})
	fetcher.client.WithRetryConfig(fastRetry(2))

	rows, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFirstPageURL_MergesExistingQuery(t *testing.T) {
	fetcher := newTestFetcher(t, Options{
		URL:      "https://api.baserow.io/api/database/rows/table/9/?user_field_names=true&include=field_17",
		Token:    "tok",
		PageSize: 50,
		Filter:   &Filter{Field: "field_23", Value: "x"},
	})

	raw, err := fetcher.FirstPageURL()
	require.NoError(t, err)
	assert.Contains(t, raw, "include=field_17")
	assert.Contains(t, raw, "size=50")
	assert.Contains(t, raw, "filter__field_23=x")
}

func TestNewFetcher_RequiresURLAndToken(t *testing.T) {
	_, err := NewFetcher(Options{Token: "tok"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewFetcher(Options{URL: "http://x"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestFilterParam(t *testing.T) {
	assert.Equal(t, "filter__field_23__equal", Filter{Field: "field_23", Type: "equal"}.Param())
	assert.Equal(t, "filter__field_23", Filter{Field: "field_23"}.Param())
	assert.Equal(t, "filter__field_23__value", Filter{Field: "field_23", Type: "value"}.Param())
}
