package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"baserow-bridge/internal/records"
)

// fakeSleeper records requested pauses instead of sleeping.
type fakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *fakeSleeper) calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// fakeWebhook stores every decoded body and answers with the status returned
// by respond for the n-th request (0-based).
type fakeWebhook struct {
	server  *httptest.Server
	mu      sync.Mutex
	bodies  []map[string]interface{}
	respond func(n int) int
}

func newFakeWebhook(t *testing.T, respond func(n int) int) *fakeWebhook {
	t.Helper()
	hook := &fakeWebhook{respond: respond}
	router := mux.NewRouter()
	router.HandleFunc("/webhook/{id}", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		hook.mu.Lock()
		n := len(hook.bodies)
		hook.bodies = append(hook.bodies, body)
		hook.mu.Unlock()

		status := http.StatusOK
		if hook.respond != nil {
			status = hook.respond(n)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"Workflow was started"}`))
	}).Methods(http.MethodPost).Headers("Content-Type", "application/json")

	hook.server = httptest.NewServer(router)
	t.Cleanup(hook.server.Close)
	return hook
}

func (h *fakeWebhook) url() string {
	return h.server.URL + "/webhook/abc"
}

func (h *fakeWebhook) received() []map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]interface{}(nil), h.bodies...)
}

func makeRecords(n int) []records.Record {
	recs := make([]records.Record, n)
	for i := range recs {
		recs[i] = records.Record{
			Domain:   fmt.Sprintf("site%d.com", i),
			RecordID: i + 1,
			Status:   "get monthly traffic",
		}
	}
	return recs
}
