package store_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/warebot/warebot_backend/store"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFeishuTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *store.FeishuStore) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, map[string]any{"code": 0, "tenant_access_token": "tok-1", "expire": 7200})
	})
	mux.HandleFunc("/", handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	fs := store.NewFeishuStore(store.FeishuConfig{
		AppId:      "app-id",
		AppSecret:  "app-secret",
		AppToken:   "bascn123",
		BaseUrl:    ts.URL,
		MaxRetries: 2,
	}, quietLogger())
	return ts, fs
}

func TestFeishuListPaginatesAndAuthorizes(t *testing.T) {
	var sawAuth atomic.Bool
	_, fs := newFeishuTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-1") {
			sawAuth.Store(true)
		}
		if r.URL.Query().Get("page_token") == "" {
			writeJson(w, map[string]any{"code": 0, "data": map[string]any{
				"items":      []map[string]any{{"record_id": "rec1", "fields": map[string]any{"product_id": "P1"}}},
				"has_more":   true,
				"page_token": "next",
			}})
			return
		}
		writeJson(w, map[string]any{"code": 0, "data": map[string]any{
			"items":    []map[string]any{{"record_id": "rec2", "fields": map[string]any{"product_id": "P2"}}},
			"has_more": false,
		}})
	})

	records, err := fs.List(context.Background(), "tbl1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 || records[0].Id != "rec1" || records[1].Id != "rec2" {
		t.Fatalf("pagination wrong: %+v", records)
	}
	if !sawAuth.Load() {
		t.Fatalf("tenant access token not sent")
	}
}

func TestFeishuCreateReturnsAssignedIds(t *testing.T) {
	_, fs := newFeishuTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/batch_create") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Records []struct {
				Fields map[string]any `json:"fields"`
			} `json:"records"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		out := make([]map[string]any, 0, len(payload.Records))
		for i, rec := range payload.Records {
			out = append(out, map[string]any{"record_id": "rec" + string(rune('1'+i)), "fields": rec.Fields})
		}
		writeJson(w, map[string]any{"code": 0, "data": map[string]any{"records": out}})
	})

	created, err := fs.Create(context.Background(), "tbl1", []map[string]any{{"product_id": "P1"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].Id != "rec1" {
		t.Fatalf("created ids wrong: %+v", created)
	}
}

func TestFeishuRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	_, fs := newFeishuTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJson(w, map[string]any{"code": 0, "data": map[string]any{"items": []any{}, "has_more": false}})
	})

	if _, err := fs.List(context.Background(), "tbl1"); err != nil {
		t.Fatalf("List should succeed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestFeishuDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	_, fs := newFeishuTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJson(w, map[string]any{"code": 1254045, "msg": "FieldNameNotFound"})
	})

	err := fs.Update(context.Background(), "tbl1", "rec1", map[string]any{"bogus": 1})
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	if !store.IsRejected(err) {
		t.Fatalf("expected ErrStoreRejected, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("rejections must not be retried, got %d attempts", calls.Load())
	}
}

func TestFeishuSurfacesUnavailableAfterRetryBudget(t *testing.T) {
	_, fs := newFeishuTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := fs.List(context.Background(), "tbl1")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !store.IsUnavailable(err) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
