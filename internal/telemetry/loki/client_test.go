package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func captureServer(t *testing.T, status int, got *PushRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
}

func TestPushEventJSON_LabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	defer srv.Close()

	raw := []byte(`{"id":"1","eventType":"transfer","callerId":"0821","source":"ussd","createdAt":"2026-03-01T12:00:00.5Z"}`)
	if err := NewClient(srv.URL+"/", nil).PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != Job || s.Stream["event_type"] != "transfer" || s.Stream["source"] != "ussd" {
		t.Errorf("labels = %v", s.Stream)
	}
	if _, ok := s.Stream["caller_id"]; ok {
		t.Error("caller id must not become a label")
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC).UnixNano()
	if s.Values[0][0] != strconv.FormatInt(want, 10) {
		t.Errorf("timestamp = %s, want %d", s.Values[0][0], want)
	}
	if s.Values[0][1] != string(raw) {
		t.Errorf("line = %q", s.Values[0][1])
	}
}

func TestPushEventJSON_UnparseableLine(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusOK, &got)
	defer srv.Close()

	if err := NewClient(srv.URL, nil).PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if l := got.Streams[0].Stream; len(l) != 1 || l["job"] != Job {
		t.Errorf("labels = %v, want only job", l)
	}
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusOK, &got)
	defer srv.Close()

	labels := map[string]string{"event_type": "voucher redeemed!", "empty": "  ", "job": "override"}
	if err := NewClient(srv.URL, nil).PushEvent(context.Background(), time.Now(), "line", labels); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	l := got.Streams[0].Stream
	if l["event_type"] != "voucher_redeemed_" {
		t.Errorf("event_type = %q", l["event_type"])
	}
	if _, ok := l["empty"]; ok {
		t.Error("blank labels should be dropped")
	}
	if l["job"] != Job {
		t.Errorf("job = %q, want %q", l["job"], Job)
	}
}

func TestPushEvent_Errors(t *testing.T) {
	if err := NewClient("", nil).PushEvent(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("empty base URL should error")
	}
	var got PushRequest
	srv := captureServer(t, http.StatusBadRequest, &got)
	defer srv.Close()
	if err := NewClient(srv.URL, nil).PushEvent(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("non-2xx should error")
	}
}
