package interceptors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
)

type auditEntry struct {
	callerID, action, resource, metadata, ip string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAudit) LogEvent(ctx context.Context, callerID, action, resource, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{callerID, action, resource, metadata, audit.ContextIP(ctx)})
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"BEARER abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := extractBearer(tc.header); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestAdminAuth(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	valid, _, err := tokens.IssueAdmin("ops@example")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}

	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = GetAdmin(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AdminAuth(tokens)(next)

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token " + valid, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodPost, "/admin/voucher", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized {
				if !strings.Contains(rec.Body.String(), "authorization") {
					t.Errorf("body = %q", rec.Body.String())
				}
				return
			}
			if gotSubject != "ops@example" {
				t.Errorf("subject = %q, want ops@example", gotSubject)
			}
		})
	}
}

func TestAdminAuth_NilProviderPassesThrough(t *testing.T) {
	called := false
	h := AdminAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/voucher", nil))
	if !called {
		t.Fatal("next handler not called")
	}
}

func TestRequestIP(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
		{"remote without port", nil, "1.2.3.4", "1.2.3.4"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := RequestIP(req); got != tc.want {
				t.Errorf("RequestIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAudit_RecordsRouteAndActor(t *testing.T) {
	rec := &recordingAudit{}
	r := chi.NewRouter()
	r.Use(ClientIP)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithAdmin(req.Context(), "ops@example")))
		})
	})
	r.Use(Audit(rec))
	r.Post("/admin/voucher", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/dev/otp/{callerId}", func(w http.ResponseWriter, req *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/admin/voucher", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dev/otp/0821234567", nil))

	if len(rec.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(rec.entries))
	}
	first := rec.entries[0]
	if first.callerID != "ops@example" || first.action != "create" || first.resource != "voucher" {
		t.Errorf("first entry = %+v", first)
	}
	if first.metadata != "status=400" {
		t.Errorf("metadata = %q, want status=400", first.metadata)
	}
	if first.ip != "192.0.2.7" {
		t.Errorf("ip = %q, want 192.0.2.7", first.ip)
	}
	second := rec.entries[1]
	if second.action != "get" || second.resource != "otp" || second.metadata != "status=200" {
		t.Errorf("second entry = %+v", second)
	}
}

func TestAudit_NilLoggerPassesThrough(t *testing.T) {
	called := false
	h := Audit(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("next handler not called")
	}
}

func TestGetAdmin_Unset(t *testing.T) {
	if s, ok := GetAdmin(context.Background()); ok || s != "" {
		t.Errorf("GetAdmin = %q, %v; want \"\", false", s, ok)
	}
}

func TestLoggingUnary_PassesThrough(t *testing.T) {
	interceptor := LoggingUnary(map[string]bool{"/skip": true})
	wantErr := status.Error(codes.NotFound, "nope")
	for _, method := range []string{"/skip", "/logged"} {
		resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: method},
			func(ctx context.Context, req interface{}) (interface{}, error) { return "resp", wantErr })
		if resp != "resp" || !errors.Is(err, wantErr) {
			t.Errorf("%s: resp=%v err=%v", method, resp, err)
		}
	}
}

func TestRecoveryUnary(t *testing.T) {
	interceptor := RecoveryUnary()
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/boom"},
		func(ctx context.Context, req interface{}) (interface{}, error) { panic("boom") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}
