package server

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookshop/internal/app"
	"bookshop/internal/ratelimit"
	"bookshop/internal/storage"
	"bookshop/internal/store"
	"bookshop/internal/view"
)

func TestLoginRateLimited(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:         store.NewMemoryStore(),
		Sessions:      store.NewMemorySessionStore(),
		AdminUsername: "u",
		AdminPassword: "p",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	renderer, err := view.NewTemplateRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	images, err := storage.NewDiskImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("new image store: %v", err)
	}
	srv := httptest.NewServer(New(Config{
		App:          appCore,
		Renderer:     renderer,
		Images:       images,
		LoginLimiter: limiter,
	}).Router())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	form := url.Values{"username": {"u"}, "password": {"wrong"}}
	for i := 0; i < 2; i++ {
		resp, err := client.PostForm(srv.URL+"/admin/login", form)
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d status = %d, want 200", i, resp.StatusCode)
		}
	}

	resp, err := client.PostForm(srv.URL+"/admin/login", form)
	if err != nil {
		t.Fatalf("limited login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// The gate counts attempts before credential checks, so the right
	// password is throttled too.
	resp, err = client.PostForm(srv.URL+"/admin/login", url.Values{"username": {"u"}, "password": {"p"}})
	if err != nil {
		t.Fatalf("limited valid login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("valid login during lockout: status = %d, want 429", resp.StatusCode)
	}
}
