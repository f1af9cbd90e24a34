package server

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bookshop/internal/app"
	"bookshop/internal/storage"
	"bookshop/internal/store"
	"bookshop/internal/view"
)

// newTestServer wires the server against in-memory stores with a seeded
// "u"/"p" admin. The returned client carries cookies and does not follow
// redirects so tests can assert on them.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	appCore, err := app.New(app.Config{
		Store:         mem,
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
		App:      appCore,
		Renderer: renderer,
		Images:   images,
	}).Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("new cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client, mem
}

func TestAdminRoutesRedirectToLoginWhenUnauthenticated(t *testing.T) {
	srv, client, mem := newTestServer(t)

	for _, path := range []string{"/admin/books", "/admin/add-book"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("GET %s status = %d, want 302", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/admin/login" {
			t.Fatalf("GET %s redirected to %q, want /admin/login", path, loc)
		}
	}

	// POST add-book without a session must not touch storage.
	resp, err := client.Post(srv.URL+"/admin/add-book", "application/x-www-form-urlencoded",
		strings.NewReader("id=1&name=Dune&author=H&genre=SF&price=9.99"))
	if err != nil {
		t.Fatalf("POST add-book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("POST add-book status = %d, want 302", resp.StatusCode)
	}
	books, _ := mem.ListBooks()
	if len(books) != 0 {
		t.Fatalf("unauthenticated add-book must not write, got %d books", len(books))
	}
}

func TestAdminLoginFlow(t *testing.T) {
	srv, client, _ := newTestServer(t)

	login := func(username, password string) *http.Response {
		t.Helper()
		resp, err := client.PostForm(srv.URL+"/admin/login", url.Values{
			"username": {username},
			"password": {password},
		})
		if err != nil {
			t.Fatalf("POST login: %v", err)
		}
		return resp
	}

	resp := login("nouser", "p")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Username unknown.") {
		t.Fatalf("unknown user: status=%d body=%q", resp.StatusCode, body)
	}

	resp = login("u", "wrong")
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Invalid password.") {
		t.Fatalf("bad password: status=%d body=%q", resp.StatusCode, body)
	}

	// A failed login must not authenticate the session.
	check, err := client.Get(srv.URL + "/admin/books")
	if err != nil {
		t.Fatalf("GET admin books: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect after failed login, got %d", check.StatusCode)
	}

	resp = login("u", "p")
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/admin/books" {
		t.Fatalf("successful login: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}

	check, err = client.Get(srv.URL + "/admin/books")
	if err != nil {
		t.Fatalf("GET admin books: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusOK {
		t.Fatalf("expected admin books after login, got %d", check.StatusCode)
	}

	// Already authenticated: the login page redirects to the books view.
	check, err = client.Get(srv.URL + "/admin/login")
	if err != nil {
		t.Fatalf("GET login: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusFound || check.Header.Get("Location") != "/admin/books" {
		t.Fatalf("expected redirect to books, got %d %q", check.StatusCode, check.Header.Get("Location"))
	}
}

// sessionCookie returns the jar's current session cookie value for the server.
func sessionCookie(t *testing.T, client *http.Client, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == defaultCookieName {
			return c.Value
		}
	}
	t.Fatal("session cookie not set")
	return ""
}

func TestLoginIssuesFreshSessionCookie(t *testing.T) {
	srv, client, _ := newTestServer(t)

	// Browse first so a pre-login session cookie exists.
	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	preLogin := sessionCookie(t, client, srv.URL)

	resp, err = client.PostForm(srv.URL+"/admin/login", url.Values{
		"username": {"u"},
		"password": {"p"},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login status = %d, want 302", resp.StatusCode)
	}

	postLogin := sessionCookie(t, client, srv.URL)
	if postLogin == preLogin {
		t.Fatal("login must rotate the session cookie")
	}

	// A cookie value captured before login must not carry admin rights.
	bare := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/books", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: preLogin})
	check, err := bare.Do(req)
	if err != nil {
		t.Fatalf("GET admin books with stale cookie: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusFound {
		t.Fatalf("stale cookie must be redirected to login, got %d", check.StatusCode)
	}

	// The rotated cookie works.
	check, err = client.Get(srv.URL + "/admin/books")
	if err != nil {
		t.Fatalf("GET admin books: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusOK {
		t.Fatalf("rotated cookie must grant access, got %d", check.StatusCode)
	}
}

func TestLogoutDropsAdminSession(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp, err := client.PostForm(srv.URL+"/admin/login", url.Values{
		"username": {"u"},
		"password": {"p"},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Post(srv.URL+"/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("logout: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}

	check, err := client.Get(srv.URL + "/admin/books")
	if err != nil {
		t.Fatalf("GET admin books: %v", err)
	}
	check.Body.Close()
	if check.StatusCode != http.StatusFound {
		t.Fatalf("expected login redirect after logout, got %d", check.StatusCode)
	}
}
