package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bookshop/internal/app"
	"bookshop/internal/ratelimit"
	"bookshop/internal/storage"
	"bookshop/internal/util"
	"bookshop/internal/view"
	"bookshop/pkg/domain"
)

const defaultCookieName = "bookshop_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	Renderer          view.Renderer
	Images            storage.ImageStore
	PublicDir         string
	SessionCookieName string
	MaxUploadBytes    int64
	AllowedExtensions []string
	LoginLimiter      *ratelimit.FixedWindowLimiter
}

// Server exposes the storefront and admin HTTP surface.
type Server struct {
	app               *app.App
	renderer          view.Renderer
	images            storage.ImageStore
	mux               *http.ServeMux
	cookieName        string
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	loginLimiter      *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	cookieName := strings.TrimSpace(cfg.SessionCookieName)
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	s := &Server{
		app:               cfg.App,
		renderer:          cfg.Renderer,
		images:            cfg.Images,
		mux:               http.NewServeMux(),
		cookieName:        cookieName,
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		loginLimiter:      cfg.LoginLimiter,
	}
	s.routes(cfg.PublicDir)
	return s
}

// Router returns the configured handler wrapped with middleware.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithRequestID(util.WithRequestLog(s.mux)))
}

func (s *Server) routes(publicDir string) {
	s.mux.HandleFunc("/", s.handleLanding)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// admin
	s.mux.HandleFunc("/admin/login", s.handleAdminLogin)
	s.mux.Handle("/admin/add-book", s.adminOnly(s.handleAddBook))
	s.mux.Handle("/admin/books", s.adminOnly(s.handleAdminBooks))

	// storefront workflow
	s.mux.HandleFunc("/buy-now", s.handleBuyNow)
	s.mux.HandleFunc("/checkout", s.handleCheckout)
	s.mux.HandleFunc("/add-to-cart", s.handleAddToCart)
	s.mux.HandleFunc("/cart", s.handleCart)
	s.mux.HandleFunc("/cart-buy", s.handleCartBuy)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/order-success", s.handleOrderSuccess)

	// public assets, uploaded covers included
	if publicDir != "" {
		fs := http.FileServer(http.Dir(publicDir))
		s.mux.Handle("/uploads/", fs)
		s.mux.Handle("/css/", fs)
		s.mux.Handle("/js/", fs)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionID returns the session identifier from the cookie, creating the
// cookie on first contact.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	s.setSessionCookie(w, id)
	return id
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// admin gate
type adminHandler func(http.ResponseWriter, *http.Request, domain.Admin)

// adminOnly redirects unauthenticated requests to the login page without
// touching storage. Gate failures are never errors.
func (s *Server) adminOnly(next adminHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := s.sessionID(w, r)
		admin, ok := s.app.Admin(sid)
		if !ok {
			s.audit(r, "admin.authorize", "fail")
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		next(w, r, admin)
	})
}

// handleLanding renders the public ordering page at the root path.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.sessionID(w, r)
	books, err := s.app.ListBooks()
	if err != nil {
		slog.Error("failed to fetch books", "err", err)
		serverError(w)
		return
	}
	s.render(w, "ordering-page", map[string]any{"Books": books})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.app.Admin(sid); ok {
			http.Redirect(w, r, "/admin/books", http.StatusFound)
			return
		}
		s.render(w, "login", map[string]any{"Error": ""})
	case http.MethodPost:
		if !s.allowLoginRate(w, r) {
			s.audit(r, "admin.login", "rate_limited")
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.PostFormValue("username"))
		password := r.PostFormValue("password")
		err := s.app.Login(sid, username, password)
		switch {
		case errors.Is(err, app.ErrUnknownUser), errors.Is(err, app.ErrInvalidPassword):
			s.audit(r, "admin.login", "fail", "username", username)
			s.render(w, "login", map[string]any{"Error": err.Error()})
		case err != nil:
			slog.Error("login failed", "err", err)
			serverError(w)
		default:
			// Rotate the session ID on privilege gain so a cookie value
			// captured before login cannot be replayed as admin.
			newSID := uuid.NewString()
			if err := s.app.RotateSession(sid, newSID); err != nil {
				slog.Error("session rotation failed", "err", err)
				serverError(w)
				return
			}
			s.setSessionCookie(w, newSID)
			s.audit(r, "admin.login", "success", "username", username)
			http.Redirect(w, r, "/admin/books", http.StatusFound)
		}
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, admin domain.Admin) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": ""})
	case http.MethodPost:
		s.handleAddBookSubmit(w, r, admin)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddBookSubmit(w http.ResponseWriter, r *http.Request, admin domain.Admin) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": "Cover image is required."})
		return
	}
	defer file.Close()
	if !s.isExtensionAllowed(header.Filename) {
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": "Unsupported image type."})
		return
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
	if err != nil {
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": "Price must be a number."})
		return
	}
	book := domain.Book{
		ID:     strings.TrimSpace(r.PostFormValue("id")),
		Name:   strings.TrimSpace(r.PostFormValue("name")),
		Author: strings.TrimSpace(r.PostFormValue("author")),
		Genre:  strings.TrimSpace(r.PostFormValue("genre")),
		Price:  price,
	}
	if book.ID == "" || book.Name == "" {
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": "ID and name are required."})
		return
	}

	imagePath, err := s.images.Save(header.Filename, file, header.Size)
	if err != nil {
		slog.Error("failed to store cover image", "err", err)
		serverError(w)
		return
	}
	book.Image = imagePath

	switch err := s.app.AddBook(book); {
	case errors.Is(err, app.ErrDuplicateBookID):
		s.render(w, "add-book", map[string]any{"Admin": admin, "Error": err.Error()})
	case err != nil:
		slog.Error("failed to add book", "book_id", book.ID, "err", err)
		serverError(w)
	default:
		s.audit(r, "admin.book.add", "success", "book_id", book.ID)
		http.Redirect(w, r, "/admin/books", http.StatusFound)
	}
}

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, _ domain.Admin) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, orders, err := s.app.Dashboard(r.Context())
	if err != nil {
		slog.Error("failed to fetch admin dashboard", "err", err)
		serverError(w)
		return
	}
	s.render(w, "books", map[string]any{"Books": books, "Orders": orders})
}

func (s *Server) handleBuyNow(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	switch r.Method {
	case http.MethodPost:
		item, err := decodeCartItem(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.app.SelectProduct(sid, item); err != nil {
			slog.Error("failed to store selection", "err", err)
			serverError(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case http.MethodGet:
		item, ok, err := s.app.SelectedProduct(sid)
		if err != nil {
			slog.Error("failed to load selection", "err", err)
			serverError(w)
			return
		}
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		s.render(w, "buy-now", map[string]any{"Product": item})
	default:
		methodNotAllowed(w)
	}
}

// handleCheckout always answers success. Write faults are logged inside the
// workflow, session faults here.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sid := s.sessionID(w, r)
	if err := s.app.Checkout(r.Context(), sid); err != nil {
		slog.Error("checkout session fault", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sid := s.sessionID(w, r)
	item, err := decodeCartItem(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.AddToCart(sid, item); err != nil {
		slog.Error("failed to add to cart", "err", err)
		serverError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sid := s.sessionID(w, r)
	cart, err := s.app.Cart(sid)
	if err != nil {
		slog.Error("failed to load cart", "err", err)
		serverError(w)
		return
	}
	s.render(w, "cart", map[string]any{"Cart": cart})
}

func (s *Server) handleCartBuy(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	switch r.Method {
	case http.MethodPost:
		var req cartBuyRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.ChooseFromCart(sid, req.Items); err != nil {
			slog.Error("failed to select cart items", "err", err)
			serverError(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case http.MethodGet:
		items, err := s.app.ItemsToBuy(sid)
		if err != nil {
			slog.Error("failed to load cart selection", "err", err)
			serverError(w)
			return
		}
		s.render(w, "cart-buy", map[string]any{"Items": items})
	default:
		methodNotAllowed(w)
	}
}

// handleLogout destroys the session and redirects to the landing page even
// when the destroy fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sid := s.sessionID(w, r)
	if err := s.app.Logout(sid); err != nil {
		s.audit(r, "logout", "fail", "reason", err.Error())
	} else {
		s.audit(r, "logout", "success")
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleOrderSuccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.render(w, "order-success", nil)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, name, data); err != nil {
		slog.Error("render failed", "template", name, "err", err)
	}
}

type cartBuyRequest struct {
	Items []string `json:"items"`
}

// decodeCartItem reads a cart entry from the request body, rejecting
// malformed entries instead of accumulating them.
func decodeCartItem(r *http.Request) (domain.CartItem, error) {
	var item domain.CartItem
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&item); err != nil {
		return domain.CartItem{}, fmt.Errorf("invalid JSON body")
	}
	if strings.TrimSpace(item.ID) == "" {
		return domain.CartItem{}, fmt.Errorf("item id is required")
	}
	return item, nil
}

// allowLoginRate enforces the optional login limiter, keyed per client IP.
func (s *Server) allowLoginRate(w http.ResponseWriter, r *http.Request) bool {
	if s.loginLimiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if s.loginLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many login attempts")
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func serverError(w http.ResponseWriter) {
	http.Error(w, "Server Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
