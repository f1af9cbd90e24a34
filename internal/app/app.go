package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bookshop/internal/events"
	"bookshop/internal/store"
	"bookshop/pkg/auth"
	"bookshop/pkg/domain"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	AMQPURL       string
	OrderExchange string
	AdminUsername string
	AdminPassword string
	Store         store.Store
	Sessions      store.SessionStore
	Events        events.Publisher
}

// App is the workflow controller. It orchestrates transitions between the
// session state, the catalog, and the order ledger.
type App struct {
	store    store.Store
	sessions store.SessionStore
	events   events.Publisher
}

// New constructs the application, choosing session and event backends from
// config when none are injected.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	var gormStore *store.GormStore
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		gormStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		dataStore = gormStore
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case cfg.RedisAddr != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		case gormStore != nil:
			var err error
			sessionStore, err = store.NewGormSessionStore(gormStore.DB(), cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("init session table: %w", err)
			}
		default:
			return nil, fmt.Errorf("session store required (redisAddr or database-backed sessions)")
		}
	}

	publisher := cfg.Events
	if publisher == nil {
		if cfg.AMQPURL != "" {
			exchange := cfg.OrderExchange
			if exchange == "" {
				exchange = "bookshop.orders"
			}
			var err error
			publisher, err = events.NewAMQPPublisher(cfg.AMQPURL, exchange)
			if err != nil {
				return nil, fmt.Errorf("init order publisher: %w", err)
			}
		} else {
			publisher = events.NopPublisher{}
		}
	}

	a := &App{
		store:    dataStore,
		sessions: sessionStore,
		events:   publisher,
	}
	if cfg.AdminUsername != "" {
		if err := a.seedAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// seedAdmin creates the configured admin account when it does not exist yet.
func (a *App) seedAdmin(username, password string) error {
	_, ok, err := a.store.GetAdmin(username)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if ok {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := a.store.SaveAdmin(domain.Admin{Username: username, PasswordHash: hash}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// Login validates admin credentials and marks the session authenticated.
// Unknown usernames and wrong passwords are distinct failures so the login
// form can show the right message.
func (a *App) Login(sessionID, username, password string) error {
	admin, ok, err := a.store.GetAdmin(username)
	if err != nil {
		return fmt.Errorf("fetch admin: %w", err)
	}
	if !ok {
		return ErrUnknownUser
	}
	if !auth.CheckPassword(password, admin.PasswordHash) {
		return ErrInvalidPassword
	}
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Admin = &admin
	if err := a.sessions.Put(sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// RotateSession moves the session state under a fresh identifier and drops
// the old one. Called after a session gains admin rights so a cookie value
// captured before login stops working.
func (a *App) RotateSession(oldID, newID string) error {
	sess, ok, err := a.sessions.Get(oldID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil
	}
	if err := a.sessions.Put(newID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := a.sessions.Destroy(oldID); err != nil {
		return fmt.Errorf("destroy old session: %w", err)
	}
	return nil
}

// Logout destroys the whole session, not just the admin marker. Destroy
// faults are logged; the caller redirects to the landing page regardless.
func (a *App) Logout(sessionID string) error {
	if err := a.sessions.Destroy(sessionID); err != nil {
		slog.Error("failed to destroy session", "err", err)
		return err
	}
	return nil
}

// Admin returns the authenticated admin for the session, if any.
func (a *App) Admin(sessionID string) (domain.Admin, bool) {
	sess, ok, err := a.sessions.Get(sessionID)
	if err != nil {
		slog.Error("failed to load session", "err", err)
		return domain.Admin{}, false
	}
	if !ok || sess.Admin == nil {
		return domain.Admin{}, false
	}
	return *sess.Admin, true
}

// ListBooks returns the full catalog in insertion order.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// AddBook inserts a new catalog entry after the pre-insert existence check.
// An existing ID leaves storage unchanged.
func (a *App) AddBook(b domain.Book) error {
	_, exists, err := a.store.GetBook(b.ID)
	if err != nil {
		return fmt.Errorf("check book id: %w", err)
	}
	if exists {
		return ErrDuplicateBookID
	}
	if err := a.store.SaveBook(b); err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

// Dashboard loads catalog and ledger together for the admin books view.
func (a *App) Dashboard(ctx context.Context) ([]domain.Book, []domain.Order, error) {
	var (
		books  []domain.Book
		orders []domain.Order
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = a.store.ListBooks()
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = a.store.ListOrders()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return books, orders, nil
}

// SelectProduct overwrites the single direct-buy slot with the given item.
func (a *App) SelectProduct(sessionID string, item domain.CartItem) error {
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.SelectedProduct = &item
	if err := a.sessions.Put(sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SelectedProduct returns the current direct-buy selection, if any.
func (a *App) SelectedProduct(sessionID string) (domain.CartItem, bool, error) {
	sess, ok, err := a.sessions.Get(sessionID)
	if err != nil {
		return domain.CartItem{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok || sess.SelectedProduct == nil {
		return domain.CartItem{}, false, nil
	}
	return *sess.SelectedProduct, true, nil
}

// AddToCart appends one item to the session cart. The cart is append-only
// and order-preserving; duplicates are allowed.
func (a *App) AddToCart(sessionID string, item domain.CartItem) error {
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Cart = append(sess.Cart, item)
	if err := a.sessions.Put(sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Cart returns the session cart; a never-created cart is an empty slice.
func (a *App) Cart(sessionID string) ([]domain.CartItem, error) {
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Cart == nil {
		return []domain.CartItem{}, nil
	}
	return sess.Cart, nil
}

// ChooseFromCart recomputes the items-to-buy subset as the subsequence of the
// cart whose IDs appear in ids, preserving cart order. An absent cart is
// treated as empty.
func (a *App) ChooseFromCart(sessionID string, ids []string) error {
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	selected := make([]domain.CartItem, 0, len(sess.Cart))
	for _, item := range sess.Cart {
		if _, ok := wanted[item.ID]; ok {
			selected = append(selected, item)
		}
	}
	sess.ItemsToBuy = selected
	if err := a.sessions.Put(sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ItemsToBuy returns the last cart-buy selection; empty when never computed.
func (a *App) ItemsToBuy(sessionID string) ([]domain.CartItem, error) {
	sess, _, err := a.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.ItemsToBuy == nil {
		return []domain.CartItem{}, nil
	}
	return sess.ItemsToBuy, nil
}

// Checkout commits the direct-buy selection: append the order, remove the
// book, clear the slot. The ledger append and the catalog delete are
// deliberately best-effort and non-transactional; their faults are logged
// and never surfaced, so checkout always looks successful to the client.
// With no selection it is a no-op that also reports success.
func (a *App) Checkout(ctx context.Context, sessionID string) error {
	sess, ok, err := a.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok || sess.SelectedProduct == nil {
		slog.Info("checkout with no product selected", "session_id", sessionID)
		return nil
	}
	selected := *sess.SelectedProduct

	order := domain.Order{
		ProductID: selected.ID,
		Name:      selected.Name,
		Price:     selected.Price,
		Author:    selected.Author,
		Genre:     selected.Genre,
		Image:     selected.Image,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendOrder(order); err != nil {
		slog.Error("failed to insert order", "product_id", selected.ID, "err", err)
	}
	if err := a.store.DeleteBook(selected.ID); err != nil {
		slog.Error("failed to delete purchased book", "product_id", selected.ID, "err", err)
	}
	if err := a.events.PublishOrderPlaced(ctx, order); err != nil {
		slog.Error("failed to publish order event", "product_id", selected.ID, "err", err)
	}

	sess.SelectedProduct = nil
	if err := a.sessions.Put(sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Close releases long-lived resources (the event publisher connection).
func (a *App) Close() error {
	return a.events.Close()
}
