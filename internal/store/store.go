package store

import "bookshop/pkg/domain"

// Store defines persistence operations for the catalog, the order ledger,
// and admin credentials.
type Store interface {
	// catalog
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	DeleteBook(id string) error

	// ledger (append-only)
	AppendOrder(domain.Order) error
	ListOrders() ([]domain.Order, error)

	// admins
	GetAdmin(username string) (domain.Admin, bool, error)
	SaveAdmin(domain.Admin) error
}

// SessionStore persists per-browser session state keyed by an opaque ID.
type SessionStore interface {
	Get(id string) (domain.Session, bool, error)
	Put(id string, s domain.Session) error
	Destroy(id string) error
}
