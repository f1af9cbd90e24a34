package store

import (
	"sync"

	"bookshop/pkg/domain"
)

// MemoryStore keeps catalog, ledger and admin data in-process for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	books  map[string]domain.Book
	seq    []string // book insertion order
	ledger []domain.Order
	admins map[string]domain.Admin
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:  make(map[string]domain.Book),
		admins: make(map[string]domain.Admin),
	}
}

// SaveBook stores a book record and tracks insertion order.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.seq = append(m.seq, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns books in insertion order.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.seq))
	for _, id := range m.seq {
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

// DeleteBook removes a book from the catalog.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	filtered := m.seq[:0]
	for _, item := range m.seq {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.seq = filtered
	return nil
}

// AppendOrder records a completed purchase.
func (m *MemoryStore) AppendOrder(o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, o)
	return nil
}

// ListOrders returns the ledger in append order.
func (m *MemoryStore) ListOrders() ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Order, len(m.ledger))
	copy(res, m.ledger)
	return res, nil
}

// GetAdmin looks up an admin by username.
func (m *MemoryStore) GetAdmin(username string) (domain.Admin, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[username]
	return a, ok, nil
}

// SaveAdmin stores admin credentials.
func (m *MemoryStore) SaveAdmin(a domain.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[a.Username] = a
	return nil
}
