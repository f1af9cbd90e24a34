package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookshop/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&BookModel{}, &OrderModel{}, &AdminModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying connection so session storage can share it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// SaveBook inserts a new catalog entry. Uniqueness of the ID is checked by
// the caller before insert, not by a constraint visible here.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	model.CreatedAt = time.Now().UTC()
	return s.db.Create(&model).Error
}

// GetBook retrieves a book by ID.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns the full catalog in insertion order.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBook removes a purchased book from the catalog.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// AppendOrder records a completed purchase in the ledger.
func (s *GormStore) AppendOrder(o domain.Order) error {
	model := orderToModel(o)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	return s.db.Create(&model).Error
}

// ListOrders returns the ledger, most recent first.
func (s *GormStore) ListOrders() ([]domain.Order, error) {
	var models []OrderModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Order, 0, len(models))
	for _, m := range models {
		res = append(res, orderFromModel(m))
	}
	return res, nil
}

// GetAdmin looks up an admin by username.
func (s *GormStore) GetAdmin(username string) (domain.Admin, bool, error) {
	var model AdminModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Admin{}, false, nil
		}
		return domain.Admin{}, false, err
	}
	return adminFromModel(model), true, nil
}

// SaveAdmin stores or updates admin credentials.
func (s *GormStore) SaveAdmin(a domain.Admin) error {
	model := adminToModel(a)
	model.CreatedAt = time.Now().UTC()
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash"}),
	}).Create(&model).Error
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:     b.ID,
		Name:   b.Name,
		Author: b.Author,
		Genre:  b.Genre,
		Price:  b.Price,
		Image:  b.Image,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:     m.ID,
		Name:   m.Name,
		Author: m.Author,
		Genre:  m.Genre,
		Price:  m.Price,
		Image:  m.Image,
	}
}

func orderToModel(o domain.Order) OrderModel {
	return OrderModel{
		ProductID: o.ProductID,
		Name:      o.Name,
		Price:     o.Price,
		Author:    o.Author,
		Genre:     o.Genre,
		Image:     o.Image,
		CreatedAt: o.CreatedAt,
	}
}

func orderFromModel(m OrderModel) domain.Order {
	return domain.Order{
		ProductID: m.ProductID,
		Name:      m.Name,
		Price:     m.Price,
		Author:    m.Author,
		Genre:     m.Genre,
		Image:     m.Image,
		CreatedAt: m.CreatedAt,
	}
}

func adminToModel(a domain.Admin) AdminModel {
	return AdminModel{
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
	}
}

func adminFromModel(m AdminModel) domain.Admin {
	return domain.Admin{
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
	}
}
