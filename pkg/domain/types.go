package domain

import "time"

// Book is a catalog entry available for purchase. Books are created by an
// admin, removed when purchased, and never updated in place.
type Book struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Author string  `json:"author"`
	Genre  string  `json:"genre"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
}

// Order is one row of the append-only purchase ledger. Orders carry a copy of
// the product fields at purchase time and are not linked to any customer.
type Order struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// Admin is a storefront administrator. Lookup is by username only.
type Admin struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// CartItem is a client-supplied purchase candidate. Entries without an ID are
// rejected at the HTTP boundary.
type CartItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Author string  `json:"author"`
	Genre  string  `json:"genre"`
	Image  string  `json:"image"`
}

// Session is the per-browser server-held state, keyed by an opaque cookie.
// ItemsToBuy is only ever recomputed from Cart, never mutated independently.
type Session struct {
	Admin           *Admin     `json:"admin,omitempty"`
	SelectedProduct *CartItem  `json:"selectedProduct,omitempty"`
	Cart            []CartItem `json:"cart,omitempty"`
	ItemsToBuy      []CartItem `json:"itemsToBuy,omitempty"`
}
