package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"bookshop/pkg/domain"
)

func loginAdmin(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	resp, err := client.PostForm(baseURL+"/admin/login", url.Values{
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
}

// addBookBody builds a multipart form with the given fields and a small
// cover image under the given filename.
func addBookBody(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	file, err := form.CreateFormFile("image", imageName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := file.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, form.FormDataContentType()
}

func TestAddBookUploadPersistsBookWithCoverPath(t *testing.T) {
	srv, client, mem := newTestServer(t)
	loginAdmin(t, client, srv.URL)

	body, contentType := addBookBody(t, map[string]string{
		"id": "7", "name": "Dune", "author": "Herbert", "genre": "SF", "price": "9.99",
	}, "cover.png")
	resp, err := client.Post(srv.URL+"/admin/add-book", contentType, body)
	if err != nil {
		t.Fatalf("POST add-book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/admin/books" {
		t.Fatalf("add-book: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}

	book, ok, err := mem.GetBook("7")
	if err != nil || !ok {
		t.Fatalf("book not persisted: ok=%v err=%v", ok, err)
	}
	if book.Name != "Dune" || book.Author != "Herbert" || book.Price != 9.99 {
		t.Fatalf("book fields not taken from the form: %+v", book)
	}
	if !strings.HasPrefix(book.Image, "/uploads/image-") || !strings.HasSuffix(book.Image, ".png") {
		t.Fatalf("cover path = %q, want /uploads/image-…png", book.Image)
	}
}

func TestAddBookDuplicateIDRerendersFormAndLeavesStorage(t *testing.T) {
	srv, client, mem := newTestServer(t)
	_ = mem.SaveBook(domain.Book{ID: "7", Name: "Dune"})
	loginAdmin(t, client, srv.URL)

	body, contentType := addBookBody(t, map[string]string{
		"id": "7", "name": "Other", "author": "Someone", "genre": "SF", "price": "1",
	}, "cover.png")
	resp, err := client.Post(srv.URL+"/admin/add-book", contentType, body)
	if err != nil {
		t.Fatalf("POST add-book: %v", err)
	}
	page := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(page, "Book ID already exists.") {
		t.Fatalf("duplicate id: status=%d body=%q", resp.StatusCode, page)
	}

	books, _ := mem.ListBooks()
	if len(books) != 1 || books[0].Name != "Dune" {
		t.Fatalf("duplicate insert must leave storage unchanged, got %+v", books)
	}
}

func TestAddBookRejectsDisallowedExtension(t *testing.T) {
	srv, client, mem := newTestServer(t)
	loginAdmin(t, client, srv.URL)

	body, contentType := addBookBody(t, map[string]string{
		"id": "8", "name": "Dune", "author": "Herbert", "genre": "SF", "price": "9.99",
	}, "payload.exe")
	resp, err := client.Post(srv.URL+"/admin/add-book", contentType, body)
	if err != nil {
		t.Fatalf("POST add-book: %v", err)
	}
	page := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(page, "Unsupported image type.") {
		t.Fatalf("bad extension: status=%d body=%q", resp.StatusCode, page)
	}

	books, _ := mem.ListBooks()
	if len(books) != 0 {
		t.Fatalf("rejected upload must not create a book, got %+v", books)
	}
}

func TestAddBookRejectsNonNumericPrice(t *testing.T) {
	srv, client, mem := newTestServer(t)
	loginAdmin(t, client, srv.URL)

	body, contentType := addBookBody(t, map[string]string{
		"id": "9", "name": "Dune", "author": "Herbert", "genre": "SF", "price": "cheap",
	}, "cover.png")
	resp, err := client.Post(srv.URL+"/admin/add-book", contentType, body)
	if err != nil {
		t.Fatalf("POST add-book: %v", err)
	}
	page := readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(page, "Price must be a number.") {
		t.Fatalf("bad price: status=%d body=%q", resp.StatusCode, page)
	}
	if books, _ := mem.ListBooks(); len(books) != 0 {
		t.Fatalf("rejected form must not create a book, got %+v", books)
	}
}
