package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

type dirStorageFake struct {
	dir string
	err error
}

func (f dirStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.dir, key), raw, 0o600)
}

func (f dirStorageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(f.dir, key))
}

func TestUploadProductSavesAndRebuilds(t *testing.T) {
	f := newReloadFixture(t, nil, nil)
	uc := NewProductIngestUseCase(dirStorageFake{dir: f.dir}, f.uc)

	res, err := uc.UploadProduct(context.Background(), "../ABC 100.md", bytes.NewBufferString("型號：ABC-100\n積分球"))
	if err != nil {
		t.Fatalf("UploadProduct() error = %v", err)
	}
	if res.SavedAs != "product_ABC_100.md" {
		t.Fatalf("unexpected saved name %q", res.SavedAs)
	}
	if res.KnownModels != 3 {
		t.Fatalf("expected 3 known models after rebuild, got %d", res.KnownModels)
	}
	if _, ok := f.catalog.IsKnownModel("ABC-100"); !ok {
		t.Fatalf("expected uploaded model to be known")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Reason != "upload:product_ABC_100.md" {
		t.Fatalf("unexpected events: %#v", f.publisher.events)
	}
	if f.uc.Generation() != 1 {
		t.Fatalf("expected generation bump, got %d", f.uc.Generation())
	}
}

func TestUploadProductKeepsExistingPrefix(t *testing.T) {
	storage := &storageFake{}
	uc := NewProductIngestUseCase(storage, newReloadFixture(t, nil, nil).uc)

	res, err := uc.UploadProduct(context.Background(), "product_LX-10.md", strings.NewReader("Model: LX-10"))
	if err != nil {
		t.Fatalf("UploadProduct() error = %v", err)
	}
	if res.SavedAs != "product_LX-10.md" || storage.files["product_LX-10.md"] != "Model: LX-10" {
		t.Fatalf("unexpected save: %q %#v", res.SavedAs, storage.files)
	}
}

func TestUploadProductValidation(t *testing.T) {
	uc := NewProductIngestUseCase(&storageFake{}, newReloadFixture(t, nil, nil).uc)
	cases := []struct {
		name string
		body string
	}{
		{"spec.pdf", "x"},
		{"empty.md", "  \n "},
		{"product_.md", "x"},
	}
	for _, tc := range cases {
		_, err := uc.UploadProduct(context.Background(), tc.name, strings.NewReader(tc.body))
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestUploadProductRejectsOversizedFile(t *testing.T) {
	uc := NewProductIngestUseCase(&storageFake{}, newReloadFixture(t, nil, nil).uc)
	big := bytes.Repeat([]byte("a"), maxProductDocBytes+1)
	_, err := uc.UploadProduct(context.Background(), "big.md", bytes.NewReader(big))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadProductStorageError(t *testing.T) {
	f := newReloadFixture(t, nil, nil)
	uc := NewProductIngestUseCase(&storageFake{err: errors.New("disk full")}, f.uc)

	_, err := uc.UploadProduct(context.Background(), "x.md", strings.NewReader("Model: X-100"))
	if err == nil || !strings.Contains(err.Error(), "save product document") {
		t.Fatalf("expected save error, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("failed upload must not publish")
	}
}
