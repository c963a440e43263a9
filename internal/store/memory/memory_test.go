package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shoplist/internal/store"
	"shoplist/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	labels, _ := s.ListLabels(context.Background())
	if len(labels) != 0 {
		t.Fatalf("expected no labels when seed file missing, got %v", labels)
	}

	content := "# header\nNursery\nBaby\nNursery\n\nbad,label\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_labels.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s = NewFromFiles(dir)
	labels, _ = s.ListLabels(context.Background())
	if len(labels) != 2 || labels[0].Name != "Baby" || labels[1].Name != "Nursery" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
}
