package processor

import (
	"path/filepath"
	"testing"

	"github.com/nci/swathgrid/catalog"
	"github.com/nci/swathgrid/utils"
)

func TestOpenCatalog(t *testing.T) {
	config := utils.NewDefaultConfig()
	config.Catalog.Kind = "sqlite"
	config.Catalog.DSN = filepath.Join(t.TempDir(), "catalog.sqlite")
	config.Catalog.Pool = 2

	cat, err := OpenCatalog(config)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	if _, ok := cat.(*catalog.SQL); !ok {
		t.Errorf("expected SQL catalog, got %T", cat)
	}

	config.Catalog.Kind = "memory"
	config.Catalog.MemcacheAddress = "127.0.0.1:1"
	cat, err = OpenCatalog(config)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cat.(*catalog.Cached); !ok {
		t.Errorf("expected cached catalog, got %T", cat)
	}

	config.Catalog.Kind = "oracle"
	if _, err := OpenCatalog(config); err == nil {
		t.Errorf("expected error for unknown catalog kind")
	}
}
