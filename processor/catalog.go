package processor

import (
	"strings"

	"github.com/nci/swathgrid/catalog"
	"github.com/nci/swathgrid/utils"
)

// OpenCatalog connects the catalog configured in config. SQL backends get
// the configured connection pool; a memcache address puts the catalog
// behind the existence cache.
func OpenCatalog(config *utils.Config) (catalog.Catalog, error) {
	cat, err := catalog.Open(config.Catalog.Kind, config.Catalog.DSN)
	if err != nil {
		return nil, err
	}
	if db, ok := cat.(*catalog.SQL); ok && config.Catalog.Pool > 0 {
		db.SetPool(config.Catalog.Pool, config.Catalog.Pool)
	}
	if addrs := strings.TrimSpace(config.Catalog.MemcacheAddress); addrs != "" {
		return catalog.NewCached(cat, strings.Split(addrs, ",")...), nil
	}
	return cat, nil
}
