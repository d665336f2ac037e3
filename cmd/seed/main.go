package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/app/service"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/achlys/whimsical-backend/internal/storage"
	"github.com/achlys/whimsical-backend/pkg/kvstore"
	"github.com/achlys/whimsical-backend/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path> [--yes]")
	}
	filePath := os.Args[1]
	assumeYes := len(os.Args) > 2 && (os.Args[2] == "--yes" || os.Args[2] == "-y")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "info", Format: "console", EnableColor: true})

	conn, err := db.Initialize(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(conn, cfg.Storefront); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	rows, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	fmt.Printf("Total rows to import: %d\n", len(rows))

	if !assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	ctx := context.Background()
	store := openCacheStore(ctx, cfg)
	defer store.Close()

	repo := repository.NewProductRepository(conn)
	cache := catalog.NewCachedProvider(catalog.NewRepositoryProvider(repo), store, cfg.Storefront.CatalogCacheTTL)
	products := service.NewProductService(repo, cache)

	result, err := products.ImportProducts(ctx, rows)
	for _, rejected := range result.Rejected {
		fmt.Printf("  skipped: %v\n", rejected)
	}
	if err != nil {
		log.Fatal("Import failed:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", result.Imported)
	fmt.Printf("Rows skipped: %d\n", len(result.Rejected))
}

// openCacheStore opens the server's store so the running server sees the
// invalidated catalog. A pebble directory held by the server cannot be
// opened twice, so that case falls back to a throwaway memory store and the
// server picks the import up when its cache expires.
func openCacheStore(ctx context.Context, cfg *config.Config) *storage.Store {
	store, err := storage.Open(ctx, cfg.Cart, cfg.Redis)
	if err != nil {
		logger.Warn("Catalog cache unavailable, server cache will refresh on expiry", map[string]interface{}{
			"store": cfg.Cart.Store,
			"error": err.Error(),
		})
		return &storage.Store{Store: kvstore.NewMemoryStore(), Backend: config.StoreMemory}
	}
	return store
}
