package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/db"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/ikkim/storefront-sync/pkg/util"
	"github.com/spf13/cobra"
)

var assumeYes bool

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Prepare the local storefront cache",
}

// catalogCmd imports catalog snapshots from a spreadsheet
var catalogCmd = &cobra.Command{
	Use:   "catalog <xlsx_file_path>",
	Short: "Import product snapshots from an XLSX file into the local cache",
	Long: `Reads the first sheet of an XLSX file and stores every row as a cached
catalog snapshot, so cart lines resolve their display data offline.

The header row names the columns: _id, title, price, priceAfterDiscount,
imageCover, description, quantity. Only _id, title and price are required.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

// hashPasswordCmd prints a value for LOCAL_ADMIN_PASSWORD_HASH
var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print the bcrypt hash of a local admin password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := util.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	catalogCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "import without asking for confirmation")
	rootCmd.AddCommand(catalogCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Initialize(logger.Config{Level: cfg.LogLevel(), Format: "console", EnableColor: true})

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		return err
	}
	fmt.Printf("Total products to import: %d\n", len(products))

	if !assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm = strings.ToLower(strings.TrimSpace(confirm)); confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return nil
		}
	}

	// import never calls the remote store
	var offline service.RemoteCatalog = offlineCatalog{}
	catalog := service.NewCatalogService(repository.NewProductRepository(cache), offline, cfg.Sync.Timeout)
	n, err := catalog.Import(products)
	if err != nil {
		return fmt.Errorf("failed to import products: %w", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", n)
	return nil
}

func openCache(cfg *config.Config) (repository.CacheRepository, func(), error) {
	if cfg.Cache.Driver == config.CacheDriverFile {
		cache, err := repository.NewFileCacheRepository(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file cache: %w", err)
		}
		return cache, func() {}, nil
	}

	database, err := db.Open(&cfg.Cache, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		db.Close(database)
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repository.NewCacheRepository(database), func() { db.Close(database) }, nil
}

type offlineCatalog struct{}

func (offlineCatalog) FetchProduct(ctx context.Context, productID string) (*storeapi.Product, error) {
	return nil, storeapi.ErrNetworkUnreachable
}

func (offlineCatalog) FetchProducts(ctx context.Context) ([]storeapi.Product, error) {
	return nil, storeapi.ErrNetworkUnreachable
}
