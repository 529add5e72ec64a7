package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"rentflow/internal/config"
	"rentflow/internal/database"
	"rentflow/internal/domain"
	"rentflow/internal/models"
	"rentflow/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type ItemsFile struct {
	Items []config.ItemConfig `yaml:"items"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		itemsPath = flag.String("items", "configs/items.yaml", "path to items.yaml")
		dbPath    = flag.String("db", "./data/ledger.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*itemsPath)
	if err != nil {
		return fmt.Errorf("read items: %w", err)
	}
	var file ItemsFile
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return fmt.Errorf("parse items: %w", err)
	}
	if len(file.Items) == 0 {
		return errors.New("no items in yaml")
	}
	if err = config.ValidateItems(file.Items); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog := make([]*models.Item, 0, len(file.Items))
	created, updated := 0, 0
	for _, entry := range file.Items {
		item, err := entry.Item()
		if err != nil {
			return err
		}

		_, err = db.GetItemByID(ctx, item.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrItemNotFound):
			created++
		default:
			return fmt.Errorf("get item %d: %w", item.ID, err)
		}
		catalog = append(catalog, item)
	}

	// Кэш здесь не подключен: сервис перечитает предметы после истечения TTL
	items := service.NewItemService(db, db, nil, &logger)
	if err := items.SyncItems(ctx, catalog); err != nil {
		return fmt.Errorf("sync items: %w", err)
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
