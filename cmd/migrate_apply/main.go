package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"coinflip_escrow/internal/db"
	"coinflip_escrow/internal/logger"
)

func main() {
	_ = godotenv.Load()

	apply := flag.Bool("apply", false, "apply migrations")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	ctx := context.Background()

	// listing needs no database
	var pool *pgxpool.Pool
	if *apply {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			logger.Fatal("DATABASE_URL not set")
		}
		p, err := db.Open(ctx, dsn)
		if err != nil {
			logger.Fatal("connect", "error", err)
		}
		defer p.Close()
		pool = p
	}

	files, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal("read migrations dir", "error", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		if !*apply {
			fmt.Println(name)
			continue
		}
		b, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			logger.Fatal("read file", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("failed to apply migration", "file", name, "error", err)
		}
		fmt.Printf("applied %s\n", name)
	}
}
