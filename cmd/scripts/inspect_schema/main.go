package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		panic(err)
	}
	defer postgres.Close()

	const query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`

	for _, table := range db.Tables {
		rows, err := postgres.Pool.Query(ctx, query, table)
		if err != nil {
			panic(err)
		}

		fmt.Printf("%s:\n", table)
		found := false
		for rows.Next() {
			var name, dataType string
			if err := rows.Scan(&name, &dataType); err != nil {
				rows.Close()
				panic(err)
			}
			found = true
			fmt.Printf("- %s (%s)\n", name, dataType)
		}
		rows.Close()
		if rows.Err() != nil {
			panic(rows.Err())
		}
		if !found {
			fmt.Println("- (missing)")
		}
	}
}
