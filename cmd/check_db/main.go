package main

import (
	"context"
	"fmt"
	"log"
	"sort"

	"go.uber.org/zap"

	"score-annotator/internal/annotation"
	"score-annotator/internal/config"
	"score-annotator/internal/database"
	"score-annotator/internal/model"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to %s database\n\n", cfg.Database.Driver)

	if !db.Migrator().HasTable(&model.Annotation{}) {
		fmt.Println("annotations table does NOT exist")
		return
	}

	columns, err := db.Migrator().ColumnTypes(&model.Annotation{})
	if err != nil {
		log.Fatal("Failed to read column types:", err)
	}
	fmt.Println("Columns:")
	for _, col := range columns {
		nullable, _ := col.Nullable()
		fmt.Printf("  - %s %s (nullable: %v)\n", col.Name(), col.DatabaseTypeName(), nullable)
	}
	fmt.Println()

	counts, err := annotation.NewStore(db).CountBySong(context.Background())
	if err != nil {
		log.Fatal("Failed to count annotations:", err)
	}

	songs := make([]string, 0, len(counts))
	var total int64
	for song, n := range counts {
		songs = append(songs, song)
		total += n
	}
	sort.Strings(songs)

	fmt.Printf("Annotations per song (%d songs, %d total):\n", len(songs), total)
	for _, song := range songs {
		fmt.Printf("  - %s: %d\n", song, counts[song])
	}
}
