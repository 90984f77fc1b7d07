package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"parkingwatch/internal/repository/sqlite"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: migrate [-db path] up|down|status\n")
	flag.PrintDefaults()
}

func main() {
	dbPath := flag.String("db", "data/parkingwatch.db", "Database path")
	flag.Usage = usage
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.Migrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case "down":
		if err := db.Rollback(); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
	case "status":
	default:
		usage()
		os.Exit(2)
	}

	version, err := db.Version()
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("Database %s is at schema version %d\n", *dbPath, version)
}
