// catalogctl-migrate is a standalone offline schema migration tool: it backs
// up a sqlite catalog file before applying pending revisions, so an operator
// can roll back a bad migration without reaching for version control.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/cuemby/blockcat/pkg/catalog"
)

var (
	databaseURL = flag.String("database", "", "Catalog database URL (sqlite:<path> or postgres://...)")
	dryRun      = flag.Bool("dry-run", false, "Show the applied/head revision without migrating")
	backupPath  = flag.String("backup", "", "Path to back up the database before migrating (sqlite only; default: <path>.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Catalog Schema Migration Tool")
	log.Println("=============================")

	if *databaseURL == "" {
		log.Fatal("-database is required")
	}
	log.Printf("Database: %s", *databaseURL)
	log.Printf("Dry run: %v", *dryRun)

	if path, ok := sqlitePath(*databaseURL); ok {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Fatalf("database not found at %s", path)
		}
		if !*dryRun {
			backupFile := *backupPath
			if backupFile == "" {
				backupFile = path + ".backup"
			}
			log.Printf("Creating backup: %s", backupFile)
			if err := copyFile(path, backupFile); err != nil {
				log.Fatalf("failed to create backup: %v", err)
			}
			log.Println("backup created")
		}
	} else if !*dryRun {
		log.Println("non-sqlite engine: skipping file backup, relying on the target's own backup mechanism")
	}

	store, err := catalog.New(*databaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	current, err := catalog.CurrentRevision(store.DB())
	if err != nil {
		log.Fatalf("failed to read current revision: %v", err)
	}
	head := catalog.HeadRevision()
	log.Printf("Current revision: %d, head: %d", current, head)

	if *dryRun {
		if current == head {
			log.Println("schema is already at head; nothing to do")
		} else {
			log.Printf("would apply revisions %d..%d", current+1, head)
		}
		return
	}

	if current == head {
		log.Println("schema is already at head; nothing to do")
		return
	}

	if current == 0 {
		if err := store.Init(); err != nil {
			log.Fatalf("init failed: %v", err)
		}
	} else if err := store.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}

func sqlitePath(url string) (string, bool) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://"), true
	case strings.HasPrefix(url, "sqlite:"):
		return strings.TrimPrefix(url, "sqlite:"), true
	default:
		return "", false
	}
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
