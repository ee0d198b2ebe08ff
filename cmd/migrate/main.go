// Command migrate applies pending Postgres migrations and exits.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eldtechnologies/whiteboard/internal/store"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate [DATABASE_URL]  (or set DATABASE_URL)")
		os.Exit(2)
	}

	if err := store.RunMigrations(databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}
