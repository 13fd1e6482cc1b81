// Command seed populates the user directory with demo accounts for
// local development.
package main

import (
	"context"
	"log"

	"gochat/internal/config"
	"gochat/internal/domain"
	"gochat/internal/store/sqlite"
)

func strp(s string) *string { return &s }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	users := []*domain.User{
		{
			ID:          "seed-test-user",
			Email:       strp("test@example.com"),
			FirstName:   strp("Test"),
			LastName:    strp("User"),
			DisplayName: strp("Test User"),
			Avatar:      strp("https://via.placeholder.com/150/0000FF/FFFFFF?text=TU"),
			IsActive:    true,
		},
		{
			ID:        "seed-john-doe",
			Email:     strp("john.doe@example.com"),
			FirstName: strp("John"),
			LastName:  strp("Doe"),
			Avatar:    strp("https://via.placeholder.com/150/FF0000/FFFFFF?text=JD"),
			IsActive:  true,
		},
		{
			ID:           "seed-jane-smith",
			Email:        strp("jane.smith@example.com"),
			ProviderName: strp("Jane Smith"),
			Avatar:       strp("https://via.placeholder.com/150/00FF00/FFFFFF?text=JS"),
			IsActive:     true,
		},
		{
			ID:       "seed-inactive-user",
			Email:    strp("inactive@example.com"),
			IsActive: false,
		},
	}

	directory := sqlite.NewDirectory(db)
	ctx := context.Background()
	for _, u := range users {
		if err := directory.Upsert(ctx, u); err != nil {
			log.Fatalf("failed to seed user %s: %v", u.ID, err)
		}
		log.Printf("seeded user %s (%s)", u.ID, domain.DisplayNameOf(u))
	}
	log.Printf("done: %d users", len(users))
}
