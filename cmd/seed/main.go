package main

import (
	"context"
	"errors"
	"log"

	"academyhub/internal/config"
	"academyhub/internal/model"
	"academyhub/internal/upstream"
)

// demoAccounts cover every portal role so a fresh environment can be clicked
// through immediately.
var demoAccounts = []upstream.RegistrationPayload{
	{
		Username:    "admin.demo",
		DisplayName: "Academy Admin",
		Email:       "admin@academy.test",
		Password:    "demo-admin-1",
		Role:        model.RoleAdmin,
	},
	{
		Username:    "coach.demo",
		DisplayName: "Coach Novak",
		Email:       "coach@academy.test",
		Password:    "demo-coach-1",
		Role:        model.RoleCoach,
		TeamID:      "t1",
	},
	{
		Username:    "parent.demo",
		DisplayName: "Parent Petrov",
		Email:       "parent@academy.test",
		Password:    "demo-parent-1",
		Role:        model.RoleParent,
		TeamID:      "t1",
		PlayerID:    "p7",
	},
	{
		Username:    "player.demo",
		DisplayName: "Player Petrov",
		Email:       "player@academy.test",
		Password:    "demo-player-1",
		Role:        model.RolePlayer,
		TeamID:      "t1",
		PlayerID:    "p7",
	},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()
	academy := upstream.NewClient(cfg.UpstreamBaseURL)
	ctx := context.Background()

	created, skipped := 0, 0
	for _, payload := range demoAccounts {
		creds, err := academy.Register(ctx, payload)
		if err != nil {
			var apiErr *upstream.APIError
			if errors.As(err, &apiErr) {
				// Most likely the account exists from a previous run.
				log.Printf("Skipping %s: %s", payload.Username, apiErr.Message)
				skipped++
				continue
			}
			log.Fatalf("Failed to register %s: %v", payload.Username, err)
		}

		// Release the session immediately; the seed script never keeps tokens.
		if err := academy.Logout(ctx, creds.Token); err != nil {
			log.Printf("Warning: logout for %s failed: %v", payload.Username, err)
		}

		log.Printf("Registered %s (%s)", payload.Username, payload.Role)
		created++
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New accounts created: %d", created)
	log.Printf("  - Existing accounts skipped: %d", skipped)
}
