package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/logger"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/repository"
)

// unlock-admin clears a lockout from the command line, for when the only
// principal has locked themselves out.
func main() {
	var email string
	var revoke bool
	flag.StringVar(&email, "email", "", "Email of the admin to unlock")
	flag.BoolVar(&revoke, "revoke-sessions", false, "Also end every active session")
	flag.Parse()

	if email == "" {
		fmt.Println("Usage: unlock-admin -email <address> [-revoke-sessions]")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to the Account Store ──────────────────────────────────
	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account store")
	}
	defer closeStore()

	fmt.Println("=== Unlock Admin Account ===")

	acc, err := store.FindByEmail(ctx, email)
	if err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to find admin")
	}

	var revoked int
	updated, err := store.Update(ctx, acc.ID, func(a *model.Account) error {
		a.ResetLoginFailures()
		if revoke {
			revoked = a.RemoveAllSessions(time.Now().UTC())
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to unlock admin")
	}

	log.Info().
		Str("account_id", updated.ID).
		Int("revoked_sessions", revoked).
		Msg("Admin unlocked from CLI")

	fmt.Printf("\nSuccess! %s (%s) is unlocked; %d session(s) revoked.\n", updated.Email, updated.Status, revoked)
}
