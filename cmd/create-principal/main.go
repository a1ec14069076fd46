package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/logger"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/repository"
	"github.com/shopcore/admin-guard/internal/validator"
)

// create-principal bootstraps the first principal administrator, or promotes
// an existing approved admin with -promote.
func main() {
	var promote string
	flag.StringVar(&promote, "promote", "", "Email of an existing approved admin to promote to principal")
	flag.Parse()

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

	if promote != "" {
		promoteExisting(ctx, store, promote)
		return
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Principal Administrator ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		fmt.Println("Error: a valid email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	password := string(bytePassword)
	if !validator.StrongPassword(password) {
		fmt.Printf("Error: password needs at least %d characters with upper case, lower case and a digit\n", validator.MinPasswordLength)
		return
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil || string(confirm) != password {
		fmt.Println("Error: passwords do not match")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := model.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	now := time.Now().UTC()
	acc := model.NewAccount(uuid.NewString(), name, email, hash, now)
	acc.Role = model.RolePrincipal
	acc.Status = model.StatusApproved
	acc.ApprovedAt = &now
	acc.LastPasswordChange = &now

	if err := store.Create(ctx, acc); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			fmt.Println("Error: an account with this email already exists (use -promote)")
			return
		}
		log.Fatal().Err(err).Msg("Failed to create principal")
	}

	fmt.Printf("\nSuccess! Principal '%s' (%s) created with ID: %s\n", acc.Name, acc.Email, acc.ID)
}

func promoteExisting(ctx context.Context, store repository.Store, email string) {
	acc, err := store.FindByEmail(ctx, email)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	_, err = store.Update(ctx, acc.ID, func(a *model.Account) error {
		if !a.CanAccessAdmin() {
			return fmt.Errorf("account is %s, only approved admins can be promoted", a.Status)
		}
		a.Role = model.RolePrincipal
		return nil
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Success! %s is now a principal administrator.\n", acc.Email)
}
