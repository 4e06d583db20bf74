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

	"golang.org/x/term"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/database"
	"github.com/cloudtrack/certprep/internal/logger"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/repository"
	"github.com/cloudtrack/certprep/internal/service"
)

func main() {
	roleFlag := flag.String("role", string(model.RoleAdmin), "account role (admin or learner)")
	flag.Parse()

	role := model.Role(*roleFlag)
	if role != model.RoleAdmin && role != model.RoleLearner {
		fmt.Printf("Error: unknown role %q\n", *roleFlag)
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Registration never touches the login store.
	auth := service.NewJWTAuthProvider(cfg, repository.NewUserRepository(pool), nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("=== Create New %s Account ===\n", strings.ToUpper(string(role[:1]))+string(role[1:]))

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		fmt.Println("Error: Name must be at least 2 characters")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		fmt.Println("Error: A valid email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	password := string(bytePassword)
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user, err := auth.Register(ctx, model.RegisterRequest{
		Email:    email,
		Name:     name,
		Password: password,
	}, role)
	if errors.Is(err, service.ErrEmailTaken) {
		fmt.Printf("Error: %s is already registered\n", email)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %s\n", user.Role, user.Name, user.Email, user.ID)
}
