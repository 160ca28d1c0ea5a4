// Command bootstrap-admin creates the initial superadmin user. Brand and
// user management go through the API, but the first superadmin has to come
// from somewhere.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stallpoint/stallpulse/internal/domain"
	"github.com/stallpoint/stallpulse/internal/postgres"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		email       = flag.String("email", "", "Superadmin email")
		password    = flag.String("password", "", "Superadmin password")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	users := postgres.NewUserRepo(pool)

	if existing, err := users.GetByEmail(ctx, *email); err == nil {
		slog.Info("User already exists, nothing to do", "user_id", existing.ID, "role", existing.Role)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &domain.User{
		Email:        *email,
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("Failed to create superadmin: %v", err)
	}

	slog.Info("Superadmin created", "user_id", user.ID, "email", user.Email)
}
