package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/resume-analyzer-api/config"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	repo "github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
	pginfra "github.com/oksasatya/resume-analyzer-api/internal/infrastructure/postgres"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
)

// seed creates (or promotes) an administrator account. Credentials come
// from SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	email := entity.NormalizeEmail(getenv("SEED_ADMIN_EMAIL", "admin@example.com"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		logger.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2, AppName: cfg.AppName + "-seed"})
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	db := pginfra.OpenDB(pool)
	defer func() { _ = db.Close() }()

	users := pginfra.NewUserRepository(db)
	hash, err := helpers.NewBcryptHasher(cfg.BcryptCost).Hash(password)
	if err != nil {
		logger.Fatalf("failed to hash password: %v", err)
	}

	u, err := users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		now := time.Now().UTC()
		u = &entity.User{
			Email:        email,
			PasswordHash: hash,
			Role:         entity.RoleAdmin,
			Profile:      entity.Profile{FirstName: "Admin", LastName: "User"},
			Security:     entity.Security{EmailVerified: true},
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, u); err != nil {
			logger.Fatalf("failed to seed admin: %v", err)
		}
		logger.WithField("id", u.ID).WithField("email", email).Info("seeded admin")
	case err != nil:
		logger.Fatalf("failed to look up %s: %v", email, err)
	default:
		u.Role = entity.RoleAdmin
		u.PasswordHash = hash
		u.IsActive = true
		u.Security.MarkEmailVerified()
		u.UpdatedAt = time.Now().UTC()
		if err := users.Save(ctx, u); err != nil {
			logger.Fatalf("failed to promote admin: %v", err)
		}
		logger.WithField("id", u.ID).WithField("email", email).Info("promoted existing user to admin")
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
