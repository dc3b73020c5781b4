package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"woodslot/internal/auth"
	"woodslot/internal/database"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// AdminsFile lists administrators to create or update. Either a plain
// password or a bcrypt hash is accepted per entry.
type AdminsFile struct {
	Admins []struct {
		FirstName    string `yaml:"first_name"`
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"admins"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		adminsPath = flag.String("admins", "configs/admins.yaml", "path to admins.yaml")
		dbPath     = flag.String("db", "./data/woodslot.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*adminsPath)
	if err != nil {
		return fmt.Errorf("read admins: %w", err)
	}
	var file AdminsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse admins: %w", err)
	}
	if len(file.Admins) == 0 {
		return fmt.Errorf("no admins in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seeded := 0
	for _, entry := range file.Admins {
		name := strings.TrimSpace(entry.FirstName)
		if name == "" {
			continue
		}

		hash := entry.PasswordHash
		if hash == "" {
			if entry.Password == "" {
				return fmt.Errorf("admin %s has no password", name)
			}
			if hash, err = auth.HashPassword(entry.Password); err != nil {
				return fmt.Errorf("hash password for %s: %w", name, err)
			}
		}

		if err = db.UpsertAdmin(ctx, &models.Admin{FirstName: name, PasswordHash: hash}); err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
		seeded++
	}

	fmt.Printf("done: seeded=%d\n", seeded)
	return nil
}
