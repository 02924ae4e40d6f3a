package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/vietddude/ecosetu/internal/api"
	"github.com/vietddude/ecosetu/internal/core/domain"
)

// Seeds demo users, materials and interests, then prints bearer tokens for
// the demo accounts when JWT_SECRET is set.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	file := flag.String("file", "scripts/seed_demo.sql", "SQL script to execute")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.Parse()

	if *dbURL == "" {
		log.Fatalf("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", *dbURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	if _, err := db.Exec(string(content)); err != nil {
		log.Fatalf("execute %s: %v", *file, err)
	}
	fmt.Printf("Successfully seeded demo data from %s\n", *file)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return
	}
	auth := api.NewAuthenticator(api.AuthConfig{JWTSecret: secret, Issuer: os.Getenv("JWT_ISSUER")})
	for _, c := range []domain.Caller{
		{ID: "demo-buyer", Role: domain.RoleBuyer},
		{ID: "demo-seller", Role: domain.RoleSeller},
		{ID: "demo-admin", Role: domain.RoleAdmin},
	} {
		token, err := auth.IssueToken(c, 24*time.Hour)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Printf("%-12s %s\n", c.ID, token)
	}
}
