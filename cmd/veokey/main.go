package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"veoqueue/internal/infra"
	"veoqueue/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		showFlag  bool
		clearFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Veo API key to select (defaults to GEMINI_API_KEY)")
	flag.BoolVar(&showFlag, "show", false, "report whether a key is stored")
	flag.BoolVar(&clearFlag, "clear", false, "forget the stored key")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "veokey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}

	switch {
	case showFlag:
		sel, ok, err := store.Selection(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read api key: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("no API key selected")
			return
		}
		fmt.Printf("API key selected (%s) at %s\n", mask(sel.Key), sel.UpdatedAt.Format(time.RFC3339))
	case clearFlag:
		if err := store.Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key cleared")
	default:
		key := strings.TrimSpace(keyFlag)
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		}
		if key == "" {
			fmt.Fprintln(os.Stderr, "API key is required via -key or GEMINI_API_KEY")
			os.Exit(1)
		}
		if err := store.SetCredential(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API key stored successfully; restart the API or PUT /v1/credential to apply it")
	}
}

func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
