// Command seed fills the database with demo posts owned by the first admin.
package main

import (
	"context"
	"flag"
	"log"

	"portfolio/internal/bootstrap"
	"portfolio/internal/config"
	"portfolio/internal/middleware"
	"portfolio/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command line flags
	numPosts := flag.Int("posts", seed.DefaultPosts, "Number of posts to create")
	shouldClean := flag.Bool("clean", false, "Delete existing posts before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 = random)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env)

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	posts, err := seed.NewSeeder(db, *randSeed).Run(ctx, seed.Options{
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d posts", len(posts))
}
