package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"grahamscreen/internal/analyzer"
	"grahamscreen/internal/db"
	"grahamscreen/internal/fmp"
	"grahamscreen/internal/handlers"
)

func main() {
	// Load .env file if it exists (local dev)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx := context.Background()

	apiKey := os.Getenv("FMP_API_KEY")
	if apiKey == "" {
		log.Fatal("FMP_API_KEY environment variable is required")
	}

	client := fmp.NewClient(apiKey)
	a := analyzer.New(client)

	// Database is optional: without it, reports are computed but not stored.
	var repo *db.Repository
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Println("DATABASE_URL not set, running without persistence")
	} else {
		if err := db.RunMigrations(databaseURL); err != nil {
			log.Printf("Warning: Could not run migrations: %v", err)
		} else {
			log.Println("Migrations completed")
		}

		pool, err := db.Connect(ctx, databaseURL)
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			log.Println("Continuing without database connection...")
		} else {
			defer pool.Close()
			repo = db.NewRepository(pool)
			log.Println("Connected to database")
		}
	}

	// Setup Echo
	e := echo.New()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.Printf("%d %s", v.Status, v.URI)
			} else {
				log.Printf("%d %s - %v", v.Status, v.URI, v.Error)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := handlers.New()
	sh := handlers.NewScreenHandler(a, repo)

	// Routes
	e.GET("/health", h.Health)
	e.GET("/screen/status", sh.Status)
	e.GET("/screen/:ticker", sh.ScreenTicker)
	e.POST("/screen", sh.ScreenBatch)
	e.GET("/reports/:ticker", sh.LatestReport)

	// Optional scheduled re-screen of all stored tickers, e.g.
	// SCREEN_CRON="0 6 * * 1-5" for weekday mornings.
	if spec := os.Getenv("SCREEN_CRON"); spec != "" && repo != nil {
		c := cron.New()
		if _, err := c.AddFunc(spec, func() { rescreen(ctx, a, repo) }); err != nil {
			log.Fatalf("Invalid SCREEN_CRON %q: %v", spec, err)
		}
		c.Start()
		defer c.Stop()
		log.Printf("Scheduled re-screen enabled: %s", spec)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// rescreen re-analyzes every stored ticker and persists fresh reports.
func rescreen(ctx context.Context, a *analyzer.Analyzer, repo *db.Repository) {
	tickers, err := repo.GetAllTickers(ctx)
	if err != nil {
		log.Printf("Scheduled re-screen: could not list tickers: %v", err)
		return
	}
	if len(tickers) == 0 {
		return
	}

	log.Printf("Scheduled re-screen: %d tickers", len(tickers))
	results := a.AnalyzeMany(ctx, tickers, 4)
	for _, r := range results {
		if r.Err != nil {
			log.Printf("Scheduled re-screen: %s failed: %v", r.Ticker, r.Err)
			continue
		}
		if err := repo.UpsertCompany(ctx, r.Analysis.Snapshot); err != nil {
			log.Printf("Scheduled re-screen: upsert %s: %v", r.Ticker, err)
			continue
		}
		if err := repo.SaveReports(ctx, r.Analysis.Defensive, r.Analysis.Quality); err != nil {
			log.Printf("Scheduled re-screen: save reports %s: %v", r.Ticker, err)
		}
	}
}
