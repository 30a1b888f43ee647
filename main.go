package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"

	"gomediate/adapters/excel"
	"gomediate/adapters/postgres"
	"gomediate/adapters/regression"
	"gomediate/api"
	"gomediate/app"
	"gomediate/domain/mediation"
	"gomediate/internal/config"
	"gomediate/internal/errors"
	"gomediate/internal/migration"
	"gomediate/internal/testkit"
	"gomediate/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// Run migrations
	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

// studyDefaults maps deployment configuration onto assembler defaults.
func studyDefaults(appConfig *config.Config) mediation.Config {
	defaults := mediation.DefaultConfig()
	defaults.Points = appConfig.Study.GridPoints
	defaults.ConfidenceLevel = appConfig.Study.ConfidenceLevel
	defaults.ConfidenceIntervals = appConfig.Study.ConfidenceIntervals
	defaults.IgnoreRandomEffects = appConfig.Study.IgnoreRandomEffects
	return defaults
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Studies persist to PostgreSQL when configured, in memory otherwise.
	var store ports.StudyStore
	if appConfig.HasDatabase() {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer db.Close()
		store = postgres.NewStudyRepository(db)
		log.Println("Study store: PostgreSQL")
	} else {
		store = testkit.NewInMemoryStudyStore()
		log.Println("Study store: in-memory (no DATABASE_URL configured)")
	}

	service := app.NewStudyService(
		app.NewEffectsService(nil),
		regression.NewFitter(nil),
		store,
		nil,
	)

	server := api.NewApp(service, excel.NewDataReader(), studyDefaults(appConfig), nil)

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("🚀 Performance profiling server starting on :%s", appConfig.Profiling.Port)
			log.Printf("💡 View profiles: go tool pprof -http=:8081 http://localhost:%s/debug/pprof/profile?seconds=30", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("❌ pprof server failed: %v", err)
			}
		}()
	}

	// Start the server
	log.Printf("🚀 Starting mediate server on port %s", appConfig.Server.Port)
	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
