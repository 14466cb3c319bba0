// records_rebuild reclassifies the whole history of one user, for one
// exercise or all of them, to repair a timeline whose ledger was reported
// inconsistent. With -set-type it changes the type of an exercise and
// rebuilds the timelines of all its users.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/liftrecords/internal/cache"
	"github.com/2beens/liftrecords/internal/config"
	"github.com/2beens/liftrecords/internal/db"
	"github.com/2beens/liftrecords/internal/logging"
	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/records/pgstore"

	log "github.com/sirupsen/logrus"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	userID := flag.Int64("user", 0, "ID of the user whose records are rebuilt")
	exerciseID := flag.Int64("exercise", 0, "rebuild only this exercise (0 for all exercises of the user)")
	concurrency := flag.Int("concurrency", 4, "number of timelines rebuilt in parallel")
	timeout := flag.Duration("timeout", 30*time.Minute, "max duration of the whole rebuild")
	setType := flag.String("set-type", "", "new type of the -exercise, rebuilds all users of it")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})

	newType := records.ExerciseType(*setType)
	switch {
	case *setType != "" && *exerciseID <= 0:
		log.Fatalln("-set-type needs the exercise ID, use -exercise")
	case *setType != "" && !newType.IsValid():
		log.Fatalf("unknown exercise type: %s", *setType)
	case *setType == "" && *userID <= 0:
		log.Fatalln("user ID not set, use -user")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, *timeout)
	defer timeoutCancel()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBPassword: os.Getenv("LIFTRECORDS_DB_PASS"),
		MaxConns:   int32(*concurrency + 1),
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	store := pgstore.New(dbPool, cache.NewExerciseCache(cfg.ExerciseCacheMB))
	service := records.NewService(store, records.Config{
		Tolerance:  cfg.Tolerance,
		MaxCascade: cfg.MaxCascade,
	}, nil)

	start := time.Now()
	if *setType != "" {
		if err := store.UpdateExerciseType(ctx, *exerciseID, newType); err != nil {
			log.Fatalf("set type of exercise %d: %s", *exerciseID, err)
		}
		rebuilt, err := service.RebuildExercise(ctx, store, *exerciseID, *concurrency)
		if err != nil {
			log.Fatalf("exercise %d is now %s, but only %d timelines were rebuilt: %s", *exerciseID, newType, rebuilt, err)
		}
		log.Infof("exercise %d is now %s, rebuilt %d timelines in %s", *exerciseID, newType, rebuilt, time.Since(start))
		return
	}

	if *exerciseID > 0 {
		key := records.TimelineKey{UserID: *userID, ExerciseID: *exerciseID}
		if err := service.Rebuild(ctx, key); err != nil {
			log.Fatalf("rebuild %s: %s", key, err)
		}
		log.Infof("rebuilt %s in %s", key, time.Since(start))
		return
	}

	rebuilt, err := service.RebuildUser(ctx, store, *userID, *concurrency)
	if err != nil {
		log.Fatalf("rebuild user %d, %d timelines done: %s", *userID, rebuilt, err)
	}
	log.Infof("rebuilt %d timelines of user %d in %s", rebuilt, *userID, time.Since(start))
}
