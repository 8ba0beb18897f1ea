package main

import (
	"context"
	"encoding/json"
	"flag"
	"github.com/asaskevich/EventBus"
	"github.com/bsm/redislock"
	"github.com/maxaizer/talent-intake/internal/config"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/importer"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/maxaizer/talent-intake/internal/repositories"
	"github.com/maxaizer/talent-intake/internal/services"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

type app struct {
	intake   *services.IntakeService
	pipeline *services.PipelineService
	cleaner  *services.QueueCleaner
	reporter *services.StatusReporter
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("can't connect to redis: %v", err)
	}
	return client
}

// sequenceReserver picks the id sequence backend. Switching to redis seeds the
// redis counters from the database so ids keep growing.
func sequenceReserver(ctx context.Context, cfg config.RedisConfig, client *redis.Client,
	dbSequences *repositories.Sequences) services.SequenceReserver {

	if client == nil || !cfg.Sequences {
		return dbSequences
	}

	redisSequences := repositories.NewRedisSequences(client)
	for _, name := range models.KnownSequences {
		current, err := dbSequences.Current(ctx, name)
		if err != nil {
			log.Fatalf("can't read sequence %s: %v", name, err)
		}
		if err = redisSequences.SeedFrom(ctx, name, current); err != nil {
			log.Fatalf("can't seed redis sequence %s: %v", name, err)
		}
	}
	log.Info("using redis id sequences")
	return redisSequences
}

func buildApp(ctx context.Context, cfg *config.Config, dbContext *repositories.DbContext,
	redisClient *redis.Client) *app {

	candidates := repositories.NewCandidatesRepository(dbContext.DB)
	queue := repositories.NewIntakeQueueRepository(dbContext.DB)
	pipeline := repositories.NewPipelineRepository(dbContext.DB)
	statuses := repositories.NewCachedStatuses(repositories.NewStatusesRepository(dbContext.DB))
	intakeLogs := repositories.NewIntakeLogsRepository(dbContext.DB)
	dbSequences := repositories.NewSequencesRepository(dbContext.DB)

	bus := EventBus.New()
	if _, err := services.NewIntakeLogger(bus, intakeLogs); err != nil {
		log.Fatalf("can't create intake logger: %v", err)
	}

	matcher := services.NewIdentityMatcher(candidates, queue, cfg.Intake.ProfileHostMarkers)
	allocator := services.NewIDAllocator(sequenceReserver(ctx, cfg.Redis, redisClient, dbSequences))

	intake, err := services.NewIntakeService(matcher, allocator, candidates, queue, bus)
	if err != nil {
		log.Fatalf("can't create intake service: %v", err)
	}
	intake.WithBatchRateLimit(cfg.Intake.BatchRowsPerSecond)
	if redisClient != nil && cfg.Redis.IdentityLock {
		intake.WithIdentityLocker(services.NewRedisIdentityLocker(redislock.New(redisClient), cfg.Redis.LockTTL))
	}

	pipelineService, err := services.NewPipelineService(pipeline, candidates, statuses, cfg.DB.PageSize)
	if err != nil {
		log.Fatalf("can't create pipeline service: %v", err)
	}

	cleaner, err := services.NewQueueCleaner(queue, cfg.Intake.ProcessingTimeout)
	if err != nil {
		log.Fatalf("can't create queue cleaner: %v", err)
	}

	return &app{
		intake:   intake,
		pipeline: pipelineService,
		cleaner:  cleaner,
		reporter: services.NewStatusReporter(pipelineService, candidates, cfg.DB.PageSize),
	}
}

func runImport(ctx context.Context, intake *services.IntakeService, path string) {
	rows, err := importer.ReadFile(path)
	if err != nil {
		log.Fatalf("can't read %s: %v", path, err)
	}

	result, err := intake.Batch(ctx, rows)
	if err != nil {
		log.Fatalf("batch import failed, nothing was created: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(result); err != nil {
		log.Errorf("can't print batch result: %v", err)
	}
}

func main() {

	importPath := flag.String("import", "", "import candidates from a .csv or .xlsx file and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.Metrics.Address)

	dbContext, err := repositories.NewDbContext(cfg.DB)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = connectRedis(ctx, cfg.Redis)
		defer redisClient.Close()
	}

	application := buildApp(ctx, cfg, dbContext, redisClient)

	if *importPath != "" {
		runImport(ctx, application.intake, *importPath)
		return
	}

	if err = application.cleaner.Start(cfg.Intake.QueueCleanupSchedule); err != nil {
		log.Fatalf("can't start queue cleaner: %v", err)
	}
	if err = application.reporter.Start(cfg.Intake.StatusReportSchedule); err != nil {
		log.Fatalf("can't start status reporter: %v", err)
	}

	<-ctx.Done()

	log.Info("Shutting down services...")
	application.cleaner.Stop()
	application.reporter.Stop()
	log.Info("Services stopped.")
}
