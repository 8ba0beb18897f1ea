package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/maxaizer/talent-intake/internal/config"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(cfg config.DBConfig) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(cfg.ConnectionString), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	entities := []struct {
		name  string
		model any
	}{
		{"Candidate", models.Candidate{}},
		{"Experience", models.Experience{}},
		{"PipelineEntry", models.PipelineEntry{}},
		{"StatusEvent", models.StatusEvent{}},
		{"PipelineStatus", models.PipelineStatus{}},
		{"IntakeQueueItem", models.IntakeQueueItem{}},
		{"IdSequence", models.IdSequence{}},
		{"IntakeLog", models.IntakeLog{}},
	}

	for _, entity := range entities {
		if err := c.DB.AutoMigrate(entity.model); err != nil {
			return fmt.Errorf("failed to migrate %s entity: %w", entity.name, err)
		}
	}

	// backstop for concurrent intakes that both pass the duplicate checks
	identityIndexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_identity_name ON candidates (normalized_name) " +
			"WHERE normalized_name <> ''",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_identity_email ON candidates (email) " +
			"WHERE email <> ''",
	}
	for _, statement := range identityIndexes {
		if err := c.DB.Exec(statement).Error; err != nil {
			return fmt.Errorf("failed to create candidate identity index: %w", err)
		}
	}

	if err := c.SeedSequences(); err != nil {
		return fmt.Errorf("failed to seed sequences: %w", err)
	}

	var statusesCount int64
	if err := c.DB.Model(models.PipelineStatus{}).Count(&statusesCount).Error; err != nil {
		return fmt.Errorf("failed to count statuses: %w", err)
	}

	if statusesCount == 0 {
		if err := c.PopulateStatuses(); err != nil {
			return fmt.Errorf("failed to populate statuses: %w", err)
		}
	}

	return nil
}

func (c *DbContext) SeedSequences() error {
	for _, name := range models.KnownSequences {
		err := c.DB.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.IdSequence{Name: name}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *DbContext) PopulateStatuses() error {
	statuses := make([]models.PipelineStatus, 0, len(models.DefaultStatuses))
	for i, label := range models.DefaultStatuses {
		statuses = append(statuses, models.NewPipelineStatus(label, i+1))
	}

	if err := c.DB.Create(statuses).Error; err != nil {
		return fmt.Errorf("failed to create statuses in the database: %w", err)
	}
	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
