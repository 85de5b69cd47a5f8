package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/extractor"
	statementhandler "github.com/FACorreiaa/familia-financas/internal/domain/statement/handler"
	statementrepo "github.com/FACorreiaa/familia-financas/internal/domain/statement/repository"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
	statementservice "github.com/FACorreiaa/familia-financas/internal/domain/statement/service"

	"github.com/FACorreiaa/familia-financas/pkg/config"
	"github.com/FACorreiaa/familia-financas/pkg/db"
	"github.com/FACorreiaa/familia-financas/pkg/pdftext"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	StatementRepo statementrepo.StatementRepository

	// Services
	Rules            *rules.Rules
	Extractor        *extractor.Extractor
	StatementService *statementservice.StatementService

	// Handlers
	StatementHandler *statementhandler.StatementHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.StatementRepo = statementrepo.NewPostgresStatementRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	r, err := loadRules(d.Config.Extraction)
	if err != nil {
		return err
	}
	d.Rules = r

	ext, err := extractor.New(r)
	if err != nil {
		return fmt.Errorf("failed to build extractor: %w", err)
	}
	d.Extractor = ext

	d.StatementService = statementservice.NewStatementService(
		d.StatementRepo,
		pdftext.NewReader(),
		ext,
		statementservice.Config{
			Workers:       d.Config.Extraction.Workers,
			MinTextLength: d.Config.Extraction.MinTextLength,
		},
		d.Logger,
	)

	d.Logger.Info("services initialized", slog.Any("strategies", ext.Strategies()))
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.StatementHandler = statementhandler.NewStatementHandler(d.StatementService)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}

func loadRules(cfg config.ExtractionConfig) (*rules.Rules, error) {
	if cfg.RulesFile == "" {
		if cfg.Permissive {
			return rules.Permissive(), nil
		}
		return rules.Default(), nil
	}
	r, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rules: %w", err)
	}
	return r, nil
}
