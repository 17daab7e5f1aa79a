package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"cloud.google.com/go/bigquery"

	_ "ledger-recon/docs"
	"ledger-recon/internal/config"
	"ledger-recon/internal/escalation"
	"ledger-recon/internal/export"
	"ledger-recon/internal/handler"
	"ledger-recon/internal/repository"
	"ledger-recon/internal/repository/firestore"
	"ledger-recon/internal/repository/memory"
	"ledger-recon/internal/service"
	"ledger-recon/internal/statement"
	"ledger-recon/pkg/logger"
)

// @title Ledger Reconciliation API
// @version 1.0
// @description Classifies bank transactions against chart-of-accounts rules and posts balanced journal entries

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Ledger Reconciliation Service")

	ctx := context.Background()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to open ledger store")
	}
	defer store.Close()
	logger.GetLogger().WithField("driver", cfg.Database.Driver).Info("Ledger store ready")

	var (
		rules    repository.RuleRepository   = store
		accounts repository.AccountDirectory = store
	)
	if cfg.Firestore.ProjectID != "" {
		fsStore, err := firestore.Open(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			logger.GetLogger().WithError(err).Fatal("Failed to connect to Firestore")
		}
		defer fsStore.Close()
		rules, accounts = fsStore, fsStore
		logger.GetLogger().WithField("project_id", cfg.Firestore.ProjectID).Info("Rules and accounts served from Firestore")
	}

	classifier := newClassifier(ctx, cfg.Escalation)

	exporter, closeExporter := newExporter(ctx, cfg.Export)
	defer closeExporter()

	postingService := service.NewPostingService(store, accounts, exporter)
	ruleService := service.NewRuleService(rules, accounts, cfg.App.LearnedPriority)
	escalationService := service.NewEscalationService(classifier, accounts, store, cfg.Matching, cfg.Resolver)
	reconService := service.NewReconciliationService(rules, accounts, store, postingService, classifier, statement.NewOpener(nil, cfg.App.ImportDir), service.ReconciliationOptions{
		Matching:     cfg.Matching,
		Resolver:     cfg.Resolver,
		AutoEscalate: cfg.Escalation.AutoEscalate,
		BatchSize:    cfg.App.BatchSize,
	})

	router := handler.NewRouter(
		handler.NewReconciliationHandler(reconService, escalationService),
		handler.NewRuleHandler(ruleService),
		handler.NewJournalHandler(postingService),
	)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return repository.OpenSQLite(ctx, cfg.Path)
	}

	db, err := sql.Open(repository.DriverPostgres, cfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store, err := repository.NewSQLStore(db, repository.DriverPostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func newClassifier(ctx context.Context, cfg config.EscalationConfig) escalation.Classifier {
	if !cfg.Enabled() {
		logger.GetLogger().Info("No escalation model configured, escalations will fail fast")
		return escalation.Disabled{}
	}
	gemini, err := escalation.NewGeminiClassifier(ctx, cfg.Gemini)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to create Gemini client")
	}
	logger.GetLogger().WithField("model", cfg.Gemini.Model).Info("Escalation model configured")
	return escalation.NewRetrying(gemini, cfg.Retry)
}

func newExporter(ctx context.Context, cfg config.ExportConfig) (export.Exporter, func()) {
	if !cfg.Enabled() {
		return export.Nop{}, func() {}
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to create BigQuery client")
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"project_id": cfg.ProjectID,
		"dataset":    cfg.Dataset,
		"table":      cfg.Table,
	}).Info("Journal export enabled")
	return export.NewBigQueryExporter(client, cfg.ProjectID, cfg.Dataset, cfg.Table), func() { client.Close() }
}
