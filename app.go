/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fleetbook

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoncle/fleetbook/database"
	"github.com/tomoncle/fleetbook/models"
	"github.com/tomoncle/fleetbook/repository"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/tomoncle/fleetbook/schema"
	"github.com/uptrace/bun"
)

// Options controls Bootstrap.
type Options struct {
	// ConfigPath is the YAML configuration file; empty means environment
	// and defaults only.
	ConfigPath string
	// EnvFiles are loaded before the configuration; ".env" when empty.
	EnvFiles []string
	// Registerer receives the retry and repository metrics. Nil disables
	// metrics.
	Registerer prometheus.Registerer
}

// App holds everything built at startup. It is immutable once returned.
type App struct {
	Config    *database.Config
	DB        *bun.DB
	Tables    *schema.Registry
	Pipelines *resilience.Registry
	Events    *resilience.RetryEventService

	logger  database.Logger
	metrics *repository.Metrics
}

// Bootstrap loads the configuration from opts and starts the application.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	cfg, err := database.LoadConfig(opts.ConfigPath, opts.EnvFiles...)
	if err != nil {
		return nil, err
	}
	return BootstrapWithConfig(ctx, cfg, opts.Registerer)
}

// BootstrapWithConfig builds the table registry, connects and migrates the
// database, and creates the retry pipelines.
func BootstrapWithConfig(ctx context.Context, cfg *database.Config, reg prometheus.Registerer) (*App, error) {
	logger := database.GetLogger()

	tables, err := models.NewRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.MigrateConfig.EnableForeignKey && len(cfg.MigrateConfig.ForeignKeys) == 0 {
		cfg.MigrateConfig.ForeignKeys = models.ForeignKeys()
	}

	policies, err := cfg.RetryPolicies()
	if err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}

	observers := []resilience.RetryObserver{resilience.NewLogObserver(logger)}
	var metrics *repository.Metrics
	if reg != nil {
		observer, err := resilience.NewMetricsObserver(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register retry metrics: %w", err)
		}
		observers = append(observers, observer)
		if metrics, err = repository.NewMetrics(reg); err != nil {
			return nil, fmt.Errorf("failed to register repository metrics: %w", err)
		}
	}
	events := resilience.NewRetryEventService(logger, observers...)

	pipelines, err := resilience.NewRegistry(events, logger, policies...)
	if err != nil {
		return nil, err
	}

	db, err := database.InitDB(ctx, cfg, tables.Tables())
	if err != nil {
		return nil, err
	}

	logger.Info("Application started", "pipelines", pipelines.Names(), "tables", len(tables.Tables()))
	return &App{
		Config:    cfg,
		DB:        db,
		Tables:    tables,
		Pipelines: pipelines,
		Events:    events,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

func (a *App) repositoryOptions() []repository.Option {
	opts := []repository.Option{}
	if a.metrics != nil {
		opts = append(opts, repository.WithMetrics(a.metrics))
	}
	return opts
}

// NewRepository returns the repository of entity type T.
func NewRepository[T any](a *App) (repository.Repository[T], error) {
	return repository.NewFromRegistry[T](a.DB, a.Tables, a.Pipelines, a.repositoryOptions()...)
}

// NewEntityService returns the Service of entity type T.
func NewEntityService[T any](a *App) (Service[T], error) {
	repo, err := NewRepository[T](a)
	if err != nil {
		return nil, err
	}
	return NewService(repo), nil
}

func (a *App) Drivers() (repository.Repository[models.Driver], error) {
	return NewRepository[models.Driver](a)
}

func (a *App) Vehicles() (repository.Repository[models.Vehicle], error) {
	return NewRepository[models.Vehicle](a)
}

func (a *App) DeliveryTasks() (*repository.DeliveryTaskRepository, error) {
	p, err := a.Pipelines.Get(resilience.DatabasePipeline)
	if err != nil {
		return nil, err
	}
	return repository.NewDeliveryTaskRepository(a.DB, a.Tables, p, a.repositoryOptions()...)
}

// Close waits for pending retry notifications and closes the database.
func (a *App) Close() error {
	a.Events.Wait()
	if err := database.CloseDB(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
