package persistence

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/infrastructure/persistence/models"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// CreateSchema migrates the structural tables and makes sure every
// registered provider has its tables.
func (r *Repository) CreateSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.timeout(ctx)
	defer cancel()

	err := r.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(models.All()...)
	})
	if err != nil {
		return fmt.Errorf("migrate structural tables: %w", err)
	}

	providers, err := providersIn(ctx, r.pool)
	if err != nil {
		return err
	}
	for _, name := range providers {
		if err := r.withTx(ctx, func(tx pgx.Tx) error {
			return createProviderTables(ctx, tx, name)
		}); err != nil {
			return fmt.Errorf("create tables for provider %s: %w", name, err)
		}
	}
	r.logger.WithField("providers", len(providers)).Info("schema ready")
	return nil
}

// RegisterProvider records the provider name and creates its tables.
// Registering a known provider is a no-op apart from the DDL check.
func (r *Repository) RegisterProvider(ctx context.Context, name string) error {
	if err := refdata.ValidateProviderName(name); err != nil {
		return err
	}
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO data_providers (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return err
		}
		return createProviderTables(ctx, tx, name)
	})
	if err != nil {
		return fmt.Errorf("register provider %s: %w", name, err)
	}
	r.associations.Invalidate(name)
	return nil
}

func (r *Repository) Providers(ctx context.Context) ([]string, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	return providersIn(ctx, r.pool)
}

func createProviderTables(ctx context.Context, tx pgx.Tx, provider string) error {
	stmts, err := providerDDL(provider)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
