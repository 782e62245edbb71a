package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	var configFlag string
	root := &cobra.Command{
		Use:   "mssql2pg [config.toml]",
		Short: "Migrate an MSSQL database to PostgreSQL",
		Long: `mssql2pg migrates schema, data, constraints, indexes, and views from
an MSSQL database into PostgreSQL, translating identifiers through an
optional dictionary and validating the result.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFlag
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("config file required (positional or --config)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, path)
		},
	}
	root.Flags().StringVarP(&configFlag, "config", "c", "", "path to config TOML")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	dict, err := loadTranslationDict(cfg.resolvePath(cfg.TranslationsFile))
	if err != nil {
		return err
	}
	tr := NewTranslator(dict)

	customizations, err := loadSchemaCustomizations(cfg.resolvePath(cfg.CustomizationsFile))
	if err != nil {
		return err
	}

	normalizations, err := loadNormalizations(cfg.resolvePath(cfg.NormalizationsFile))
	if err != nil {
		return err
	}

	src, err := openSource(cfg.Source.DSN)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := src.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mssql: %w", err)
	}

	pool, err := openTarget(ctx, cfg.Target.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	sink := newCLISink()

	sink.PhaseStarted("Reading source schema")
	model, err := readSourceModel(ctx, src, cfg.Schemas, tr)
	if err != nil {
		return err
	}
	if cfg.TablesFile != "" {
		refs, err := loadTablesFile(cfg.resolvePath(cfg.TablesFile))
		if err != nil {
			return err
		}
		model, err = filterTables(model, refs, tr)
		if err != nil {
			return err
		}
	}
	removeSkipped(model, customizations.skippedTables())
	log.Printf("  %d tables, %d views", len(model.Tables), len(model.Views))

	order, cyclic := topoSort(model.TableKeys(), model.Dependencies)
	for _, key := range cyclic {
		sink.Warn(fmt.Sprintf("table %s is part of a dependency cycle; migrated last, foreign keys may fail", key))
	}

	sink.PhaseStarted("Creating target schema")
	if err := createSchemas(ctx, pool, model); err != nil {
		return err
	}
	if err := createTables(ctx, pool, model, order, sink); err != nil {
		return err
	}

	sink.PhaseStarted("Transferring data")
	if err := transferData(ctx, src, pool, model, order, cfg.BatchSize, sink); err != nil {
		return err
	}

	tracker, err := NewMigrationTracker(ctx, pool)
	if err != nil {
		return err
	}
	if err := runHookScripts(ctx, pool, tracker, cfg, cfg.Hooks.AfterData, "after_data"); err != nil {
		return err
	}

	if len(customizations) > 0 {
		sink.PhaseStarted("Applying schema customizations")
		if err := applyCustomizations(ctx, pool, model, customizations); err != nil {
			return err
		}
	}

	if len(normalizations) > 0 {
		sink.PhaseStarted("Normalizing data")
		if err := applyNormalizations(ctx, pool, normalizations); err != nil {
			return err
		}
	}

	sink.PhaseStarted("Applying constraints and indexes")
	if err := runHookScripts(ctx, pool, tracker, cfg, cfg.Hooks.BeforeConstraints, "before_constraints"); err != nil {
		return err
	}
	failures := addKeyConstraints(ctx, pool, model, order)
	failures += addForeignKeys(ctx, pool, model, order)
	failures += addSecondaryIndexes(ctx, pool, model, order)
	failures += resyncSequences(ctx, pool, model, order)
	if failures > 0 {
		sink.Warn(fmt.Sprintf("%d constraint/index/sequence operations failed, see log", failures))
	}

	sink.PhaseStarted("Creating views")
	viewErrs := createViews(ctx, pool, model, tr)
	if err := writeViewErrorReport(cfg.resolvePath(cfg.ViewErrorReport), viewErrs); err != nil {
		return err
	}
	log.Printf("  %d of %d views created", len(model.Views)-len(viewErrs), len(model.Views))

	if err := runHookScripts(ctx, pool, tracker, cfg, cfg.Hooks.AfterAll, "after_all"); err != nil {
		return err
	}

	validationErrors := false
	if cfg.Validate {
		sink.PhaseStarted("Validating")
		v := NewValidator(src, pool)
		v.CompareRowCounts(ctx, model)
		v.CheckTargetNulls(ctx, model)
		v.CheckDuplicateKeys(ctx, model)
		v.CheckOrphanedForeignKeys(ctx, model)
		v.SpotCheck(ctx, model, cfg.SampleSize)
		if target, err := v.FetchTargetModel(ctx, model); err != nil {
			v.checkErr("target_catalog", "target", err)
		} else {
			// Derived tables have no source counterpart; validate them
			// from the target catalog alone.
			derived := &SchemaModel{Tables: derivedTables(target, model)}
			v.CheckTargetNulls(ctx, derived)
			v.CheckDuplicateKeys(ctx, derived)
			v.AuditRecurringColumns(target, 3)
		}
		fmt.Print(renderReport(v))
		validationErrors = v.HasErrors()
	}

	if err := migrationOutcome(viewErrs, validationErrors); err != nil {
		return err
	}
	log.Printf("migration complete")
	return nil
}

// migrationOutcome decides the final exit state. View creation failures
// fail the run; validation findings are informational only and are
// surfaced through the report, never the exit code.
func migrationOutcome(viewErrs []ViewError, validationErrors bool) error {
	if validationErrors {
		log.Printf("validation found errors, see report above")
	}
	if len(viewErrs) > 0 {
		names := make([]string, len(viewErrs))
		for i, ve := range viewErrs {
			names[i] = ve.View
		}
		return fmt.Errorf("%d view(s) could not be created: %s", len(viewErrs), strings.Join(names, ", "))
	}
	return nil
}
