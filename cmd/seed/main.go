package main

import (
	"context"
	"flag"
	"log"

	"meridian/internal/config"
	"meridian/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, skip --clear-data (for use with shell scripts)")
	clearData := flag.Bool("clear-data", false, "Clear all content-engine data (keep schema)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	if *clearData {
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("📋 Preparing database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	if *clearData {
		log.Println("🧹 Clearing existing units and lessons...")
		if err := clearContentData(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	log.Println("✅ Database ready, no seed data to load")
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	// Enable UUID extension
	_, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"")
	if err != nil {
		return err
	}

	// Create projects table
	createProjects := `
		CREATE TABLE IF NOT EXISTS ` + tables.Projects + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createProjects); err != nil {
		return err
	}

	// Create folders table
	createFolders := `
		CREATE TABLE IF NOT EXISTS ` + tables.Folders + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			parent_id UUID REFERENCES ` + tables.Folders + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(project_id, parent_id, name)
		)
	`
	if _, err := pool.Exec(ctx, createFolders); err != nil {
		return err
	}

	// Create documents table
	createDocuments := `
		CREATE TABLE IF NOT EXISTS ` + tables.Documents + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			folder_id UUID REFERENCES ` + tables.Folders + `(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			word_count INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(project_id, folder_id, name)
		)
	`
	if _, err := pool.Exec(ctx, createDocuments); err != nil {
		return err
	}

	// Create indexes
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `folders_project_parent ON ` + tables.Folders + `(project_id, parent_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `folders_root_unique ON ` + tables.Folders + `(project_id, name) WHERE parent_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `documents_project_id ON ` + tables.Documents + `(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `documents_project_folder ON ` + tables.Documents + `(project_id, folder_id)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return runContentSchema(ctx, pool, tables, tablePrefix)
}

// runContentSchema creates the content-engine tables (Unit/Lesson/FlowRun/
// FlowStepRun/LLMRequest, spec.md §3). The only cross-row FK the core
// requires is FlowStepRun.flow_run_id -> FlowRun.id (spec.md §6); Unit,
// Lesson, and FlowRun otherwise reference each other only by opaque id
// string, matching the core's "storage engine enforces one FK, the core
// enforces the rest" design.
func runContentSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createFlowRuns := `
		CREATE TABLE IF NOT EXISTS ` + tables.FlowRuns + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			flow_name TEXT NOT NULL,
			execution_mode TEXT NOT NULL,
			user_id UUID,
			status TEXT NOT NULL,
			inputs JSONB,
			outputs JSONB,
			flow_metadata JSONB,
			current_step TEXT,
			step_progress INTEGER NOT NULL DEFAULT 0,
			total_steps INTEGER NOT NULL DEFAULT 0,
			progress_percentage INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			last_heartbeat TIMESTAMPTZ,
			execution_time_ms BIGINT,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createFlowRuns); err != nil {
		return err
	}

	createFlowSteps := `
		CREATE TABLE IF NOT EXISTS ` + tables.FlowSteps + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			flow_run_id UUID NOT NULL REFERENCES ` + tables.FlowRuns + `(id) ON DELETE CASCADE,
			step_name TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			status TEXT NOT NULL,
			inputs JSONB,
			outputs JSONB,
			step_metadata JSONB,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost_estimate DOUBLE PRECISION NOT NULL DEFAULT 0,
			execution_time_ms BIGINT,
			error_message TEXT,
			error_type TEXT,
			llm_request_id UUID,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createFlowSteps); err != nil {
		return err
	}

	createLLMRequests := `
		CREATE TABLE IF NOT EXISTS ` + tables.LLMRequests + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID,
			step_run_id UUID,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			api_variant TEXT,
			messages JSONB,
			request_payload JSONB,
			response_raw JSONB,
			response_content JSONB,
			provider_response_id TEXT,
			system_fingerprint TEXT,
			temperature DOUBLE PRECISION,
			max_output_tokens INTEGER,
			additional_params JSONB,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost_estimate DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_type TEXT,
			error_message TEXT,
			retry_attempt INTEGER NOT NULL DEFAULT 0,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			execution_time_ms BIGINT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			response_created_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createLLMRequests); err != nil {
		return err
	}

	createUnits := `
		CREATE TABLE IF NOT EXISTS ` + tables.Units + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			title TEXT NOT NULL DEFAULT '',
			description TEXT,
			learner_level TEXT NOT NULL,
			learning_objectives JSONB,
			lesson_order JSONB,
			target_lesson_count INTEGER NOT NULL DEFAULT 3,
			generated_from_topic BOOLEAN NOT NULL DEFAULT FALSE,
			source_material TEXT,
			flow_type TEXT NOT NULL,
			status TEXT NOT NULL,
			creation_progress JSONB,
			error_message TEXT,
			flow_run_id UUID,
			art_image_id TEXT,
			podcast_audio_id TEXT,
			podcast_transcript TEXT,
			owner_user_id UUID,
			is_global BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createUnits); err != nil {
		return err
	}

	createLessons := `
		CREATE TABLE IF NOT EXISTS ` + tables.Lessons + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			unit_id UUID NOT NULL REFERENCES ` + tables.Units + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			learner_level TEXT NOT NULL,
			source_material TEXT,
			flow_run_id UUID,
			package_version INTEGER NOT NULL DEFAULT 1,
			package JSONB,
			podcast_transcript TEXT,
			podcast_audio_id TEXT,
			podcast_duration_seconds INTEGER,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createLessons); err != nil {
		return err
	}

	contentIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `flow_step_runs_flow_run ON ` + tables.FlowSteps + `(flow_run_id, step_order)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `llm_requests_step_run ON ` + tables.LLMRequests + `(step_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `units_flow_run ON ` + tables.Units + `(flow_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `lessons_unit ON ` + tables.Lessons + `(unit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `flow_runs_stall ON ` + tables.FlowRuns + `(status, last_heartbeat)`,
	}
	for _, indexSQL := range contentIndexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.Lessons,
		tables.Units,
		tables.FlowSteps,
		tables.LLMRequests,
		tables.FlowRuns,
		tables.Documents,
		tables.Folders,
		tables.Projects,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}

// clearContentData clears all units and lessons, keeping schema and the
// legacy project/folder/document tables untouched.
func clearContentData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	// Lessons first: FK references units.id ON DELETE CASCADE would handle
	// this anyway, but being explicit keeps the operation order obvious.
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Lessons); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Units); err != nil {
		return err
	}
	return nil
}
