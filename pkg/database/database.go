package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

const startKey = "patientrest:query_start"

// Instrument times every gorm operation into the query duration histogram
// and logs statements slower than slow.
func Instrument(db *gorm.DB, m *metrics.Collector, log *zap.Logger, slow time.Duration) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			elapsed := time.Since(v.(time.Time))
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			m.DBQueryDuration.WithLabelValues(op, table).Observe(elapsed.Seconds())
			if slow > 0 && elapsed > slow {
				log.Warn("slow query",
					zap.String("operation", op),
					zap.String("table", table),
					zap.Duration("duration", elapsed),
					zap.Int64("rows", tx.RowsAffected),
				)
			}
		}
	}

	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("metrics:before_create", before),
		cb.Create().After("gorm:create").Register("metrics:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("metrics:before_query", before),
		cb.Query().After("gorm:query").Register("metrics:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("metrics:before_update", before),
		cb.Update().After("gorm:update").Register("metrics:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:before_delete", before),
		cb.Delete().After("gorm:delete").Register("metrics:after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("metrics:before_row", before),
		cb.Row().After("gorm:row").Register("metrics:after_row", after("row")),
		cb.Raw().Before("gorm:raw").Register("metrics:before_raw", before),
		cb.Raw().After("gorm:raw").Register("metrics:after_raw", after("raw")),
	)
	if err != nil {
		return fmt.Errorf("registering query callbacks: %w", err)
	}
	return nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "auth", "audit"}
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.IdentifierType{},
		&patient.PersonAttributeType{},
		&patient.Patient{},
		&patient.PersonName{},
		&patient.PersonAddress{},
		&patient.Identifier{},
		&patient.PersonAttribute{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := backfillSearchNames(db); err != nil {
		return fmt.Errorf("backfilling search names: %w", err)
	}

	if err := createIndexes(db, log); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

type index struct {
	name     string
	query    string
	required bool
}

var indexes = []index{
	{
		// One active owner per identifier value and type.
		name:     "uq_patient_identifiers_active",
		query:    `CREATE UNIQUE INDEX IF NOT EXISTS uq_patient_identifiers_active ON clinical.patient_identifiers (identifier_type_id, identifier) WHERE NOT voided`,
		required: true,
	},
	{
		name:  "idx_patient_identifiers_trgm",
		query: `CREATE INDEX IF NOT EXISTS idx_patient_identifiers_trgm ON clinical.patient_identifiers USING gin (identifier gin_trgm_ops) WHERE NOT voided`,
	},
	{
		name:  "idx_person_names_search_trgm",
		query: `CREATE INDEX IF NOT EXISTS idx_person_names_search_trgm ON clinical.person_names USING gin (search_name gin_trgm_ops) WHERE NOT voided`,
	},
}

// backfillSearchNames fills search_name for rows written before the column
// existed. Later writes keep it current through PersonName.BeforeSave.
func backfillSearchNames(db *gorm.DB) error {
	return db.Exec(`UPDATE clinical.person_names
		SET search_name = concat_ws(' ', NULLIF(given_name, ''), NULLIF(middle_name, ''), NULLIF(family_name, ''), NULLIF(family_name2, ''))
		WHERE search_name = ''`).Error
}

// createIndexes adds indexes AutoMigrate cannot express. Trigram indexes only
// speed up search, so a missing pg_trgm extension is logged, not fatal.
func createIndexes(db *gorm.DB, log *zap.Logger) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		log.Warn("pg_trgm unavailable; search runs without trigram indexes", zap.Error(err))
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			if idx.required {
				return fmt.Errorf("%s: %w", idx.name, err)
			}
			log.Warn("skipping index", zap.String("index", idx.name), zap.Error(err))
		}
	}
	return nil
}
