package database

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/Osyna/QuestionAir/database"
	"github.com/Osyna/QuestionAir/internal/config"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Direction selects which migration files are applied.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Oracle errors that make a migration statement a no-op.
var ignorableOracleErrors = map[Direction][]string{
	Up:   {"ORA-00955", "ORA-01408"}, // name already used, index already exists
	Down: {"ORA-00942", "ORA-01418"}, // table or index does not exist
}

// RunMigrations applies the embedded migrations for driver in the given
// direction.
func RunMigrations(db *sqlx.DB, driver string, dir Direction, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir != Up && dir != Down {
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	fsys, err := database.Migrations(driver)
	if err != nil {
		return err
	}

	switch driver {
	case config.DriverSQLite:
		return migrateSQLite(db, fsys, dir, logger)
	case config.DriverOracle:
		return migrateStatements(db, fsys, dir, ignorableOracleErrors[dir], logger)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
}

func migrateSQLite(db *sqlx.DB, fsys fs.FS, dir Direction, logger *zap.Logger) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}
	// The driver owns no connection of its own; m is not closed so db stays open.
	drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, config.DriverSQLite, drv)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	if dir == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", dir, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("could not read migration version: %w", verr)
	}
	logger.Info("Migrations completed",
		zap.String("direction", string(dir)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// migrateStatements executes every statement of the matching files in
// order (reverse order for down). Statement errors containing one of the
// ignorable codes are logged and skipped.
func migrateStatements(db *sqlx.DB, fsys fs.FS, dir Direction, ignorable []string, logger *zap.Logger) error {
	files, err := fs.Glob(fsys, "*."+string(dir)+".sql")
	if err != nil {
		return fmt.Errorf("could not read migrations directory: %w", err)
	}
	sort.Strings(files)
	if dir == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", name, err)
		}
		for _, stmt := range SplitStatements(string(content)) {
			if _, err := db.Exec(stmt); err != nil {
				if containsAny(err.Error(), ignorable) {
					logger.Debug("Skipping already applied statement", zap.String("file", name), zap.Error(err))
					continue
				}
				return fmt.Errorf("could not execute migration %s: %w", name, err)
			}
		}
		logger.Info("Executed migration", zap.String("file", name))
	}
	return nil
}

// SplitStatements splits a SQL script on semicolons that end a line.
// Comment lines are dropped.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			stmts = append(stmts, strings.TrimSpace(stmt))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
