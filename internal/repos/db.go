package repos

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"jetroc/internal/seed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.ParseInLocation(timeLayout, s, time.UTC) }

// OpenDB opens the SQLite database, applies migrations and seeds the demo
// catalog when the product table is empty.
func OpenDB(dsn string, log *zap.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := Connect(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := seedIfEmpty(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens the database without touching the schema.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway, and ":memory:" is private to a connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type migrationLogger struct {
	log *zap.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Verbose() bool { return false }

// Migrate applies the embedded migrations. The migrate instance is not closed:
// closing it would close db as well.
func Migrate(db *sqlx.DB, log *zap.Logger) error {
	const op = "repos.Migrate"

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%s: source: %w", op, err)
	}
	drv, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%s: driver: %w", op, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.Log = migrationLogger{log: log.With(zap.String("component", "migrate"))}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("%s: up: %w", op, err)
	}
	log.Info("migrations applied")
	return nil
}

func seedIfEmpty(db *sqlx.DB, log *zap.Logger) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	products, err := seed.Products()
	if err != nil {
		return err
	}

	log.Info("seeding demo catalog", zap.Int("products", len(products)))

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		if _, err := tx.Exec(`
			INSERT INTO products(id,name,description,price,image_url,category,condition,rating,created_at)
			VALUES(?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO NOTHING`,
			p.ID, p.Name, p.Description, p.Price, p.ImageURL,
			string(p.Category), string(p.Condition), p.Rating, formatTime(p.CreatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
