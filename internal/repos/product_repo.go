package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"jetroc/internal/domain"
)

type ProductRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db, now: time.Now} }

// WithClock is used by tests that need deterministic created_at values.
func (r *ProductRepo) WithClock(now func() time.Time) *ProductRepo {
	r.now = now
	return r
}

type productRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Price       int64   `db:"price"`
	ImageURL    string  `db:"image_url"`
	Category    string  `db:"category"`
	Condition   string  `db:"condition"`
	Rating      float64 `db:"rating"`
	CreatedAt   string  `db:"created_at"`
}

func (row productRow) toDomain() (domain.Product, error) {
	cat, err := domain.ParseCategory(row.Category)
	if err != nil {
		return domain.Product{}, err
	}
	cond, err := domain.ParseCondition(row.Condition)
	if err != nil {
		return domain.Product{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Price:       row.Price,
		ImageURL:    row.ImageURL,
		Category:    cat,
		Condition:   cond,
		Rating:      row.Rating,
		CreatedAt:   created,
	}, nil
}

const productColumns = `id, name, description, price, image_url, category, condition, rating, created_at`

// ListByCategory returns products newest first. An empty category lists all.
func (r *ProductRepo) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.Product, error) {
	const op = "ProductRepo.ListByCategory"

	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if cat != "" {
		query += ` WHERE category = ?`
		args = append(args, string(cat))
	}
	query += ` ORDER BY created_at DESC, id`

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: row %s: %w", op, row.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	const op = "ProductRepo.Get"

	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	p, err := row.toDomain()
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create inserts a product; the id and created_at are assigned here.
func (r *ProductRepo) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	const op = "ProductRepo.Create"

	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		Condition:   in.Condition,
		Rating:      in.Rating,
		CreatedAt:   r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(`+productColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL,
		string(p.Category), string(p.Condition), p.Rating, formatTime(p.CreatedAt))
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	// Round-trip the timestamp through its stored precision.
	p.CreatedAt, _ = parseTime(formatTime(p.CreatedAt))
	return p, nil
}

// Update overwrites every editable column. Concurrent editors are not
// reconciled: the last write wins.
func (r *ProductRepo) Update(ctx context.Context, id string, in domain.ProductInput) error {
	const op = "ProductRepo.Update"

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, image_url = ?, category = ?,
		    condition = ?, rating = ?, updated_at = ?
		WHERE id = ?`,
		in.Name, in.Description, in.Price, in.ImageURL, string(in.Category),
		string(in.Condition), in.Rating, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(op, res)
}

// Delete removes the row permanently.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	const op = "ProductRepo.Delete"

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(op, res)
}

func expectOne(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
