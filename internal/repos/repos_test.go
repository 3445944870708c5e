package repos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jetroc/internal/domain"
	"jetroc/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func input(name string, price int64, cat domain.Category) domain.ProductInput {
	return domain.ProductInput{
		Name: name, Description: name + " description", Price: price,
		ImageURL: domain.PlaceholderImage, Category: cat,
		Condition: domain.ConditionTresBon, Rating: 4,
	}
}

func TestOpenDBSeedsCatalogOnce(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()
	products, err := repos.NewProductRepo(db).ListByCategory(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 6)
	assert.Equal(t, "iPhone 15 Pro Max", products[0].Name, "newest first")

	// Migrating an up-to-date database is a no-op.
	require.NoError(t, repos.Migrate(db, zap.NewNop()))
}

func TestProductRepoCRUD(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	r := repos.NewProductRepo(db).WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	p, err := r.Create(ctx, input("Pixel 8", 300000, domain.CategoryAndroid))
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	android, err := r.ListByCategory(ctx, domain.CategoryAndroid)
	require.NoError(t, err)
	require.NotEmpty(t, android)
	assert.Equal(t, p.ID, android[0].ID)
	for _, x := range android {
		assert.Equal(t, domain.CategoryAndroid, x.Category)
	}

	upd := input("Pixel 8 Pro", 350000, domain.CategoryAndroid)
	require.NoError(t, r.Update(ctx, p.ID, upd))
	got, err = r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pixel 8 Pro", got.Name)
	assert.Equal(t, int64(350000), got.Price)
	assert.Equal(t, p.CreatedAt, got.CreatedAt, "update keeps creation time")

	require.NoError(t, r.Delete(ctx, p.ID))
	_, err = r.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(r.Delete(ctx, p.ID), domain.ErrNotFound))
	assert.True(t, errors.Is(r.Update(ctx, p.ID, upd), domain.ErrNotFound))
}

func TestProductTableRejectsOutOfRangeValues(t *testing.T) {
	db := memdb(t)
	r := repos.NewProductRepo(db)
	ctx := context.Background()

	_, err := r.Create(ctx, input("neg", -1, domain.CategoryAutres))
	assert.Error(t, err)

	bad := input("bad category", 1, domain.Category("Tablettes"))
	_, err = r.Create(ctx, bad)
	assert.Error(t, err)

	bad = input("bad rating", 1, domain.CategoryAutres)
	bad.Rating = 6
	_, err = r.Create(ctx, bad)
	assert.Error(t, err)
}

func TestUserSessionsAndRoles(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()
	users := repos.NewUserRepo(db)
	roles := repos.NewRoleRepo(db)

	id, err := users.Create(ctx, "Admin@JeTroc.ci", "hash")
	require.NoError(t, err)
	_, err = users.Create(ctx, "admin@jetroc.ci", "hash")
	assert.ErrorIs(t, err, repos.ErrEmailTaken)

	u, err := users.ByEmail(ctx, "admin@jetroc.ci")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = users.SessionUser(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, users.BindSession(ctx, "sid-1", id))
	u, err = users.SessionUser(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	require.NoError(t, users.UnbindSession(ctx, "sid-1"))
	_, err = users.SessionUser(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	grants, err := roles.Grants(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, grants)
	require.NoError(t, roles.Grant(ctx, id, domain.RoleAdmin))
	require.NoError(t, roles.Grant(ctx, id, domain.RoleAdmin))
	grants, err = roles.Grants(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleGrant{{UserID: id, Role: domain.RoleAdmin}}, grants)
	require.NoError(t, roles.Revoke(ctx, id, domain.RoleAdmin))
	grants, err = roles.Grants(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, grants)
}
