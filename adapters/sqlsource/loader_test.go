package sqlsource

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	apperrors "tidyframe/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDatabase writes a small SQLite file and returns its path
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.db")
	db, err := sqlx.Connect("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE people (
		name TEXT,
		age INTEGER,
		score REAL,
		joined TIMESTAMP,
		active BOOLEAN,
		price TEXT
	)`)
	joined := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db.MustExec(`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?)`, "Ann", 30, 1.5, joined, true, "10")
	db.MustExec(`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?)`, "Bob", nil, 2.5, joined.AddDate(0, 1, 0), false, "12.5")
	db.MustExec(`INSERT INTO people VALUES (?, ?, ?, ?, ?, ?)`, "Cid", 20, nil, nil, true, nil)
	return path
}

func TestLoadKeepsDriverTypes(t *testing.T) {
	src := Source{Type: "sqlite", Name: seedDatabase(t)}

	f, err := NewLoader(Config{}, nil).Load(context.Background(), src, "SELECT * FROM people ORDER BY name")
	require.NoError(t, err)
	require.Equal(t, 3, f.NumRows())
	assert.Equal(t, []string{"name", "age", "score", "joined", "active", "price"}, f.ColumnNames())

	want := map[string]frame.DType{
		"name":   frame.DTypeText,
		"age":    frame.DTypeInteger,
		"score":  frame.DTypeFloat,
		"joined": frame.DTypeDatetime,
		"active": frame.DTypeBoolean,
		"price":  frame.DTypeFloat,
	}
	for name, dtype := range want {
		col, ok := f.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, dtype, col.DType(), name)
	}

	age, _ := f.Column("age")
	assert.True(t, age.At(1).IsMissing())
	joined, _ := f.Column("joined")
	assert.Equal(t, "2024-04-01", joined.At(1).String())
	assert.True(t, joined.At(2).IsMissing())
	price, _ := f.Column("price")
	assert.Equal(t, 12.5, price.At(1).Num)
}

func TestLoadDuplicateColumnNames(t *testing.T) {
	src := Source{Type: "sqlite3", Name: seedDatabase(t)}

	f, err := NewLoader(Config{}, nil).Load(context.Background(), src, "SELECT name, name, age AS ' ' FROM people")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "name.1", "Unnamed: 2"}, f.ColumnNames())
}

func TestLoadTruncatesAtMaxRows(t *testing.T) {
	src := Source{Type: "sqlite", Name: seedDatabase(t)}

	f, err := NewLoader(Config{MaxRows: 2}, nil).Load(context.Background(), src, "SELECT name FROM people ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumRows())
}

func TestLoadErrors(t *testing.T) {
	path := seedDatabase(t)
	loader := NewLoader(Config{}, nil)
	ctx := context.Background()

	_, err := loader.Load(ctx, Source{Type: "sqlite", Name: path}, "  ")
	assert.True(t, core.IsInvalidParameter(err))

	_, err = loader.Load(ctx, Source{Type: "mysql", Name: "shop"}, "SELECT 1")
	assert.True(t, core.IsInvalidParameter(err))
	assert.Contains(t, err.Error(), "unsupported database type")

	_, err = loader.Load(ctx, Source{Type: "sqlite"}, "SELECT 1")
	assert.True(t, core.IsInvalidParameter(err))

	_, err = loader.Load(ctx, Source{Type: "sqlite", Name: path}, "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "database query error")

	_, err = loader.Load(ctx, Source{Type: "sqlite", Name: path}, "SELECT * FROM people WHERE age > 100")
	assert.True(t, errors.Is(err, core.ErrEmptyDataset))

	_, err = loader.Load(ctx, Source{Type: "sqlite", Name: path}, "DELETE FROM people")
	require.Error(t, err, "sqlite sources are opened read-only")

	f, err := loader.Load(ctx, Source{Type: "sqlite", Name: path}, "SELECT COUNT(*) AS n FROM people")
	require.NoError(t, err)
	n, _ := f.Column("n")
	assert.Equal(t, 3.0, n.At(0).Num)
}

func TestSourceDSNAndDescribe(t *testing.T) {
	src := Source{Type: "PostgreSQL", Host: "db", Port: "5433", Name: "sales", User: "ann", Password: "p@ss word"}
	driverName, dsn, err := src.driver()
	require.NoError(t, err)
	assert.Equal(t, "postgres", driverName)
	assert.Equal(t, "postgres://ann:p%40ss%20word@db:5433/sales?sslmode=disable", dsn)

	described := src.Describe()
	assert.Equal(t, "PostgreSQL: ann@db:5433/sales", described)
	assert.False(t, strings.Contains(described, "p@ss"))

	driverName, dsn, err = Source{Type: "sqlite", Name: "/data/shop.db"}.driver()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", driverName)
	assert.Equal(t, "file:/data/shop.db?mode=ro", dsn)
}
