package books

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "books.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Book{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func seed(t *testing.T, repo *Repository) []*entities.Book {
	books := []*entities.Book{
		{Title: "Things Fall Apart", Author: "Chinua Achebe", Category: "Fiction", TotalCopies: 2, AvailableCopies: 2},
		{Title: "Long Walk to Freedom", Author: "Nelson Mandela", Category: "Biography", TotalCopies: 1, AvailableCopies: 0},
		{Title: "Go in Action", Author: "William Kennedy", Category: "Technology", TotalCopies: 1, AvailableCopies: 1, IsDigital: true},
	}
	for _, b := range books {
		require.NoError(t, repo.Create(b))
	}
	return books
}

func TestRepository_List(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo)

	all, total, err := repo.List(Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Go in Action", all[0].Title)

	found, total, err := repo.List(Filter{Search: "mandela"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Long Walk to Freedom", found[0].Title)

	_, total, _ = repo.List(Filter{Available: true}, 10, 0)
	assert.Equal(t, int64(2), total)

	_, total, _ = repo.List(Filter{DigitalOnly: true}, 10, 0)
	assert.Equal(t, int64(1), total)

	_, total, _ = repo.List(Filter{Category: "Fiction"}, 10, 0)
	assert.Equal(t, int64(1), total)
}

func TestRepository_Categories(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo)

	cats, err := repo.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Biography", "Fiction", "Technology"}, cats)
}

func TestRepository_ReserveAndRestoreCopy(t *testing.T) {
	repo := setupTestDB(t)
	books := seed(t, repo)
	book := books[0]

	require.NoError(t, repo.ReserveCopy(book.ID))
	require.NoError(t, repo.ReserveCopy(book.ID))
	assert.ErrorIs(t, repo.ReserveCopy(book.ID), ErrNoCopiesLeft)

	got, _ := repo.GetByID(book.ID)
	assert.Equal(t, 0, got.AvailableCopies)

	require.NoError(t, repo.RestoreCopy(book.ID))
	require.NoError(t, repo.RestoreCopy(book.ID))
	require.NoError(t, repo.RestoreCopy(book.ID))
	got, _ = repo.GetByID(book.ID)
	assert.Equal(t, 2, got.AvailableCopies, "restore must not exceed total copies")

	assert.ErrorIs(t, repo.ReserveCopy(9999), ErrNotFound)
}

func TestRepository_LowStockAndDelete(t *testing.T) {
	repo := setupTestDB(t)
	books := seed(t, repo)

	low, err := repo.LowStock(0, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, books[1].ID, low[0].ID)

	require.NoError(t, repo.Delete(books[1].ID))
	assert.ErrorIs(t, repo.Delete(books[1].ID), ErrNotFound)
	_, err = repo.GetByID(books[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_AttachFile(t *testing.T) {
	repo := setupTestDB(t)
	books := seed(t, repo)

	require.NoError(t, repo.AttachFile(books[0].ID, "books/1.pdf", 2048, 12))
	got, _ := repo.GetByID(books[0].ID)
	assert.True(t, got.IsDigital)
	assert.True(t, got.HasFile())
	assert.Equal(t, 12, got.PageCount)
	assert.Equal(t, int64(2048), got.FileSize)
}
