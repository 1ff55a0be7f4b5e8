package broadcasts

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

func TestRepository_CreateSaveList(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "broadcasts.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.EmailBroadcast{}))
	repo := NewRepository(db)

	b := &entities.EmailBroadcast{
		Subject:  "Holiday hours",
		Body:     "We close early on Friday.",
		Audience: entities.BroadcastAudienceMembers,
		Status:   entities.BroadcastStatusQueued,
	}
	require.NoError(t, repo.Create(b))

	b.Status = entities.BroadcastStatusSent
	b.SentCount = 3
	require.NoError(t, repo.Save(b))

	got, err := repo.GetByID(b.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BroadcastStatusSent, got.Status)
	assert.Equal(t, 3, got.SentCount)

	list, total, err := repo.List(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	_, err = repo.GetByID(99)
	assert.ErrorIs(t, err, ErrNotFound)
}
