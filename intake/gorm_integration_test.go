//go:build integration

package intake

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sehatbridge/sehatauth/sequence"
)

func TestGormRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("SEHATAUTH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SEHATAUTH_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	ctx := context.Background()
	repo := NewGormRepository(db)
	require.NoError(t, repo.AutoMigrate(ctx))
	gen := sequence.NewPostgresGenerator(db)
	require.NoError(t, gen.AutoMigrate(ctx))

	svc := NewService(gen, repo, Config{SequenceName: "it_intake"}, zerolog.Nop())
	rec, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	t.Cleanup(func() { db.Where("id = ?", rec.ID).Delete(&Record{}) })

	got, err := svc.LatestByEmail(ctx, rec.Email)
	require.NoError(t, err)
	assert.Equal(t, rec.RegistrationID, got.RegistrationID)
	assert.Equal(t, []string{"uploads/ecg.pdf"}, got.Reports)
}
