package repo_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"soil-monitor/internal/domain"
	"soil-monitor/internal/repo"
	"soil-monitor/internal/testutil"
)

func createUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Ana", Email: email, PasswordHash: "hash"}
	require.NoError(t, repo.NewUserRepo(db).CreateUser(context.Background(), u))
	return u
}

func TestCreateUserUniqueEmail(t *testing.T) {
	db := testutil.NewDB(t)
	users := repo.NewUserRepo(db)
	ctx := context.Background()

	first := createUser(t, db, "ana@example.com")
	assert.NotZero(t, first.ID)

	err := users.CreateUser(ctx, &domain.User{Name: "B", Email: "ana@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	got, err := users.FindUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = users.FindUserByEmail(ctx, "x@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = users.FindUserByID(ctx, first.ID+1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadingsListedInInsertionOrder(t *testing.T) {
	db := testutil.NewDB(t)
	readings := repo.NewReadingRepo(db)
	ctx := context.Background()
	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")

	empty, err := readings.ListReadingsByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var ids []uint
	for i, owner := range []uint{a.ID, b.ID, a.ID, a.ID} {
		rd := &domain.Reading{UserID: owner, Measurements: domain.Measurements{PH: 6 + float64(i)/10}}
		require.NoError(t, readings.InsertReading(ctx, rd))
		if owner == a.ID {
			ids = append(ids, rd.ID)
		}
	}

	got, err := readings.ListReadingsByUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rd := range got {
		assert.Equal(t, ids[i], rd.ID)
		assert.Equal(t, a.ID, rd.UserID)
	}
	assert.InDelta(t, 6.3, got[2].Measurements.PH, 1e-9)

	one, err := readings.FindReadingByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, a.ID, one.UserID)
}

func TestInsertReadingValidation(t *testing.T) {
	db := testutil.NewDB(t)
	readings := repo.NewReadingRepo(db)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com")

	err := readings.InsertReading(ctx, &domain.Reading{UserID: u.ID, Measurements: domain.Measurements{Umidade: math.NaN()}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = readings.InsertReading(ctx, &domain.Reading{UserID: u.ID + 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = readings.FindReadingByID(ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAnomalyAudit(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com")
	rd := &domain.Reading{UserID: u.ID}
	require.NoError(t, repo.NewReadingRepo(db).InsertReading(ctx, rd))
	anomalies := repo.NewAnomalyRepo(db)

	rec := &domain.AnomalyRecord{ReadingID: rd.ID, Parameter: domain.ParamPH, Condition: "Baixo (0.0). Ação: aumentar.", Action: "calcário"}
	require.NoError(t, anomalies.InsertAnomaly(ctx, rec))
	assert.NotZero(t, rec.ID)

	err := anomalies.InsertAnomaly(ctx, &domain.AnomalyRecord{ReadingID: rd.ID, Parameter: "PH", Condition: "c", Action: "a"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	err = anomalies.InsertAnomaly(ctx, &domain.AnomalyRecord{ReadingID: rd.ID, Parameter: domain.ParamPH, Condition: " ", Action: "a"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := anomalies.ListAnomaliesByReading(ctx, rd.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
}
