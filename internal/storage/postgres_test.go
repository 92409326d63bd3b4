package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyfinder/internal/model"
)

func setupTestDB(t *testing.T) *PostgresRepository {
	// Assuming test is running from inside internal/storage so we look up 2 levels
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	repo, err := NewPostgresRepository(context.Background(), dbURL)
	require.NoError(t, err, "Failed to connect to DB")
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestSaveAndUpdate(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx := context.Background()

	// Random details to avoid conflicts with earlier runs.
	rnd := int(time.Now().UnixNano() % 10000)
	p := model.NewCandidate(fmt.Sprintf("127.0.%d.1", rnd%255), 8000+rnd, model.ProtocolSOCKS5)

	require.NoError(t, repo.SaveBatch(ctx, []model.Candidate{p}))
	// Saving again must not fail on the unique (ip, port) key.
	require.NoError(t, repo.SaveBatch(ctx, []model.Candidate{p}))

	var id int64
	err := repo.pool.QueryRow(ctx, `SELECT id FROM proxies WHERE ip=$1 AND port=$2`, p.IP, p.Port).Scan(&id)
	require.NoError(t, err, "Inserted proxy not found in DB")

	runID := uuid.NewString()
	valid := p.WithResult(true, 150*time.Millisecond)
	require.NoError(t, repo.UpdateBatch(ctx, runID, []model.Candidate{valid}))

	var state, gotRun string
	var latency *int64
	err = repo.pool.QueryRow(ctx,
		`SELECT validation_state, latency_ms, last_run_id FROM proxies WHERE id=$1`, id,
	).Scan(&state, &latency, &gotRun)
	require.NoError(t, err)
	assert.Equal(t, "valid", state)
	require.NotNil(t, latency)
	assert.EqualValues(t, 150, *latency)
	assert.Equal(t, runID, gotRun)

	require.NoError(t, repo.UpdateBatch(ctx, runID, []model.Candidate{valid.WithResult(false, 0)}))
	err = repo.pool.QueryRow(ctx, `SELECT validation_state, latency_ms FROM proxies WHERE id=$1`, id).Scan(&state, &latency)
	require.NoError(t, err)
	assert.Equal(t, "invalid", state)
	assert.Nil(t, latency)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestLatencyParam(t *testing.T) {
	p := model.NewCandidate("1.1.1.1", 80, model.ProtocolHTTP)
	assert.Nil(t, latencyParam(p))
	assert.Nil(t, latencyParam(p.WithResult(false, time.Second)))

	got := latencyParam(p.WithResult(true, 42*time.Millisecond))
	require.NotNil(t, got)
	assert.EqualValues(t, 42, *got)
}
