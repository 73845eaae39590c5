package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
	"github.com/cory-johannsen/tactics/internal/testutil"
)

func setupRepo(t *testing.T) *postgres.EventLogRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewEventLogRepository(pc.RawPool)
}

func TestEventLog_AppendAndLoad(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	first := combat.Record{
		EncounterID: "enc-1", Seq: 1, Round: 1, ActorID: "g1", At: at,
		Events: []sim.Event{
			sim.StartTurn{SourceID: "g1", Round: 1},
			sim.Move{SourceID: "g1", Destination: battlefield.Pos(2, 3)},
			sim.Attack{SourceID: "g1", TargetID: "p1", AbilityID: "scimitar"},
		},
	}
	second := combat.Record{
		EncounterID: "enc-1", Seq: 2, Round: 1, ActorID: "g1", At: at.Add(time.Second),
		Events: []sim.Event{sim.EndTurn{SourceID: "g1"}},
	}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))
	require.NoError(t, repo.Append(ctx, combat.Record{EncounterID: "enc-2", Seq: 1, Events: []sim.Event{sim.Log{SourceID: "x", Message: "other"}}}))

	got, err := repo.Load(ctx, "enc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.Events, got[0].Events)
	assert.Equal(t, "g1", got[0].ActorID)
	assert.WithinDuration(t, at, got[0].At, time.Millisecond)
	assert.Equal(t, second.Events, got[1].Events)
}

func TestEventLog_DuplicateSeqRejected(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	rec := combat.Record{EncounterID: "enc-1", Seq: 1, At: time.Now(), Events: []sim.Event{sim.EndTurn{SourceID: "a"}}}
	require.NoError(t, repo.Append(ctx, rec))
	assert.ErrorIs(t, repo.Append(ctx, rec), postgres.ErrBatchExists)

	got, err := repo.Load(ctx, "enc-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEventLog_Delete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, combat.Record{EncounterID: "enc-1", Seq: 1, At: time.Now(), Events: []sim.Event{
		sim.EndTurn{SourceID: "a"}, sim.EndTurn{SourceID: "b"},
	}}))
	n, err := repo.Delete(ctx, "enc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.Load(ctx, "enc-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventLog_RejectsEmptyEncounterID(t *testing.T) {
	repo := postgres.NewEventLogRepository(nil)
	assert.Error(t, repo.Append(context.Background(), combat.Record{}))
}

func TestPool_ReadyRequiresSchema(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	ctx := context.Background()
	assert.ErrorIs(t, pc.Pool.Ready(ctx, 5*time.Second), postgres.ErrSchemaMissing)

	pc.ApplyMigrations(t)
	assert.NoError(t, pc.Pool.Ready(ctx, 5*time.Second))
}
