package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

func repositories(t *testing.T) map[string]DocumentRepository {
	t.Helper()
	sqliteRepo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })
	return map[string]DocumentRepository{
		"memory": NewMemoryDocumentRepository(),
		"sqlite": sqliteRepo,
	}
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newDoc(id, path string) entity.Document {
	return entity.Document{ID: id, SourcePath: path, ContentHash: "hash-" + id, FirstSeenAt: t0}
}

func TestRegisterIsIdempotent(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, created, err := repo.Register(ctx, newDoc("a-1", "/hw/a.pdf"))
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, constants.DocumentPending, d.Status)
			assert.Equal(t, t0, d.FirstSeenAt)

			_, err = repo.Claim(ctx, "a-1", "tok", t0)
			require.NoError(t, err)

			d, created, err = repo.Register(ctx, newDoc("a-1", "/hw/a.pdf"))
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, constants.DocumentInProgress, d.Status, "re-registering must not reset state")
		})
	}
}

func TestLifecycle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _, err := repo.Register(ctx, newDoc("a-1", "/hw/a.pdf"))
			require.NoError(t, err)

			d, err := repo.Claim(ctx, "a-1", "tok", t0.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, constants.DocumentInProgress, d.Status)
			assert.Equal(t, 1, d.Attempts)
			require.NotNil(t, d.LastAttemptAt)

			_, err = repo.Claim(ctx, "a-1", "other", t0)
			assert.ErrorIs(t, err, ErrClaimLost)

			assert.ErrorIs(t, repo.Complete(ctx, "a-1", "other", "/out/a-1.json", t0), ErrClaimLost)
			require.NoError(t, repo.Complete(ctx, "a-1", "tok", "/out/a-1.json", t0.Add(2*time.Second)))

			d, err = repo.Get(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, constants.DocumentCompleted, d.Status)
			assert.Equal(t, "/out/a-1.json", d.ResultPath)
			require.NotNil(t, d.CompletedAt)

			_, err = repo.Claim(ctx, "a-1", "tok2", t0)
			assert.ErrorIs(t, err, ErrClaimLost, "completed is terminal")
			_, err = repo.Requeue(ctx, "a-1")
			assert.ErrorIs(t, err, ErrClaimLost)
		})
	}
}

func TestFailAndRequeue(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _, err := repo.Register(ctx, newDoc("a-1", "/hw/a.pdf"))
			require.NoError(t, err)
			_, err = repo.Claim(ctx, "a-1", "tok", t0)
			require.NoError(t, err)
			require.NoError(t, repo.Fail(ctx, "a-1", "tok", "EXTRACTION: corrupted", t0))

			d, err := repo.Get(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, constants.DocumentFailed, d.Status)
			assert.Equal(t, "EXTRACTION: corrupted", d.ErrorDetails)

			_, err = repo.Claim(ctx, "a-1", "tok2", t0)
			assert.ErrorIs(t, err, ErrClaimLost, "failed needs an explicit requeue")

			d, err = repo.Requeue(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, constants.DocumentPending, d.Status)
			assert.Empty(t, d.ErrorDetails)

			d, err = repo.Claim(ctx, "a-1", "tok2", t0)
			require.NoError(t, err)
			assert.Equal(t, 2, d.Attempts)
		})
	}
}

func TestReleaseAndRecoverStale(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a-1", "b-1"} {
				_, _, err := repo.Register(ctx, newDoc(id, "/hw/"+id+".pdf"))
				require.NoError(t, err)
				_, err = repo.Claim(ctx, id, "tok-"+id, t0)
				require.NoError(t, err)
			}

			require.NoError(t, repo.Release(ctx, "a-1", "tok-a-1", "PERSISTENCE: disk full"))
			d, err := repo.Get(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, constants.DocumentInProgress, d.Status)
			assert.Equal(t, "PERSISTENCE: disk full", d.ErrorDetails)

			_, err = repo.Claim(ctx, "a-1", "again", t0)
			require.NoError(t, err, "released documents are claimable again")

			_, err = repo.Claim(ctx, "b-1", "thief", t0)
			assert.ErrorIs(t, err, ErrClaimLost)

			n, err := repo.RecoverStale(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = repo.Claim(ctx, "b-1", "after-restart", t0)
			require.NoError(t, err)
		})
	}
}

func TestNotFound(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repo.Claim(ctx, "missing", "tok", t0)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repo.Requeue(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListAndFindByPath(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			docs := []entity.Document{
				newDoc("a-1", "/hw/a.pdf"),
				newDoc("b-1", "/hw/b.pdf"),
				newDoc("a-2", "/hw/a.pdf"),
			}
			for i := range docs {
				docs[i].FirstSeenAt = t0.Add(time.Duration(i) * time.Minute)
				_, _, err := repo.Register(ctx, docs[i])
				require.NoError(t, err)
			}
			_, err := repo.Claim(ctx, "b-1", "tok", t0)
			require.NoError(t, err)

			all, err := repo.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a-1", "b-1", "a-2"}, ids(all))

			pending, err := repo.List(ctx, constants.DocumentPending)
			require.NoError(t, err)
			assert.Equal(t, []string{"a-1", "a-2"}, ids(pending))

			byPath, err := repo.FindByPath(ctx, "/hw/a.pdf")
			require.NoError(t, err)
			assert.Equal(t, []string{"a-2", "a-1"}, ids(byPath), "newest first")
		})
	}
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _, err := repo.Register(ctx, newDoc("a-1", "/hw/a.pdf"))
			require.NoError(t, err)

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := repo.Claim(ctx, "a-1", string(rune('a'+i)), t0); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func ids(docs []entity.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
