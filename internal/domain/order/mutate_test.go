package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictRepo fails the first n updates with a version conflict.
type conflictRepo struct {
	Repository
	stored    *Order
	conflicts int
	updates   int
}

func (r *conflictRepo) Get(ctx context.Context, id string) (*Order, error) {
	if r.stored == nil || r.stored.ID != id {
		return nil, apperr.ErrOrderNotFound
	}
	return r.stored.Clone(), nil
}

func (r *conflictRepo) Update(ctx context.Context, o *Order) error {
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		return apperr.ErrConcurrentUpdate
	}
	o.Version++
	r.stored = o.Clone()
	return nil
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	repo := &conflictRepo{stored: newTestOrder(MethodCard), conflicts: 2}
	calls := 0

	o, err := Mutate(context.Background(), repo, ByID(repo, repo.stored.ID), func(o *Order) (bool, error) {
		calls++
		return true, o.Transition(StatusCancelled, "", time.Now())
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, StatusCancelled, o.Status())
	assert.Len(t, repo.stored.History(), 2, "only the stored attempt counts")
}

func TestMutate_GivesUpAfterThreeConflicts(t *testing.T) {
	repo := &conflictRepo{stored: newTestOrder(MethodCard), conflicts: 5}

	_, err := Mutate(context.Background(), repo, ByID(repo, repo.stored.ID), func(o *Order) (bool, error) {
		return true, nil
	})

	assert.ErrorIs(t, err, apperr.ErrConcurrentUpdate)
	assert.Equal(t, 3, repo.updates)
}

func TestMutate_NoChangeSkipsUpdate(t *testing.T) {
	repo := &conflictRepo{stored: newTestOrder(MethodCard)}

	o, err := Mutate(context.Background(), repo, ByID(repo, repo.stored.ID), func(o *Order) (bool, error) {
		return false, nil
	})

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Zero(t, repo.updates)
}

func TestMutate_PropagatesErrors(t *testing.T) {
	repo := &conflictRepo{stored: newTestOrder(MethodCard)}
	boom := errors.New("boom")

	_, err := Mutate(context.Background(), repo, ByID(repo, "missing"), func(o *Order) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)

	_, err = Mutate(context.Background(), repo, ByID(repo, repo.stored.ID), func(o *Order) (bool, error) { return true, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, repo.updates)
}
