package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "cases:detail:1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "cases:detail:1", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "cases:detail:1"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "cases:*"))
	assert.NoError(t, repo.Close())
}
