package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandTimeoutOverride(t *testing.T) {
	r := &Repository{commandTimeout: 5 * time.Second}
	ctx := context.Background()

	assert.Equal(t, 5*time.Second, r.commandTimeoutFor(ctx))
	assert.Equal(t, time.Second, r.commandTimeoutFor(WithCommandTimeout(ctx, time.Second)))
	assert.Equal(t, time.Duration(0), r.commandTimeoutFor(WithCommandTimeout(ctx, 0)))
	assert.Equal(t, 5*time.Second, r.commandTimeoutFor(WithCommandTimeout(ctx, -1)))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := &Repository{commandTimeout: time.Minute}

	ctx, cancel := r.timeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	unbounded, cancelUnbounded := r.timeout(WithCommandTimeout(context.Background(), 0))
	defer cancelUnbounded()
	_, ok = unbounded.Deadline()
	assert.False(t, ok)
}
