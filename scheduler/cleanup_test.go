package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (p *fakePurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.deleted, p.err
}

func TestCleanupUsesRetentionWindow(t *testing.T) {
	logger, hook := test.NewNullLogger()
	purger := &fakePurger{deleted: 12}
	nc := NewNotificationCleaner("0 0 3 * * *", 30, purger, logger)
	nc.now = func() time.Time { return fixedNow }

	deleted, err := nc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), purger.cutoff)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, int64(12), hook.LastEntry().Data["deleted"])
}

func TestCleanupError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	nc := NewNotificationCleaner("0 0 3 * * *", 30, &fakePurger{err: errors.New("db down")}, logger)

	_, err := nc.Cleanup(context.Background())
	assert.Error(t, err)
}

func TestCleanerStartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	nc := NewNotificationCleaner("0 0 3 * * *", 30, &fakePurger{}, logger)

	require.NoError(t, nc.Start())
	nc.Stop()
}
