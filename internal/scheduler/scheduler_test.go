package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Trigger{}))

	return db
}

func TestIsDue(t *testing.T) {
	target := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	trigger := &Trigger{VaultID: 1, TargetTime: target}

	assert.False(t, IsDue(trigger, target.Add(-time.Second)))
	assert.True(t, IsDue(trigger, target), "the exact target time is due")
	assert.True(t, IsDue(trigger, target.Add(time.Hour)))
}

func TestEnsureDue_MessageIsStable(t *testing.T) {
	trigger := &Trigger{VaultID: 1, TargetTime: time.Now().Add(time.Hour)}

	err := EnsureDue(trigger, time.Now())
	require.Error(t, err)
	assert.Equal(t, "trigger execution time has not yet elapsed", err.Error())
}

func TestTriggerLifecycle(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	target := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, CreateTx(db, 42, target))

	trigger, err := service.GetTrigger(42)
	require.NoError(t, err)
	require.NotNil(t, trigger)
	assert.Equal(t, TriggerTypeTime, trigger.TriggerType)
	assert.True(t, trigger.TargetTime.Equal(target))

	require.NoError(t, AdvanceTx(db, trigger, types.IntervalHourly))

	trigger, err = service.GetTrigger(42)
	require.NoError(t, err)
	assert.True(t, trigger.TargetTime.Equal(target.Add(time.Hour)),
		"advancement must chain from the previous target, not from now")

	require.NoError(t, ClearTx(db, 42))

	trigger, err = service.GetTrigger(42)
	require.NoError(t, err)
	assert.Nil(t, trigger, "a cleared trigger reads back as absent")
}

func TestGetDueTriggerIDs(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, CreateTx(db, 1, now.Add(-2*time.Hour)))
	require.NoError(t, CreateTx(db, 2, now.Add(-time.Hour)))
	require.NoError(t, CreateTx(db, 3, now.Add(time.Hour)))

	ids, err := service.GetDueTriggerIDs(now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids, "oldest target first, future triggers excluded")

	ids, err = service.GetDueTriggerIDs(now, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}
