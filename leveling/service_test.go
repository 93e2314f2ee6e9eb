package leveling

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"echo-helper/model"
	"echo-helper/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePlatform struct {
	mu      sync.Mutex
	roles   map[string]bool
	notices []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{roles: map[string]bool{}}
}

func (f *fakePlatform) AddRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID+"/"+roleID] = true
	return nil
}

func (f *fakePlatform) RemoveRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, userID+"/"+roleID)
	return nil
}

func (f *fakePlatform) SendNotice(_ context.Context, _ string, n model.Notice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n.Content)
	return "m", nil
}

func (f *fakePlatform) has(userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[userID+"/"+roleID]
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, p *fakePlatform, c *clock) (*Service, *database.DB) {
	t.Helper()
	s, err := database.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	db := database.New(s)
	svc := NewService(db, p, Config{
		GuildID:         "g",
		AnnounceChannel: "levels",
		LevelRoles:      map[int]string{2: "lvl2", 50: "lvl50"},
		RewardRole:      "echo",
	}, c.Now)
	return svc, db
}

func TestFirstMessageInitializesRecord(t *testing.T) {
	p := newFakePlatform()
	svc, _ := newService(t, p, &clock{now: time.Now()})

	rec, crossed, err := svc.OnMessage(context.Background(), "u")
	require.NoError(t, err)
	assert.Empty(t, crossed)
	assert.Equal(t, model.LevelRecord{XP: 10, Level: 1}, rec)
}

func TestLevelUpGrantsMappedRoleAndAnnounces(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	svc, db := newService(t, p, &clock{now: time.Now()})
	require.NoError(t, database.NewCollection[model.LevelRecord](db, database.DomainLevels).
		Put(ctx, "u", model.LevelRecord{Level: 1, XP: 195}))

	rec, crossed, err := svc.OnMessage(ctx, "u")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []int{2}, crossed)
	assert.Equal(t, 2, rec.Level)
	assert.Equal(t, 5, rec.XP)
	assert.True(t, p.has("u", "lvl2"))
	assert.Equal(t, []string{"<@u> reached level 2!"}, p.notices)
}

func TestLevelFiftyRewardExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc, db := newService(t, p, c)
	require.NoError(t, database.NewCollection[model.LevelRecord](db, database.DomainLevels).
		Put(ctx, "u", model.LevelRecord{Level: 49, XP: XPNeeded(49) - 1}))

	rec, crossed, err := svc.OnMessage(ctx, "u")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []int{50}, crossed)
	require.NotNil(t, rec.RewardExpiresAt)
	assert.Equal(t, c.now.Add(30*24*time.Hour), *rec.RewardExpiresAt)
	assert.True(t, p.has("u", "lvl50"))
	assert.True(t, p.has("u", "echo"))

	n, err := svc.ReconcileRewards(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.now = c.now.Add(30 * 24 * time.Hour)
	n, err = svc.ReconcileRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, p.has("u", "echo"))
	assert.True(t, p.has("u", "lvl50"), "only the reward role expires")

	after, err := svc.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 50, after.Level, "record survives, level never drops")
	assert.Nil(t, after.RewardExpiresAt)

	n, err = svc.ReconcileRewards(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMessagesAtCapEarnNothing(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	svc, db := newService(t, p, &clock{now: time.Now()})
	require.NoError(t, database.NewCollection[model.LevelRecord](db, database.DomainLevels).
		Put(ctx, "u", model.LevelRecord{Level: 50, XP: 3}))

	rec, crossed, err := svc.OnMessage(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, crossed)
	assert.Equal(t, 3, rec.XP)
}

func TestLevelUpAfterCloseCreditsXPOnly(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	svc, db := newService(t, p, &clock{now: time.Now()})
	require.NoError(t, database.NewCollection[model.LevelRecord](db, database.DomainLevels).
		Put(ctx, "u", model.LevelRecord{Level: 1, XP: 195}))

	svc.Close()
	rec, crossed, err := svc.OnMessage(ctx, "u")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []int{2}, crossed)
	assert.Equal(t, 2, rec.Level)
	assert.False(t, p.has("u", "lvl2"), "no side effects start once closed")
	assert.Empty(t, p.notices)
}

func TestCloseWaitsForRunningLevelUps(t *testing.T) {
	ctx := context.Background()
	p := newFakePlatform()
	svc, db := newService(t, p, &clock{now: time.Now()})
	levels := database.NewCollection[model.LevelRecord](db, database.DomainLevels)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("u%d", i)
		require.NoError(t, levels.Put(ctx, id, model.LevelRecord{Level: 1, XP: 195}))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.OnMessage(ctx, id)
			assert.NoError(t, err)
		}()
	}
	svc.Close()
	wg.Wait()
	svc.Close()

	p.mu.Lock()
	announced := len(p.notices)
	p.mu.Unlock()
	assert.LessOrEqual(t, announced, 20)
}
