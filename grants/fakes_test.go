package grants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echo-helper/model"
	"echo-helper/utils/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type roleKey struct{ guild, user, role string }

type fakePlatform struct {
	mu         sync.Mutex
	roles      map[roleKey]bool
	nicks      map[string]string
	dms        map[string][]model.Notice
	posts      map[string][]model.Notice
	removes    int
	failRemove map[string]bool
	system     string

	// hold blocks the next RemoveRole or SetNickname call until released.
	hold    chan struct{}
	entered chan struct{}
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		roles:      map[roleKey]bool{},
		nicks:      map[string]string{},
		dms:        map[string][]model.Notice{},
		posts:      map[string][]model.Notice{},
		failRemove: map[string]bool{},
		system:     "system",
	}
}

// holdNext makes the next gated call signal entered and wait for release.
func (f *fakePlatform) holdNext() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	f.entered = make(chan struct{})
	hold := f.hold
	return f.entered, func() { close(hold) }
}

func (f *fakePlatform) wait() {
	f.mu.Lock()
	hold, entered := f.hold, f.entered
	f.hold, f.entered = nil, nil
	f.mu.Unlock()
	if hold != nil {
		close(entered)
		<-hold
	}
}

func (f *fakePlatform) AddRole(_ context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[roleKey{guildID, userID, roleID}] = true
	return nil
}

// RemoveRole treats a missing role as success, like the Discord adapter.
func (f *fakePlatform) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRemove[userID] {
		return errors.New("discord unavailable")
	}
	f.removes++
	delete(f.roles, roleKey{guildID, userID, roleID})
	return nil
}

func (f *fakePlatform) hasRole(guildID, userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[roleKey{guildID, userID, roleID}]
}

func (f *fakePlatform) SendDirect(_ context.Context, userID string, n model.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], n)
	return nil
}

func (f *fakePlatform) SetNickname(_ context.Context, _, userID, nick string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nicks[userID] = nick
	return nil
}

func (f *fakePlatform) SendNotice(_ context.Context, channelID string, n model.Notice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[channelID] = append(f.posts[channelID], n)
	return "msg", nil
}

func (f *fakePlatform) SystemChannel(context.Context, string) (string, error) {
	return f.system, nil
}

func newDB(t *testing.T) *database.DB {
	t.Helper()
	s, err := database.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	return database.New(s)
}
