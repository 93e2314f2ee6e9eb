package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testRoles = model.RoleConfig{
	TrialHelper: "r-trial",
	Helper:      "r-helper",
	Moderator:   "r-mod",
	TicketAdmin: "r-admin",
	Council:     "r-council",
}

var testCategories = map[model.TicketType]string{
	model.TicketSupport:      "cat-support",
	model.TicketMedia:        "cat-media",
	model.TicketPlayerReport: "cat-report",
	model.TicketAppeal:       "cat-appeal",
}

type fakePlatform struct {
	mu         sync.Mutex
	channels   map[string]model.ChannelInfo
	visibility map[string]map[string]bool
	history    map[string][]model.HistoryMessage
	posts      map[string][]model.Notice
	dms        map[string][]model.Notice
	deleted    []string
	nextID     int
	failDelete bool
	failCreate bool
}

func newFakePlatform() *fakePlatform {
	p := &fakePlatform{
		channels:   map[string]model.ChannelInfo{},
		visibility: map[string]map[string]bool{},
		history:    map[string][]model.HistoryMessage{},
		posts:      map[string][]model.Notice{},
		dms:        map[string][]model.Notice{},
	}
	names := map[model.TicketType]string{
		model.TicketSupport:      "Support Tickets",
		model.TicketMedia:        "Media Applications",
		model.TicketPlayerReport: "Player Reports",
		model.TicketAppeal:       "Appeals",
	}
	for t, id := range testCategories {
		p.channels[id] = model.ChannelInfo{ID: id, GuildID: "g", Name: names[t]}
	}
	p.channels["general"] = model.ChannelInfo{ID: "general", GuildID: "g", Name: "general"}
	return p
}

func (p *fakePlatform) Channel(_ context.Context, id string) (model.ChannelInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return model.ChannelInfo{}, fmt.Errorf("%w: %s", model.ErrChannelNotFound, id)
	}
	return ch, nil
}

func (p *fakePlatform) CreateChannel(_ context.Context, guildID, name, parentID, topic string, rules []model.VisibilityRule) (model.ChannelInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return model.ChannelInfo{}, errors.New("create failed")
	}
	p.nextID++
	ch := model.ChannelInfo{
		ID:         fmt.Sprintf("ch-%d", p.nextID),
		GuildID:    guildID,
		Name:       name,
		Topic:      topic,
		ParentID:   parentID,
		ParentName: p.channels[parentID].Name,
	}
	p.channels[ch.ID] = ch
	p.apply(ch.ID, rules)
	return ch, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDelete {
		return errors.New("delete failed")
	}
	delete(p.channels, id)
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *fakePlatform) RenameChannel(_ context.Context, id, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := p.channels[id]
	ch.Name = name
	p.channels[id] = ch
	return nil
}

func (p *fakePlatform) SetVisibility(_ context.Context, id string, rules ...model.VisibilityRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(id, rules)
	return nil
}

func (p *fakePlatform) apply(id string, rules []model.VisibilityRule) {
	if p.visibility[id] == nil {
		p.visibility[id] = map[string]bool{}
	}
	for _, r := range rules {
		p.visibility[id][r.PrincipalID] = r.Allow
	}
}

func (p *fakePlatform) History(_ context.Context, id string) ([]model.HistoryMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history[id], nil
}

func (p *fakePlatform) SendNotice(_ context.Context, id string, n model.Notice) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts[id] = append(p.posts[id], n)
	return "msg", nil
}

func (p *fakePlatform) SendDirect(_ context.Context, userID string, n model.Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms[userID] = append(p.dms[userID], n)
	return nil
}

func (p *fakePlatform) visible(channelID, principal string) (allow, set bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	allow, set = p.visibility[channelID][principal]
	return allow, set
}

type fixture struct {
	svc    *Service
	p      *fakePlatform
	counts *moderation.Counters
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := database.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	db := database.New(s)
	p := newFakePlatform()
	counts := moderation.NewCounters(db, database.DomainTicketCounts)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(db, counts, p, Config{
		GuildID:    "g",
		Categories: testCategories,
		Roles:      testRoles,
		LogChannel: "ticket-logs",
	}, func() time.Time { return now })
	t.Cleanup(svc.Wait)
	return fixture{svc: svc, p: p, counts: counts}
}

var (
	requester = model.Actor{ID: "U", Name: "Player"}
	staffS    = model.Actor{ID: "S", Name: "helper", Roles: []string{"r-helper"}}
	staffS2   = model.Actor{ID: "S2", Name: "mod", Roles: []string{"r-mod"}}
	adminA    = model.Actor{ID: "A", Name: "admin", Roles: []string{"r-admin"}}
)

func (f fixture) create(t *testing.T, typ model.TicketType) model.ChannelInfo {
	t.Helper()
	_, ch, err := f.svc.Create(context.Background(), CreateRequest{Type: typ, Requester: requester, DeclaredUsername: "player_ign", Evidence: "n/a"})
	require.NoError(t, err)
	return ch
}

func TestCreateOpensUnclaimedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, ch, err := f.svc.Create(ctx, CreateRequest{Type: model.TicketSupport, Requester: requester, DeclaredUsername: "player_ign"})
	require.NoError(t, err)

	assert.Nil(t, ticket.ClaimedBy)
	assert.Equal(t, "Support Tickets", ticket.Category)
	assert.Equal(t, "support-tickets-player", ch.Name)
	assert.Equal(t, "cat-support", ch.ParentID)
	assert.Equal(t, "U|Support Tickets", ch.Topic)

	stored, ok, err := f.svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "player_ign", stored.Username)

	everyone, _ := f.p.visible(ch.ID, "g")
	assert.False(t, everyone)
	for _, id := range []string{"U", "r-trial", "r-helper", "r-mod", "r-admin"} {
		allow, set := f.p.visible(ch.ID, id)
		assert.True(t, set && allow, id)
	}

	intro := f.p.posts[ch.ID]
	require.Len(t, intro, 1)
	require.Len(t, intro[0].Controls, 3)
	assert.Equal(t, ControlClaim, intro[0].Controls[0].CustomID)
}

func TestCreateUnknownTypeFallsBackToSupport(t *testing.T) {
	f := newFixture(t)
	ticket, ch, err := f.svc.Create(context.Background(), CreateRequest{Type: "Something Else", Requester: requester})
	require.NoError(t, err)
	assert.Equal(t, model.TicketSupport, ticket.Type)
	assert.Equal(t, "cat-support", ch.ParentID)
}

func TestCreateMissingCategoryChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.p.mu.Lock()
	delete(f.p.channels, "cat-appeal")
	f.p.mu.Unlock()

	_, _, err := f.svc.Create(context.Background(), CreateRequest{Type: model.TicketAppeal, Requester: requester})
	require.ErrorIs(t, err, ErrCategoryNotFound)

	st, err := f.svc.Stats(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, st.ActiveTotal)
	assert.Zero(t, f.p.nextID)
}

func TestTicketLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	claimed, err := f.svc.Claim(ctx, ch.ID, staffS)
	require.NoError(t, err)
	assert.Equal(t, "S", claimed.Claimant())
	for id, want := range map[string]bool{"r-trial": false, "r-helper": false, "r-mod": false, "r-admin": true, "U": true, "S": true} {
		allow, set := f.p.visible(ch.ID, id)
		require.True(t, set, id)
		assert.Equal(t, want, allow, id)
	}

	_, err = f.svc.Claim(ctx, ch.ID, staffS2)
	var already *AlreadyClaimedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "S", already.ClaimedBy)

	unclaimed, err := f.svc.Unclaim(ctx, ch.ID, adminA)
	require.NoError(t, err)
	assert.Nil(t, unclaimed.ClaimedBy)
	allow, _ := f.p.visible(ch.ID, "r-trial")
	assert.True(t, allow)

	_, err = f.svc.Claim(ctx, ch.ID, staffS)
	require.NoError(t, err)

	f.p.mu.Lock()
	f.p.history[ch.ID] = []model.HistoryMessage{
		{AuthorName: "Player", Content: "help"},
		{AuthorName: "helper", Content: "on it"},
	}
	f.p.mu.Unlock()

	res, err := f.svc.Close(ctx, ch.ID, staffS2)
	require.NoError(t, err)
	assert.Equal(t, "S", res.CreditedTo)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Player: help\nhelper: on it", res.Transcript)

	f.svc.Wait()

	_, ok, err := f.svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, f.p.deleted, ch.ID)

	n, err := f.counts.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = f.counts.Get(ctx, "S2")
	require.NoError(t, err)
	assert.Zero(t, n)

	logs := f.p.posts["ticket-logs"]
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Files, 1)
	assert.Equal(t, "transcript-support-tickets-player.txt", logs[0].Files[0].Name)

	st, err := f.svc.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Closed)
	assert.Equal(t, 1, st.ClosedByType[model.TicketSupport])
	require.Len(t, st.TopClosers, 1)
	assert.Equal(t, "S", st.TopClosers[0].UserID)
}

func TestCloseUnclaimedCreditsCloser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketMedia)

	res, err := f.svc.Close(ctx, ch.ID, staffS2)
	require.NoError(t, err)
	assert.Equal(t, "S2", res.CreditedTo)
	f.svc.Wait()
}

func TestCloseTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	release := make(chan time.Time)
	f.svc.after = func(time.Duration) <-chan time.Time { return release }

	_, err := f.svc.Close(ctx, ch.ID, staffS)
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, ch.ID, staffS2)
	require.ErrorIs(t, err, ErrClosing)
	_, err = f.svc.Claim(ctx, ch.ID, staffS2)
	require.ErrorIs(t, err, ErrClosing)

	close(release)
	f.svc.Wait()

	total, err := f.counts.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFailedDeleteAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	f.p.failDelete = true
	_, err := f.svc.Close(ctx, ch.ID, staffS)
	require.NoError(t, err)
	f.svc.Wait()

	ticket, ok, err := f.svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, ticket.Closing)

	assert.Equal(t, "S", ticket.CreditedTo)

	f.p.mu.Lock()
	f.p.failDelete = false
	f.p.mu.Unlock()
	res, err := f.svc.Close(ctx, ch.ID, staffS2)
	require.NoError(t, err)
	f.svc.Wait()
	_, ok, err = f.svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "S", res.CreditedTo, "a retried close keeps the first credit")
	n, err := f.counts.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, res.Count)
	total, err := f.counts.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "one close, one credit")
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < 10; i++ {
		actor := model.Actor{ID: fmt.Sprintf("S%d", i), Roles: []string{"r-helper"}}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Claim(ctx, ch.ID, actor); err == nil {
				mu.Lock()
				winners = append(winners, actor.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	ticket, _, err := f.svc.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], ticket.Claimant())
}

func TestNonTicketChannelRejectedBeforeCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Claim(ctx, "general", requester)
	assert.ErrorIs(t, err, ErrNotTicketChannel)
	_, err = f.svc.Close(ctx, "general", requester)
	assert.ErrorIs(t, err, ErrNotTicketChannel)
	_, err = f.svc.Rename(ctx, "general", requester, "x")
	assert.ErrorIs(t, err, ErrNotTicketChannel)
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, "general", requester, "X"), ErrNotTicketChannel)
}

func TestCapabilitiesAreEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	_, err := f.svc.Claim(ctx, ch.ID, requester)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Claim(ctx, ch.ID, staffS)
	require.NoError(t, err)
	_, err = f.svc.Unclaim(ctx, ch.ID, staffS)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, ch.ID, staffS, "X"), ErrForbidden)
}

func TestUnclaimRequiresClaim(t *testing.T) {
	f := newFixture(t)
	ch := f.create(t, model.TicketSupport)
	_, err := f.svc.Unclaim(context.Background(), ch.ID, adminA)
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestClaimReconstructsMissingRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.p.mu.Lock()
	f.p.channels["orphan"] = model.ChannelInfo{ID: "orphan", Name: "appeals-x", Topic: "U9|Appeals", ParentID: "cat-appeal", ParentName: "Appeals"}
	f.p.mu.Unlock()

	ticket, err := f.svc.Claim(ctx, "orphan", staffS)
	require.NoError(t, err)
	assert.Equal(t, "U9", ticket.UserID)
	assert.Equal(t, "Unknown", ticket.Username)
	assert.Equal(t, model.TicketAppeal, ticket.Type)
	assert.Equal(t, "S", ticket.Claimant())

	_, err = f.svc.Rename(ctx, "missing", staffS, "x")
	assert.Error(t, err)
}

func TestRenameKeepsCategoryPrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketPlayerReport)

	name, err := f.svc.Rename(ctx, ch.ID, staffS, "Cheater Report")
	require.NoError(t, err)
	assert.Equal(t, "reports-cheater-report", name)

	info, err := f.p.Channel(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name)
}

func TestParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.create(t, model.TicketSupport)

	require.NoError(t, f.svc.AddParticipant(ctx, ch.ID, staffS, "X"))
	allow, _ := f.p.visible(ch.ID, "X")
	assert.True(t, allow)
	assert.Len(t, f.p.dms["X"], 1)

	require.NoError(t, f.svc.RemoveParticipant(ctx, ch.ID, adminA, "X"))
	allow, _ = f.p.visible(ch.ID, "X")
	assert.False(t, allow)

	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, ch.ID, adminA, "U"), ErrRequesterRemoval)
	allow, _ = f.p.visible(ch.ID, "U")
	assert.True(t, allow)
}

func TestTranscriptFormat(t *testing.T) {
	assert.Equal(t, "", Transcript(nil))
	assert.Equal(t, "a: 1\nb: 2", Transcript([]model.HistoryMessage{{AuthorName: "a", Content: "1"}, {AuthorName: "b", Content: "2"}}))
}

func TestRenamePrefix(t *testing.T) {
	assert.Equal(t, "support-", RenamePrefix(model.TicketSupport))
	assert.Equal(t, "media-", RenamePrefix(model.TicketMedia))
	assert.Equal(t, "appeals-", RenamePrefix(model.TicketAppeal))
	assert.Equal(t, "ticket-", RenamePrefix("other"))
}
