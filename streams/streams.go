// Package streams announces live streams and watches each stream URL until it
// stops answering 200 or its streamer ends it. Watchers live in memory only.
package streams

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"echo-helper/metrics"
	"echo-helper/model"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Minute

var (
	ErrInvalidURL = errors.New("please provide a valid URL")
	ErrNoStream   = errors.New("no active live stream found for you")
)

// Platform posts and edits announcement messages.
type Platform interface {
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
	EditNotice(ctx context.Context, channelID, messageID string, n model.Notice) error
}

// Prober reports whether a stream URL is still live.
type Prober interface {
	Probe(ctx context.Context, url string) (bool, error)
}

// HTTPProber treats anything but 200 OK as offline.
type HTTPProber struct {
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context, url string) (bool, error) {
	client := p.Client
	if client == nil {
		client = utils.ProbeClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Announcement is one watched live stream.
type Announcement struct {
	UserID    string
	Streamer  string
	Platform  string
	URL       string
	Title     string
	ChannelID string
	MessageID string
	StartedAt time.Time
}

type watcher struct {
	ann    Announcement
	cancel context.CancelFunc
}

type Service struct {
	platform  Platform
	prober    Prober
	channelID string
	interval  time.Duration
	now       func() time.Time

	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	watchers map[string]*watcher
	wg       sync.WaitGroup
}

func NewService(p Platform, prober Prober, channelID string, interval time.Duration, now func() time.Time) *Service {
	if prober == nil {
		prober = HTTPProber{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Service{
		platform:  p,
		prober:    prober,
		channelID: channelID,
		interval:  interval,
		now:       now,
		base:      base,
		stop:      stop,
		watchers:  make(map[string]*watcher),
	}
}

// ChannelID is the only channel /live and /end_live work in.
func (s *Service) ChannelID() string {
	return s.channelID
}

func startedNotice(a Announcement) model.Notice {
	return model.Notice{
		Title: "🎥 Live Stream Started",
		Body:  fmt.Sprintf("%s is now live on %s!", a.Streamer, a.Platform),
		Color: 0x00ff00,
		Fields: []model.NoticeField{
			{Name: "Platform", Value: a.Platform, Inline: true},
			{Name: "Streamer", Value: a.Streamer, Inline: true},
			{Name: "Title", Value: a.Title},
			{Name: "Watch Now", Value: "[Click here to watch](" + a.URL + ")"},
		},
	}
}

func endedNotice(a Announcement) model.Notice {
	return model.Notice{
		Title: "🎥 Live Stream Ended",
		Body:  fmt.Sprintf("%s's stream on %s has ended.", a.Streamer, a.Platform),
		Color: 0xff0000,
		Fields: []model.NoticeField{
			{Name: "Platform", Value: a.Platform, Inline: true},
			{Name: "Streamer", Value: a.Streamer, Inline: true},
			{Name: "Title", Value: a.Title},
		},
	}
}

// Start posts the announcement and begins probing. A streamer has at most
// one watched stream; starting again ends the previous one.
func (s *Service) Start(ctx context.Context, userID, streamer, platform, url, title string) (Announcement, error) {
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return Announcement{}, ErrInvalidURL
	}
	ann := Announcement{
		UserID:    userID,
		Streamer:  streamer,
		Platform:  platform,
		URL:       url,
		Title:     title,
		ChannelID: s.channelID,
		StartedAt: s.now(),
	}
	msgID, err := s.platform.SendNotice(ctx, s.channelID, startedNotice(ann))
	if err != nil {
		return Announcement{}, fmt.Errorf("post live announcement: %w", err)
	}
	ann.MessageID = msgID

	if prev, ok := s.take(userID, nil); ok {
		s.markEnded(ctx, prev)
	}

	wctx, cancel := context.WithCancel(s.base)
	w := &watcher{ann: ann, cancel: cancel}
	s.mu.Lock()
	s.watchers[userID] = w
	metrics.StreamWatchers.Set(float64(len(s.watchers)))
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watch(wctx, w)
	logger.Info("Live stream announced", zap.String("user", userID), zap.String("url", url))
	return ann, nil
}

// End marks the streamer's announcement as ended and stops its watcher.
func (s *Service) End(ctx context.Context, userID string) (Announcement, error) {
	ann, ok := s.take(userID, nil)
	if !ok {
		return Announcement{}, ErrNoStream
	}
	if err := s.platform.EditNotice(ctx, ann.ChannelID, ann.MessageID, endedNotice(ann)); err != nil {
		return ann, fmt.Errorf("edit live announcement: %w", err)
	}
	return ann, nil
}

// Active lists watched streams ordered by start time.
func (s *Service) Active() []Announcement {
	s.mu.Lock()
	out := make([]Announcement, 0, len(s.watchers))
	for _, w := range s.watchers {
		out = append(out, w.ann)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Close stops every watcher without editing announcements.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
	s.mu.Lock()
	s.watchers = make(map[string]*watcher)
	metrics.StreamWatchers.Set(0)
	s.mu.Unlock()
}

// take unregisters the user's watcher. When only is set, it succeeds only if
// that exact watcher is still registered, so an announcement is ended once.
func (s *Service) take(userID string, only *watcher) (Announcement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[userID]
	if !ok || (only != nil && w != only) {
		return Announcement{}, false
	}
	delete(s.watchers, userID)
	metrics.StreamWatchers.Set(float64(len(s.watchers)))
	w.cancel()
	return w.ann, true
}

func (s *Service) markEnded(ctx context.Context, ann Announcement) {
	if err := s.platform.EditNotice(ctx, ann.ChannelID, ann.MessageID, endedNotice(ann)); err != nil {
		logger.Warn("Failed to mark live stream ended", zap.String("user", ann.UserID), zap.Error(err))
	}
}

func (s *Service) watch(ctx context.Context, w *watcher) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			live, err := s.prober.Probe(ctx, w.ann.URL)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Info("Live stream probe failed", zap.String("url", w.ann.URL), zap.Error(err))
			}
			if live && err == nil {
				continue
			}
			if ann, ok := s.take(w.ann.UserID, w); ok {
				s.markEnded(context.WithoutCancel(ctx), ann)
			}
			return
		}
	}
}
