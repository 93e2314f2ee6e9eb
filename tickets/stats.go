package tickets

import (
	"context"
	"fmt"

	"echo-helper/model"
	"echo-helper/moderation"
)

// Stats summarizes active and closed tickets.
type Stats struct {
	Active       map[model.TicketType]int
	ActiveTotal  int
	Claimed      int
	Closed       int
	ClosedByType map[model.TicketType]int
	TopClosers   []moderation.Entry
}

// Stats reads the ticket store and the close counters.
func (s *Service) Stats(ctx context.Context, topN int) (Stats, error) {
	active, err := s.tickets.All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load tickets: %w", err)
	}
	closed, err := s.closed.All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load closed tickets: %w", err)
	}

	st := Stats{
		Active:       make(map[model.TicketType]int, len(model.TicketTypes)),
		ClosedByType: make(map[model.TicketType]int, len(model.TicketTypes)),
	}
	for _, t := range active {
		if t.Closing {
			continue
		}
		st.Active[t.Type]++
		st.ActiveTotal++
		if t.Claimed() {
			st.Claimed++
		}
	}
	for _, c := range closed {
		st.ClosedByType[c.Type]++
		st.Closed++
	}
	if s.counts != nil {
		if st.TopClosers, err = s.counts.Top(ctx, topN); err != nil {
			return st, fmt.Errorf("load close counters: %w", err)
		}
	}
	return st, nil
}
