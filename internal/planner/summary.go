package planner

import (
	"math"

	"github.com/roach88/wedplan/internal/entity"
)

// Summary is the dashboard view derived from every collection.
type Summary struct {
	Tasks      TaskSummary      `json:"tasks"`
	Milestones MilestoneSummary `json:"milestones"`
	Guests     GuestSummary     `json:"guests"`
	Budget     BudgetSummary    `json:"budget"`
	Venues     map[string]int   `json:"venues"`
	Ideas      IdeaSummary      `json:"ideas"`
}

// TaskSummary counts checklist progress. Progress is a whole percentage.
type TaskSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Progress  int `json:"progress"`
}

// MilestoneSummary counts timeline items; Next is the earliest milestone
// not yet done.
type MilestoneSummary struct {
	Total int               `json:"total"`
	Done  int               `json:"done"`
	Next  *entity.Milestone `json:"next,omitempty"`
}

// GuestSummary counts invitations and people. Headcount includes
// companions; ByRSVP is headcount per answer.
type GuestSummary struct {
	Invitations int            `json:"invitations"`
	Headcount   int            `json:"headcount"`
	ByRSVP      map[string]int `json:"byRSVP"`
}

// BudgetSummary totals the budget lines against the target. Committed
// uses the actual amount when known and the estimate otherwise.
type BudgetSummary struct {
	Target    float64 `json:"target"`
	Estimated float64 `json:"estimated"`
	Committed float64 `json:"committed"`
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
	Over      bool    `json:"over"`
}

// IdeaSummary counts mood-board cards.
type IdeaSummary struct {
	Total     int `json:"total"`
	Favorites int `json:"favorites"`
}

// Summary computes the dashboard from the current snapshots.
func (a *App) Summary() Summary {
	return Summarize(
		a.Tasks.Snapshot(),
		a.Milestones.Snapshot(),
		a.Guests.Snapshot(),
		a.Ideas.Snapshot(),
		a.Venues.Snapshot(),
		a.Budget.Snapshot(),
		a.Target.Get(),
	)
}

// Summarize computes a Summary. Milestones are expected in display order.
func Summarize(
	tasks []entity.Task,
	milestones []entity.Milestone,
	guests []entity.Guest,
	ideas []entity.Idea,
	venues []entity.Venue,
	budget []entity.BudgetItem,
	target entity.BudgetTarget,
) Summary {
	var s Summary

	s.Tasks.Total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			s.Tasks.Completed++
		}
	}
	s.Tasks.Pending = s.Tasks.Total - s.Tasks.Completed
	if s.Tasks.Total > 0 {
		s.Tasks.Progress = int(math.Round(float64(s.Tasks.Completed) * 100 / float64(s.Tasks.Total)))
	}

	s.Milestones.Total = len(milestones)
	for _, m := range milestones {
		if m.Status == "hecho" {
			s.Milestones.Done++
			continue
		}
		if s.Milestones.Next == nil {
			next := m.Clone()
			s.Milestones.Next = &next
		}
	}

	s.Guests.Invitations = len(guests)
	s.Guests.ByRSVP = make(map[string]int, len(entity.GuestRSVPs.Options))
	for _, v := range entity.GuestRSVPs.Values() {
		s.Guests.ByRSVP[v] = 0
	}
	for _, g := range guests {
		n := g.Headcount()
		s.Guests.Headcount += n
		s.Guests.ByRSVP[g.RSVP] += n
	}

	s.Venues = make(map[string]int, len(entity.VenueStatuses.Options))
	for _, v := range entity.VenueStatuses.Values() {
		s.Venues[v] = 0
	}
	for _, v := range venues {
		s.Venues[v.Status]++
	}

	s.Ideas.Total = len(ideas)
	for _, i := range ideas {
		if i.Favorite {
			s.Ideas.Favorites++
		}
	}

	s.Budget.Target = target.Amount
	for _, b := range budget {
		s.Budget.Estimated += b.Estimated
		s.Budget.Committed += b.Cost()
		if b.Paid {
			s.Budget.Paid += b.Cost()
		}
	}
	s.Budget.Estimated = cents(s.Budget.Estimated)
	s.Budget.Committed = cents(s.Budget.Committed)
	s.Budget.Paid = cents(s.Budget.Paid)
	s.Budget.Remaining = cents(s.Budget.Target - s.Budget.Committed)
	s.Budget.Over = s.Budget.Target > 0 && s.Budget.Committed > s.Budget.Target

	return s
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
