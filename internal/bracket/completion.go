package bracket

import (
	"sort"

	"github.com/google/uuid"
)

type CompletionReport struct {
	Completed bool
	// Stalled brackets need an administrator: a cancelled match blocks the way to the final.
	Stalled  bool
	Blocked  []*Match
	Champion *Participant
	RunnerUp *Participant
}

type liveness uint8

const (
	live liveness = iota
	dead
	blocked
)

// DetectCompletion classifies every unsettled match. Dead matches (the unused reset)
// can never be played and are ignored; blocked matches wait on a cancelled match and
// keep the bracket open. When nothing is left the terminal match decides the placings.
func (g *Graph) DetectCompletion() (CompletionReport, error) {
	var report CompletionReport
	state := make(map[uuid.UUID]liveness, len(g.matches))
	outstanding := 0

	for _, m := range g.matches {
		if m.Status.Settled() {
			continue
		}
		st := live
		for _, s := range m.Slots() {
			src, _, ok := s.Placeholder()
			if !ok {
				continue
			}
			source := g.byMatch[src]
			switch {
			case source.Status == MatchCompleted || state[src] == dead:
				st = dead
			case source.Status == MatchCancelled || state[src] == blocked:
				if st != dead {
					st = blocked
				}
			}
		}
		state[m.ID] = st

		switch st {
		case live:
			outstanding++
		case blocked:
			report.Blocked = append(report.Blocked, m)
		}
	}

	terminal := g.terminalMatch()
	report.Stalled = len(report.Blocked) > 0 || (terminal != nil && terminal.Status == MatchCancelled)
	if report.Stalled != g.Bracket.Stalled {
		g.Bracket.Stalled = report.Stalled
		g.bracketDirty = true
	}

	if outstanding > 0 || report.Stalled || terminal == nil || terminal.Status != MatchCompleted {
		return report, nil
	}
	if err := g.finish(terminal, &report); err != nil {
		return report, err
	}
	return report, nil
}

// finish crowns the champion and hands out final positions. Everyone below the
// finalists is ranked by how late they were eliminated; ties share a position.
func (g *Graph) finish(terminal *Match, report *CompletionReport) error {
	winnerID := *terminal.WinnerParticipantID
	loserID, ok := terminal.Opponent(winnerID)
	if !ok {
		return Invariantf("terminal match %d has no loser", terminal.MatchNumber)
	}

	for _, p := range g.participants {
		if p.FinalPosition != nil {
			return Invariantf("participant %s already placed %d", p.ID, *p.FinalPosition)
		}
	}

	champion := g.byParticipant[winnerID]
	runnerUp := g.byParticipant[loserID]

	var rest []*Participant
	for _, p := range g.participants {
		if p == champion || p == runnerUp {
			continue
		}
		if p.EliminationRound == nil {
			return Invariantf("participant %s still in play after the final", p.ID)
		}
		rest = append(rest, p)
	}
	sort.SliceStable(rest, func(i, j int) bool { return *rest[i].EliminationRound > *rest[j].EliminationRound })

	place(champion, 1)
	place(runnerUp, 2)
	for i, p := range rest {
		pos := i + 3
		if i > 0 && *rest[i-1].EliminationRound == *p.EliminationRound {
			pos = *rest[i-1].FinalPosition
		}
		place(p, pos)
	}
	for _, p := range g.participants {
		g.touchParticipant(p)
	}

	g.Bracket.Status = StatusCompleted
	g.Bracket.ChampionParticipantID = &winnerID
	g.bracketDirty = true

	report.Completed = true
	report.Champion = champion
	report.RunnerUp = runnerUp
	return nil
}

func place(p *Participant, pos int) {
	p.FinalPosition = &pos
}
