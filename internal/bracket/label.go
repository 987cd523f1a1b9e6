package bracket

import "fmt"

// PlaceholderLabel describes an unresolved slot, e.g. "Winner of Game 3".
// It returns "" for bound slots or when the source match is unknown.
func (g *Graph) PlaceholderLabel(s Slot) string {
	src, wantsWinner, ok := s.Placeholder()
	if !ok {
		return ""
	}
	source, ok := g.byMatch[src]
	if !ok {
		return ""
	}
	if wantsWinner {
		return fmt.Sprintf("Winner of Game %d", source.MatchNumber)
	}
	return fmt.Sprintf("Loser of Game %d", source.MatchNumber)
}
