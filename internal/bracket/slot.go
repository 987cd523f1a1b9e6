package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

type slotKind uint8

const (
	slotUnset slotKind = iota
	slotBound
	slotPlaceholder
)

// Slot is one side of a match: either Bound to a participant or a Placeholder
// that takes the winner or loser of an earlier match.
type Slot struct {
	kind        slotKind
	participant uuid.UUID
	source      uuid.UUID
	wantsWinner bool
}

func BoundSlot(participantID uuid.UUID) Slot {
	return Slot{kind: slotBound, participant: participantID}
}

func PlaceholderSlot(sourceMatchID uuid.UUID, wantsWinner bool) Slot {
	return Slot{kind: slotPlaceholder, source: sourceMatchID, wantsWinner: wantsWinner}
}

func (s Slot) IsBound() bool       { return s.kind == slotBound }
func (s Slot) IsPlaceholder() bool { return s.kind == slotPlaceholder }
func (s Slot) IsZero() bool        { return s.kind == slotUnset }

func (s Slot) Participant() (uuid.UUID, bool) {
	if s.kind != slotBound {
		return uuid.Nil, false
	}
	return s.participant, true
}

func (s Slot) Placeholder() (sourceMatchID uuid.UUID, wantsWinner bool, ok bool) {
	if s.kind != slotPlaceholder {
		return uuid.Nil, false, false
	}
	return s.source, s.wantsWinner, true
}

// FedBy reports whether the slot is still waiting on the given match.
func (s Slot) FedBy(matchID uuid.UUID) bool {
	return s.kind == slotPlaceholder && s.source == matchID
}

// bind resolves a placeholder. Bound slots are never rebound.
func (s *Slot) bind(participantID uuid.UUID) error {
	if s.kind != slotPlaceholder {
		return Invariantf("slot already bound to %s", s.participant)
	}
	*s = BoundSlot(participantID)
	return nil
}

func (s Slot) String() string {
	switch s.kind {
	case slotBound:
		return "participant " + s.participant.String()
	case slotPlaceholder:
		if s.wantsWinner {
			return fmt.Sprintf("winner of %s", s.source)
		}
		return fmt.Sprintf("loser of %s", s.source)
	}
	return "unset"
}
