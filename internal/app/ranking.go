package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Grade reports whether the submitted option is the question's correct option.
func Grade(q domain.Question, optionID string) bool {
	return optionID != "" && optionID == q.CorrectOptionID
}

// Rank orders participants by score descending, then nickname ascending, and assigns
// contiguous 1-based positions. Equal scores still get distinct positions.
func Rank(participants []domain.Participant) []domain.RankEntry {
	entries := make([]domain.RankEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.RankEntry{
			ID:       p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Nickname != entries[j].Nickname {
			return entries[i].Nickname < entries[j].Nickname
		}
		return entries[i].ID < entries[j].ID
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

// CorrectParticipants lists the current participants whose answer was correct, by nickname.
func CorrectParticipants(answers map[string]domain.Answer, participants map[string]*domain.Participant) []domain.ParticipantRef {
	refs := make([]domain.ParticipantRef, 0, len(answers))
	for participantID, a := range answers {
		if !a.Correct {
			continue
		}
		p, ok := participants[participantID]
		if !ok {
			continue
		}
		refs = append(refs, domain.ParticipantRef{ID: p.ID, Nickname: p.Nickname})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Nickname != refs[j].Nickname {
			return refs[i].Nickname < refs[j].Nickname
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}
