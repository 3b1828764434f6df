package app

import (
	"fmt"
	"math/rand"
	"slices"

	"cosmotablas-service/internal/domain"
)

// DefaultChallengeSlots is the number of questions in a challenge session.
const DefaultChallengeSlots = 8

// SelectChallengeQuestions builds a remedial session from ranked mistakes.
// The top slotCount weak spots are repeated round-robin until every slot is
// filled, then the set is shuffled. No mistakes means no challenge.
func SelectChallengeQuestions(mistakes []domain.MistakeEntry, slotCount int, rnd *rand.Rand) []domain.Question {
	pool := make([]domain.QuestionKey, 0, len(mistakes))
	for _, m := range mistakes {
		if domain.ValidQuestion(m.Key()) {
			pool = append(pool, m.Key())
		}
	}
	if len(pool) == 0 || slotCount <= 0 {
		return []domain.Question{}
	}
	if len(pool) > slotCount {
		pool = pool[:slotCount]
	}

	filled := make([]domain.QuestionKey, slotCount)
	for i := range filled {
		filled[i] = pool[i%len(pool)]
	}

	cyclic := append([]domain.QuestionKey(nil), filled...)
	swap := func(i, j int) { filled[i], filled[j] = filled[j], filled[i] }
	shuffle := rand.Shuffle
	if rnd != nil {
		shuffle = rnd.Shuffle
	}
	shuffle(len(filled), swap)
	// The round-robin order itself never counts as shuffled.
	for hasDistinct(pool) && slices.Equal(filled, cyclic) {
		shuffle(len(filled), swap)
	}

	questions := make([]domain.Question, len(filled))
	for i, k := range filled {
		questions[i] = domain.Question{
			ID:         fmt.Sprintf("%d-%d-%d", k.Table, k.Multiplier, i),
			Table:      k.Table,
			Multiplier: k.Multiplier,
			Answer:     k.Table * k.Multiplier,
		}
	}
	return questions
}

func hasDistinct(keys []domain.QuestionKey) bool {
	for _, k := range keys[1:] {
		if k != keys[0] {
			return true
		}
	}
	return false
}
