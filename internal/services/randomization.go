package services

import (
	"hash/fnv"
	"log/slog"
	"math/rand"
)

// PermuteIDs returns a deterministic permutation of ids for the given
// seed. The input slice is never mutated; equal inputs always produce
// the same output, which is what lets a stored seed reproduce the order
// a student originally saw.
func PermuteIDs(ids []string, seed int64) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// OptionSeed derives a per-question seed from the submission seed so
// each question's option shuffle is independent but still replayable.
func OptionSeed(seed int64, questionID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(questionID))
	return seed ^ int64(h.Sum64())
}

// replayOrder filters a persisted order down to ids that still exist.
// Questions removed from the paper after the attempt started are
// dropped from the replayed view rather than failing the request; the
// drop is logged so instructors can explain score gaps.
func replayOrder(persisted []string, existing map[string]struct{}, logger *slog.Logger, submissionID string) []string {
	out := make([]string, 0, len(persisted))
	for _, id := range persisted {
		if _, ok := existing[id]; ok {
			out = append(out, id)
			continue
		}
		logger.Warn("Dropping missing question from persisted order",
			"submission_id", submissionID,
			"question_id", id)
	}
	return out
}
