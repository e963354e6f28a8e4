// Package shuffle produces seeded, reproducible presentation orders for exam
// questions and their options.
package shuffle

import (
	"sort"

	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// Rand is the linear-congruential generator behind every permutation.
// The same seed always yields the same sequence.
type Rand struct {
	seed int64
}

// NewRand returns a generator for seed. Any int64 is accepted; it is reduced
// into the generator's range first.
func NewRand(seed int64) *Rand {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	return &Rand{seed: s}
}

// Float64 advances the generator and returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	r.seed = (r.seed*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.seed) / lcgModulus
}

// Perm returns a permutation of [0, n) using Fisher-Yates driven by seed.
func Perm(n int, seed int64) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	r := NewRand(seed)
	for i := n - 1; i > 0; i-- {
		j := int(r.Float64() * float64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// Policy selects which parts of an exam are shuffled.
type Policy struct {
	Questions bool
	Options   bool
}

// PolicyFor returns the shuffle policy configured on an exam.
func PolicyFor(e *model.Exam) Policy {
	return Policy{Questions: e.ShuffleQuestions, Options: e.ShuffleOptions}
}

// OptionSeed derives the independent seed for one question's options.
func OptionSeed(sessionSeed int64, orderIndex int) int64 {
	return sessionSeed + int64(orderIndex) + 1
}

// Options permutes a question's options and remaps the correct index to the
// option's new position. order maps presented position to original index.
func Options(options []string, answer int, seed int64) (presented []string, order []int, remapped int) {
	order = Perm(len(options), seed)
	presented = make([]string, len(options))
	remapped = -1
	for pos, orig := range order {
		presented[pos] = options[orig]
		if orig == answer {
			remapped = pos
		}
	}
	return presented, order, remapped
}

// Present builds the presented question list for one session. Questions are
// first put in order_index order; the policy then decides what moves. The
// input slice is not modified.
func Present(questions []model.Question, policy Policy, seed int64) []model.PresentedQuestion {
	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	if policy.Questions {
		perm := Perm(len(ordered), seed)
		shuffled := make([]model.Question, len(ordered))
		for pos, orig := range perm {
			shuffled[pos] = ordered[orig]
		}
		ordered = shuffled
	}

	out := make([]model.PresentedQuestion, len(ordered))
	for i, q := range ordered {
		pq := model.PresentedQuestion{
			QuestionID:   q.ID,
			QuestionText: q.QuestionText,
			Explanation:  q.Explanation,
			OrderIndex:   q.OrderIndex,
		}
		if policy.Options {
			pq.Options, pq.OptionOrder, pq.Answer = Options(q.Options, q.Answer, OptionSeed(seed, q.OrderIndex))
		} else {
			pq.Options = append([]string(nil), q.Options...)
			pq.OptionOrder = identity(len(q.Options))
			pq.Answer = q.Answer
		}
		out[i] = pq
	}
	return out
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}
