package questions

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/mathrumble/mathrumble/internal/game/events"
)

// Difficulty levels accepted by the engine.
const (
	DifficultyEasy    = "easy"
	DifficultyMedium  = "medium"
	DifficultyHard    = "hard"
	DifficultyExtreme = "extreme"
)

// ValidDifficulty reports whether d names a known difficulty level.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExtreme:
		return true
	}
	return false
}

// TimeLimits maps a difficulty to the seconds a player gets per question.
type TimeLimits struct {
	Easy    int
	Medium  int
	Hard    int
	Extreme int
}

// DefaultTimeLimits returns the stock per-difficulty time limits.
func DefaultTimeLimits() TimeLimits {
	return TimeLimits{Easy: 15, Medium: 12, Hard: 10, Extreme: 7}
}

func (t TimeLimits) forDifficulty(d string) int {
	switch d {
	case DifficultyEasy:
		return t.Easy
	case DifficultyMedium:
		return t.Medium
	case DifficultyHard:
		return t.Hard
	case DifficultyExtreme:
		return t.Extreme
	}
	return 10
}

// Engine generates arithmetic questions by difficulty. Safe for concurrent
// use; math/rand.Rand is not, so the source is mutex-guarded.
type Engine struct {
	mu     sync.Mutex
	rng    *rand.Rand
	limits TimeLimits
}

// NewEngine creates an engine seeded from the given source. Pass a fixed
// seed for reproducible output.
func NewEngine(seed int64, limits TimeLimits) *Engine {
	return &Engine{
		rng:    rand.New(rand.NewSource(seed)),
		limits: limits,
	}
}

// Generate produces one question for the difficulty along with its expected
// answer. Unknown difficulties fall back to easy.
func (e *Engine) Generate(difficulty string) (events.Question, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var text string
	var answer float64
	switch difficulty {
	case DifficultyMedium:
		text, answer = e.addSub(10, 99)
	case DifficultyHard:
		text, answer = e.mulDiv()
	case DifficultyExtreme:
		text, answer = e.multiStep()
	default:
		difficulty = DifficultyEasy
		text, answer = e.addSub(1, 9)
	}

	return events.Question{
		ID:         uuid.New().String(),
		Question:   text,
		Difficulty: difficulty,
		TimeLimit:  e.limits.forDifficulty(difficulty),
	}, answer
}

// intn returns a uniform value in [lo, hi].
func (e *Engine) intn(lo, hi int) int {
	return lo + e.rng.Intn(hi-lo+1)
}

func (e *Engine) addSub(lo, hi int) (string, float64) {
	a := e.intn(lo, hi)
	b := e.intn(lo, hi)
	if e.rng.Intn(2) == 0 {
		return fmt.Sprintf("%d + %d", a, b), float64(a + b)
	}
	// Keep subtraction results non-negative.
	if b > a {
		a, b = b, a
	}
	return fmt.Sprintf("%d - %d", a, b), float64(a - b)
}

func (e *Engine) mulDiv() (string, float64) {
	if e.rng.Intn(2) == 0 {
		a := e.intn(2, 12)
		b := e.intn(2, 12)
		return fmt.Sprintf("%d × %d", a, b), float64(a * b)
	}
	b := e.intn(2, 12)
	result := e.intn(2, 12)
	a := b * result
	return fmt.Sprintf("%d ÷ %d", a, b), float64(result)
}

func (e *Engine) multiStep() (string, float64) {
	switch e.rng.Intn(4) {
	case 0:
		a := e.intn(2, 15)
		b := e.intn(2, 9)
		c := e.intn(1, 20)
		return fmt.Sprintf("(%d × %d) + %d", a, b, c), float64(a*b + c)
	case 1:
		a := e.intn(2, 15)
		b := e.intn(2, 9)
		c := e.intn(1, 20)
		return fmt.Sprintf("(%d × %d) - %d", a, b, c), float64(a*b - c)
	case 2:
		b := e.intn(2, 9)
		quotient := e.intn(2, 12)
		a := b * quotient
		c := e.intn(1, 20)
		return fmt.Sprintf("(%d ÷ %d) + %d", a, b, c), float64(quotient + c)
	default:
		a := e.intn(2, 9)
		b := e.intn(2, 9)
		c := e.intn(2, 9)
		return fmt.Sprintf("%d × %d × %d", a, b, c), float64(a * b * c)
	}
}
