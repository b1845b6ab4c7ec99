package challenge

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PromptHandle points at the chat message that carries a challenge.
type PromptHandle struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the handle refers to no message.
func (p PromptHandle) IsZero() bool {
	return p.ChatID == 0 && p.MessageID == 0
}

// Challenge is one outstanding arithmetic question bound to a single subject.
type Challenge struct {
	ID          string
	Subject     int64
	SubjectName string
	OriginChat  int64

	Operands [2]int
	Expected int
	Decoys   []int
	// Options holds Expected and Decoys in presentation order.
	Options []int

	IssuedAt time.Time
	Deadline time.Time
	Prompt   PromptHandle
}

// Question renders the arithmetic the subject has to solve.
func (c Challenge) Question() string {
	return fmt.Sprintf("%d + %d", c.Operands[0], c.Operands[1])
}

// Expired reports whether the deadline has been reached at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.Deadline)
}

// IsCorrect reports whether value is the expected answer.
func (c Challenge) IsCorrect(value int) bool {
	return value == c.Expected
}

// Params bounds challenge generation.
type Params struct {
	OperandMin int
	OperandMax int
	DecoyMin   int
	DecoyMax   int
	DecoyCount int
	Window     time.Duration
}

// DefaultParams returns the stock ranges: operands 1-9, two decoys in 2-19,
// five minute window.
func DefaultParams() Params {
	return Params{
		OperandMin: 1,
		OperandMax: 9,
		DecoyMin:   2,
		DecoyMax:   19,
		DecoyCount: 2,
		Window:     5 * time.Minute,
	}
}

func (p Params) validate() error {
	if p.OperandMin < 1 || p.OperandMax < p.OperandMin {
		return fmt.Errorf("invalid operand range [%d, %d]", p.OperandMin, p.OperandMax)
	}
	if p.DecoyCount < 1 {
		return fmt.Errorf("decoy count must be at least 1, got %d", p.DecoyCount)
	}
	if p.DecoyMax-p.DecoyMin < p.DecoyCount {
		return fmt.Errorf("decoy range [%d, %d] cannot supply %d distinct decoys",
			p.DecoyMin, p.DecoyMax, p.DecoyCount)
	}
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	return nil
}

// Generator builds challenges. It is safe for concurrent use.
type Generator struct {
	params Params

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. A nil rng gets a randomly seeded source.
func NewGenerator(params Params, rng *rand.Rand) (*Generator, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("challenge params: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		params: params,
		rng:    rng,
	}, nil
}

// Window returns the restriction window applied to new challenges.
func (g *Generator) Window() time.Duration {
	return g.params.Window
}

// New generates a challenge for subject joining chat at now.
func (g *Generator) New(subject int64, name string, chat int64, now time.Time) Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := g.between(g.params.OperandMin, g.params.OperandMax)
	b := g.between(g.params.OperandMin, g.params.OperandMax)
	expected := a + b

	seen := map[int]struct{}{expected: {}}
	decoys := make([]int, 0, g.params.DecoyCount)
	for len(decoys) < g.params.DecoyCount {
		d := g.between(g.params.DecoyMin, g.params.DecoyMax)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		decoys = append(decoys, d)
	}

	options := make([]int, 0, len(decoys)+1)
	options = append(options, expected)
	options = append(options, decoys...)
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Challenge{
		ID:          uuid.NewString(),
		Subject:     subject,
		SubjectName: name,
		OriginChat:  chat,
		Operands:    [2]int{a, b},
		Expected:    expected,
		Decoys:      decoys,
		Options:     options,
		IssuedAt:    now,
		Deadline:    now.Add(g.params.Window),
	}
}

// between draws uniformly from [lo, hi]. Caller holds g.mu.
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}
