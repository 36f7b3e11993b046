package assessment

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studydesk/internal/progress"
)

// DefaultWorkDelay is how long a simulated generation run takes.
const DefaultWorkDelay = 3 * time.Second

// Options configures a Generator.
type Options struct {
	Policy      progress.Policy
	WorkDelay   time.Duration
	Sources     SourceResolver
	Listener    progress.Listener
	BaseContext context.Context
	MaxActive   int
}

// Generator runs simulated generation jobs on a progress board. Each
// assessment shares its id with the board item that tracks it.
type Generator struct {
	board   *progress.Board
	sources SourceResolver
	delay   time.Duration

	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	spec      Spec
	source    Source
	questions []Question
}

// NewGenerator returns a Generator with an empty board.
func NewGenerator(opts Options) (*Generator, error) {
	board, err := progress.NewBoard(progress.Options{
		Policy:      opts.Policy,
		MaxActive:   opts.MaxActive,
		Listener:    opts.Listener,
		BaseContext: opts.BaseContext,
		Name:        "assessments",
	})
	if err != nil {
		return nil, err
	}
	delay := opts.WorkDelay
	if delay < 0 {
		delay = 0
	}
	return &Generator{
		board:   board,
		sources: opts.Sources,
		delay:   delay,
		records: make(map[string]*record),
	}, nil
}

// Generate validates spec and starts a generation run. A *ValidationError is
// returned, and nothing is created, when the spec cannot be used.
func (g *Generator) Generate(spec Spec) (Assessment, error) {
	spec, src, err := normalize(spec, g.sources)
	if err != nil {
		return Assessment{}, err
	}

	rec := &record{spec: spec, source: src}
	// the record is registered under the lock before the work can store
	// questions into it
	g.mu.Lock()
	defer g.mu.Unlock()
	item, err := g.board.Submit(progress.ItemSpec{Label: src.Name}, g.work(rec))
	if err != nil {
		return Assessment{}, err
	}
	g.records[item.ID] = rec

	log.Info().Str("assessment_id", item.ID).Str("source_id", src.ID).Int("count", spec.Count).
		Str("difficulty", string(spec.Difficulty)).Msg("assessment generation started")
	return g.snapshot(item, rec), nil
}

func (g *Generator) work(rec *record) progress.Work {
	wait := progress.Sleep(g.delay)
	return func(ctx context.Context) error {
		if err := wait(ctx); err != nil {
			return err
		}
		questions := buildQuestions(rec.spec)
		g.mu.Lock()
		rec.questions = questions
		g.mu.Unlock()
		return nil
	}
}

// Get returns the assessment with the given id.
func (g *Generator) Get(id string) (Assessment, error) {
	item, ok := g.board.Get(id)
	if !ok {
		return Assessment{}, ErrAssessmentNotFound
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[id]
	if !ok {
		return Assessment{}, ErrAssessmentNotFound
	}
	return g.snapshot(item, rec), nil
}

// List returns all assessments in creation order.
func (g *Generator) List() []Assessment {
	items := g.board.List()
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Assessment, 0, len(items))
	for _, item := range items {
		if rec, ok := g.records[item.ID]; ok {
			out = append(out, g.snapshot(item, rec))
		}
	}
	return out
}

// Fail aborts a running generation.
func (g *Generator) Fail(id, reason string) (Assessment, error) {
	if _, err := g.board.Fail(id, reason); err != nil {
		return Assessment{}, err
	}
	return g.Get(id)
}

// Remove drops an assessment and stops its run. It reports whether it existed.
func (g *Generator) Remove(id string) bool {
	removed := g.board.Remove(id)
	g.mu.Lock()
	delete(g.records, id)
	g.mu.Unlock()
	return removed
}

// Dispose stops every run and waits for them, see progress.Board.Dispose.
func (g *Generator) Dispose(ctx context.Context) bool {
	done := g.board.Dispose(ctx)
	g.mu.Lock()
	g.records = make(map[string]*record)
	g.mu.Unlock()
	return done
}

// snapshot copies the record so callers never share question slices.
// Questions are only exposed once the run completed. Callers hold g.mu.
func (g *Generator) snapshot(item progress.Item, rec *record) Assessment {
	spec := rec.spec
	spec.QuestionTypes = append([]QuestionType(nil), rec.spec.QuestionTypes...)
	a := Assessment{
		ID:         item.ID,
		SourceID:   rec.source.ID,
		SourceName: rec.source.Name,
		Spec:       spec,
		Stage:      item.Stage,
		Progress:   item.Progress,
		Error:      item.Error,
		Questions:  []Question{},
		CreatedAt:  item.CreatedAt,
	}
	if item.Stage == progress.StageCompleted {
		for _, q := range rec.questions {
			a.Questions = append(a.Questions, q.clone())
		}
	}
	return a
}
