package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository/memstore"
)

var (
	_ SessionStore    = (*memstore.SessionRepo)(nil)
	_ StudentStore    = (*memstore.StudentRepo)(nil)
	_ TranscriptStore = (*memstore.TranscriptRepo)(nil)
	_ QuizStore       = (*memstore.QuizRepo)(nil)
	_ QuestionStore   = (*memstore.QuestionRepo)(nil)
	_ LostEventStore  = (*memstore.LostEventRepo)(nil)
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestRepos() Repositories {
	store := memstore.New()
	return Repositories{
		Sessions:   store.Sessions(),
		Students:   store.Students(),
		Transcript: store.Transcript(),
		Quizzes:    store.Quizzes(),
		Questions:  store.Questions(),
		LostEvents: store.LostEvents(),
	}
}

// stampAt is a clock frozen at t, for seeding rows at fixed times.
func stampAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeAI answers every call through fn and records the prompts it saw.
type fakeAI struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, feature Feature, prompt string) (string, error)
}

func (a *fakeAI) GenerateText(ctx context.Context, feature Feature, prompt string) (string, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
	return a.fn(ctx, feature, prompt)
}

func (a *fakeAI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}

func (a *fakeAI) prompt(i int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompts[i]
}

func staticAI(text string) *fakeAI {
	return &fakeAI{fn: func(context.Context, Feature, string) (string, error) { return text, nil }}
}

const twoQuestionQuiz = `{"questions":[
	{"prompt":"What is a vector?","choices":["A magnitude","A magnitude and direction","A scalar"],"correct_index":1,"explanation":"Vectors carry direction.","concept_tag":"vectors"},
	{"prompt":"Is 0 a scalar?","choices":["Yes","No"],"correct_index":0,"explanation":"Zero is a number."}
]}`

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (s *recordingScheduler) Enqueue(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = uuid.New()
	job.MaxRetries = 3
	s.jobs = append(s.jobs, *job)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (p *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func createTestSession(ctx context.Context, repos Repositories, code string, now time.Time) *models.Session {
	sess := &models.Session{ID: uuid.New(), Code: code, CreatedAt: now}
	if err := repos.Sessions.Create(ctx, sess); err != nil {
		panic(err)
	}
	return sess
}

func testSessionID() uuid.UUID { return uuid.MustParse("00000000-0000-0000-0000-00000000beef") }
