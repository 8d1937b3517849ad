package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
)

type quizFixture struct {
	ctx     context.Context
	clock   *fakeClock
	repos   Repositories
	session *models.Session
	ai      *fakeAI
	svc     *QuizService
}

func newQuizFixture(t *testing.T, ai *fakeAI) *quizFixture {
	t.Helper()
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	sess := createTestSession(ctx, repos, "calm-otter-01", clock.Now())
	builder := NewContextBuilder(repos.Sessions, repos.Transcript, repos.Questions, clock.Now)
	svc := NewQuizService(repos.Sessions, repos.Quizzes, builder, ai, nil, QuizConfig{
		LockLease:         2 * time.Minute,
		GenerationTimeout: 30 * time.Second,
		Now:               clock.Now,
	})
	return &quizFixture{ctx: ctx, clock: clock, repos: repos, session: sess, ai: ai, svc: svc}
}

func (f *quizFixture) lockHolder(t *testing.T) *uuid.UUID {
	t.Helper()
	sess, err := f.repos.Sessions.GetByID(f.ctx, f.session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess.QuizGenerationLockID
}

func (f *quizFixture) launch(t *testing.T) *models.Quiz {
	t.Helper()
	res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{QuestionCount: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("Expected launch to be accepted, got %+v", res)
	}
	return res.Quiz
}

func TestGenerateAndLaunchQuiz_Success(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))
	t0 := f.clock.Now()

	quiz := f.launch(t)

	if len(quiz.Questions) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(quiz.Questions))
	}
	if !quiz.CreatedAt.Equal(t0) {
		t.Errorf("Expected quiz anchored at %s, got %s", t0, quiz.CreatedAt)
	}
	if quiz.Questions[1].ConceptTag != defaultConceptTag {
		t.Errorf("Expected default concept tag, got %q", quiz.Questions[1].ConceptTag)
	}
	if f.lockHolder(t) != nil {
		t.Error("Expected lock released after launch")
	}

	active, err := f.svc.GetActiveQuiz(f.ctx, f.session.ID)
	if err != nil || active == nil || active.ID != quiz.ID {
		t.Errorf("Expected active quiz %s, got %+v (err %v)", quiz.ID, active, err)
	}
}

func TestGenerateAndLaunchQuiz_SingleFlight(t *testing.T) {
	const n = 8
	gate := make(chan struct{})
	ai := &fakeAI{fn: func(ctx context.Context, _ Feature, _ string) (string, error) {
		select {
		case <-gate:
			return twoQuestionQuiz, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	f := newQuizFixture(t, ai)

	results := make(chan *LaunchResult, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{})
			if err != nil {
				t.Errorf("generate: %v", err)
				res = &LaunchResult{Reason: "error"}
			}
			results <- res
		}()
	}

	// The winner is parked in the AI call; everyone else must be refused.
	for i := 0; i < n-1; i++ {
		res := <-results
		if res.Accepted || res.Reason != ReasonGenerationInProgress {
			t.Errorf("Expected refusal while generation is in flight, got %+v", res)
		}
	}
	close(gate)
	last := <-results

	if !last.Accepted {
		t.Fatalf("Expected the lock holder to be accepted, got %+v", last)
	}
	if calls := ai.calls(); calls != 1 {
		t.Errorf("Expected exactly one AI call, got %d", calls)
	}
}

func TestGenerationLock_StaleReleaseIsNoOp(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))

	tokenA, _, ok, err := f.svc.acquireLock(f.ctx, f.session.ID)
	if err != nil || !ok {
		t.Fatalf("acquire A: ok=%v err=%v", ok, err)
	}

	if _, _, ok, _ := f.svc.acquireLock(f.ctx, f.session.ID); ok {
		t.Fatal("Expected B to be refused while A holds a fresh lease")
	}

	f.clock.Advance(3 * time.Minute)
	tokenB, _, ok, _ := f.svc.acquireLock(f.ctx, f.session.ID)
	if !ok {
		t.Fatal("Expected B to supersede A's expired lease")
	}

	f.svc.releaseLock(f.ctx, f.session.ID, tokenA)

	holder := f.lockHolder(t)
	if holder == nil || *holder != tokenB {
		t.Errorf("Expected lock to remain with B, got %v", holder)
	}
}

func TestGenerateAndLaunchQuiz_SupersededGenerationDoesNotLaunch(t *testing.T) {
	var f *quizFixture
	var tokenB uuid.UUID
	ai := &fakeAI{fn: func(context.Context, Feature, string) (string, error) {
		// The lease runs out mid-generation and another caller takes over.
		f.clock.Advance(3 * time.Minute)
		tokenB, _, _, _ = f.svc.acquireLock(f.ctx, f.session.ID)
		return twoQuestionQuiz, nil
	}}
	f = newQuizFixture(t, ai)

	res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Accepted || res.Reason != ReasonLockSuperseded {
		t.Errorf("Expected superseded result, got %+v", res)
	}
	if active, _ := f.svc.GetActiveQuiz(f.ctx, f.session.ID); active != nil {
		t.Error("Expected no active quiz from a superseded generation")
	}
	if holder := f.lockHolder(t); holder == nil || *holder != tokenB {
		t.Errorf("Expected newer lock to survive, got %v", holder)
	}
}

func TestGenerateAndLaunchQuiz_GapFreeWindows(t *testing.T) {
	const midLine = "eigenvectors keep their direction"
	var f *quizFixture
	first := true
	ai := &fakeAI{fn: func(ctx context.Context, _ Feature, _ string) (string, error) {
		if first {
			first = false
			// Appended after T0 of the first quiz but before it is persisted.
			f.clock.Advance(2 * time.Second)
			f.repos.Transcript.Append(ctx, &models.TranscriptLine{SessionID: f.session.ID, Text: midLine}, f.clock.Now)
			f.clock.Advance(2 * time.Second)
		}
		return twoQuestionQuiz, nil
	}}
	f = newQuizFixture(t, ai)

	f.repos.Transcript.Append(f.ctx, &models.TranscriptLine{SessionID: f.session.ID, Text: "intro to matrices"}, stampAt(f.clock.Now().Add(-time.Minute)))

	quizN := f.launch(t)
	f.clock.Advance(time.Minute)
	quizN1 := f.launch(t)

	if !quizN1.CreatedAt.After(quizN.CreatedAt) {
		t.Fatal("Expected quizzes anchored in order")
	}
	if strings.Contains(f.ai.prompt(0), midLine) {
		t.Error("Expected the mid-generation line to be outside the first quiz's window")
	}
	if c := strings.Count(f.ai.prompt(1), midLine); c != 1 {
		t.Errorf("Expected the mid-generation line exactly once in the next quiz, got %d", c)
	}
	if strings.Contains(f.ai.prompt(1), "intro to matrices") {
		t.Error("Expected lines before the previous quiz anchor to be excluded")
	}
}

// stalledTranscript parks Append until release is closed, so an append can be
// held in flight across a quiz launch.
type stalledTranscript struct {
	TranscriptStore
	entered chan struct{}
	release chan struct{}
}

func (s *stalledTranscript) Append(ctx context.Context, line *models.TranscriptLine, now func() time.Time) error {
	close(s.entered)
	<-s.release
	return s.TranscriptStore.Append(ctx, line, now)
}

func TestGenerateAndLaunchQuiz_InFlightAppendLandsInExactlyOneQuiz(t *testing.T) {
	const racingLine = "determinants measure volume scaling"
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))
	stalled := &stalledTranscript{TranscriptStore: f.repos.Transcript, entered: make(chan struct{}), release: make(chan struct{})}
	transcript := NewTranscriptService(f.repos.Sessions, stalled, nil, "", f.clock.Now)

	appended := make(chan error, 1)
	go func() {
		_, err := transcript.AppendTranscriptLine(f.ctx, f.session.ID, racingLine)
		appended <- err
	}()
	<-stalled.entered

	f.clock.Advance(time.Second)
	f.launch(t)

	close(stalled.release)
	if err := <-appended; err != nil {
		t.Fatalf("append: %v", err)
	}

	f.clock.Advance(time.Minute)
	f.launch(t)

	seen := 0
	for i := 0; i < f.ai.calls(); i++ {
		seen += strings.Count(f.ai.prompt(i), racingLine)
	}
	if seen != 1 {
		t.Errorf("Expected the in-flight line in exactly one quiz, got %d", seen)
	}
}

func TestGenerateAndLaunchQuiz_SessionEndedDuringGeneration(t *testing.T) {
	var f *quizFixture
	ai := &fakeAI{fn: func(ctx context.Context, _ Feature, _ string) (string, error) {
		if err := f.repos.Sessions.End(ctx, f.session.ID); err != nil {
			return "", err
		}
		return twoQuestionQuiz, nil
	}}
	f = newQuizFixture(t, ai)

	res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Accepted || res.Reason != ReasonSessionEnded {
		t.Errorf("Expected session_ended refusal, got %+v", res)
	}

	sess, _ := f.repos.Sessions.GetByID(f.ctx, f.session.ID)
	if sess.ActiveQuizID != nil {
		t.Errorf("Expected ended session to have no active quiz, got %v", *sess.ActiveQuizID)
	}
	if sess.QuizGenerationLockID != nil {
		t.Error("Expected lock released after the refused launch")
	}
	if _, err := f.repos.Quizzes.LatestCreatedAt(f.ctx, f.session.ID); err == nil {
		t.Error("Expected no quiz persisted for an ended session")
	}
}

func TestGenerateAndLaunchQuiz_FailuresReleaseLock(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, Feature, string) (string, error)
	}{
		{"empty question array", func(context.Context, Feature, string) (string, error) { return `{"questions":[]}`, nil }},
		{"question missing field", func(context.Context, Feature, string) (string, error) {
			return `[{"prompt":"p","choices":["a","b"],"explanation":"x"}]`, nil
		}},
		{"not json", func(context.Context, Feature, string) (string, error) { return "I cannot help with that", nil }},
		{"provider error", func(context.Context, Feature, string) (string, error) { return "", errors.New("503 overloaded") }},
		{"provider panic", func(context.Context, Feature, string) (string, error) { panic("nil pointer in SDK") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newQuizFixture(t, &fakeAI{fn: tc.fn})

			res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{})
			if err != nil {
				t.Fatalf("Expected failure as a value, got error %v", err)
			}
			if res.Accepted || res.Reason != ReasonGenerationFailed || res.Error == "" {
				t.Errorf("Expected generation failure, got %+v", res)
			}
			if f.lockHolder(t) != nil {
				t.Error("Expected lock released after failure")
			}
			if active, _ := f.svc.GetActiveQuiz(f.ctx, f.session.ID); active != nil {
				t.Error("Expected no active quiz after failure")
			}

			// The session can generate again straight away.
			f.ai.fn = func(context.Context, Feature, string) (string, error) { return twoQuestionQuiz, nil }
			f.launch(t)
		})
	}
}

func TestGenerateAndLaunchQuiz_Refusals(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))

	var ve *ValidationError
	if _, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{QuestionCount: 50}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for question count, got %v", err)
	}
	if _, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{Difficulty: "brutal"}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for difficulty, got %v", err)
	}

	var nf *NotFoundError
	if _, err := f.svc.GenerateAndLaunchQuiz(f.ctx, uuid.New(), models.GenerateQuizRequest{}); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown session, got %v", err)
	}

	f.repos.Sessions.End(f.ctx, f.session.ID)
	res, err := f.svc.GenerateAndLaunchQuiz(f.ctx, f.session.ID, models.GenerateQuizRequest{})
	if err != nil || res.Accepted || res.Reason != ReasonSessionEnded {
		t.Errorf("Expected session_ended refusal, got %+v (err %v)", res, err)
	}
	if f.ai.calls() != 0 {
		t.Error("Expected no AI calls for refused requests")
	}
}

func TestSubmitQuiz_Idempotent(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))
	quiz := f.launch(t)

	res, err := f.svc.SubmitQuiz(f.ctx, quiz.ID, models.SubmitQuizRequest{StudentID: "amy", Answers: []int{1, 0}})
	if err != nil || !res.Success {
		t.Fatalf("Expected first submission to succeed, got %+v (err %v)", res, err)
	}

	res, err = f.svc.SubmitQuiz(f.ctx, quiz.ID, models.SubmitQuizRequest{StudentID: "amy", Answers: []int{0, 1}})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if res.Success || res.Reason != ReasonAlreadySubmitted {
		t.Errorf("Expected already_submitted, got %+v", res)
	}

	stats, _ := f.svc.GetQuizStats(f.ctx, quiz.ID)
	if stats.TotalResponses != 1 {
		t.Fatalf("Expected 1 response, got %d", stats.TotalResponses)
	}
	if stats.Questions[0].Distribution[1] != 1 || stats.Questions[0].Distribution[0] != 0 {
		t.Errorf("Expected stats to reflect only the first submission, got %+v", stats.Questions[0])
	}
}

func TestSubmitQuiz_Validation(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))
	quiz := f.launch(t)

	tests := []struct {
		name string
		req  models.SubmitQuizRequest
	}{
		{"missing student", models.SubmitQuizRequest{Answers: []int{0, 0}}},
		{"too few answers", models.SubmitQuizRequest{StudentID: "amy", Answers: []int{0}}},
		{"out of range", models.SubmitQuizRequest{StudentID: "amy", Answers: []int{3, 0}}},
		{"negative", models.SubmitQuizRequest{StudentID: "amy", Answers: []int{0, -1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SubmitQuiz(f.ctx, quiz.ID, tc.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}

	var nf *NotFoundError
	if _, err := f.svc.SubmitQuiz(f.ctx, uuid.New(), models.SubmitQuizRequest{StudentID: "amy", Answers: []int{0, 0}}); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown quiz, got %v", err)
	}
}

func TestCloseQuiz_KeepsResultsReadable(t *testing.T) {
	f := newQuizFixture(t, staticAI(twoQuestionQuiz))
	quiz := f.launch(t)
	f.svc.SubmitQuiz(f.ctx, quiz.ID, models.SubmitQuizRequest{StudentID: "amy", Answers: []int{1, 0}})

	if err := f.svc.CloseQuiz(f.ctx, f.session.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if active, _ := f.svc.GetActiveQuiz(f.ctx, f.session.ID); active != nil {
		t.Error("Expected no active quiz after close")
	}

	stats, err := f.svc.GetQuizStats(f.ctx, quiz.ID)
	if err != nil || stats.TotalResponses != 1 {
		t.Errorf("Expected stats to stay readable, got %+v (err %v)", stats, err)
	}

	res, _ := f.svc.SubmitQuiz(f.ctx, quiz.ID, models.SubmitQuizRequest{StudentID: "ben", Answers: []int{1, 0}})
	if res.Success || res.Reason != ReasonQuizClosed {
		t.Errorf("Expected quiz_closed, got %+v", res)
	}

	// A retry from a student who already answered still reports the duplicate.
	res, _ = f.svc.SubmitQuiz(f.ctx, quiz.ID, models.SubmitQuizRequest{StudentID: "amy", Answers: []int{1, 0}})
	if res.Success || res.Reason != ReasonAlreadySubmitted {
		t.Errorf("Expected already_submitted after close, got %+v", res)
	}
}

func TestComputeQuizStats_Accuracy(t *testing.T) {
	quiz := &models.Quiz{
		ID: uuid.New(),
		Questions: []models.QuizQuestion{
			{Prompt: "q1", Choices: []string{"a", "b", "c"}, CorrectIndex: 2},
			{Prompt: "q2", Choices: []string{"a", "b"}, CorrectIndex: 0},
		},
	}

	t.Run("no responses", func(t *testing.T) {
		stats := computeQuizStats(quiz, nil)
		for i, q := range stats.Questions {
			if q.Accuracy != 0 || q.CorrectCount != 0 {
				t.Errorf("question %d: expected zero accuracy, got %+v", i, q)
			}
			if len(q.Distribution) != len(quiz.Questions[i].Choices) {
				t.Errorf("question %d: expected one bucket per choice", i)
			}
		}
	})

	t.Run("out of range answers excluded", func(t *testing.T) {
		responses := []models.QuizResponse{
			{Answers: []int{2, 0}},
			{Answers: []int{2, 1}},
			{Answers: []int{0, 7}},
			{Answers: []int{-1, 0}},
		}
		stats := computeQuizStats(quiz, responses)

		q1 := stats.Questions[0]
		if q1.CorrectCount != 2 || q1.Accuracy != 0.5 {
			t.Errorf("q1: expected 2 correct of 4, got %+v", q1)
		}
		if q1.Distribution[0] != 1 || q1.Distribution[1] != 0 || q1.Distribution[2] != 2 {
			t.Errorf("q1: unexpected distribution %v", q1.Distribution)
		}

		q2 := stats.Questions[1]
		if q2.CorrectCount != 2 || q2.Accuracy != 0.5 {
			t.Errorf("q2: expected 2 correct of 4, got %+v", q2)
		}
		if q2.Distribution[0] != 2 || q2.Distribution[1] != 1 {
			t.Errorf("q2: unexpected distribution %v", q2.Distribution)
		}
	})
}

func TestGenerateAndLaunchQuiz_ConcurrentSessionsIndependent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	builder := NewContextBuilder(repos.Sessions, repos.Transcript, repos.Questions, clock.Now)
	svc := NewQuizService(repos.Sessions, repos.Quizzes, builder, staticAI(twoQuestionQuiz), nil, QuizConfig{Now: clock.Now})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		sess := createTestSession(ctx, repos, "code-"+uuid.NewString(), clock.Now())
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.GenerateAndLaunchQuiz(ctx, sess.ID, models.GenerateQuizRequest{})
			if err != nil || !res.Accepted {
				t.Errorf("session %s: expected accepted, got %+v (err %v)", sess.ID, res, err)
			}
		}()
	}
	wg.Wait()
}
