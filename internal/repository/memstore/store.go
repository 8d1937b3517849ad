// Package memstore is an in-process implementation of the session store. Every
// operation runs inside one critical section, which gives the same
// single-record atomicity the Postgres repositories rely on.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
)

type studentKey struct {
	sessionID uuid.UUID
	studentID string
}

type responseKey struct {
	quizID    uuid.UUID
	studentID string
}

type Store struct {
	mu sync.Mutex

	sessions    map[uuid.UUID]*models.Session
	students    map[studentKey]*models.Student
	transcript  map[uuid.UUID][]models.TranscriptLine
	quizzes     map[uuid.UUID]*models.Quiz
	responses   map[responseKey]*models.QuizResponse
	lostEvents  map[uuid.UUID][]models.LostEvent
	questions   map[uuid.UUID]*models.Question
	jobs        map[uuid.UUID]*models.Job
	quizOrder   map[uuid.UUID][]uuid.UUID
	questionIDs map[uuid.UUID][]uuid.UUID
}

func New() *Store {
	return &Store{
		sessions:    make(map[uuid.UUID]*models.Session),
		students:    make(map[studentKey]*models.Student),
		transcript:  make(map[uuid.UUID][]models.TranscriptLine),
		quizzes:     make(map[uuid.UUID]*models.Quiz),
		responses:   make(map[responseKey]*models.QuizResponse),
		lostEvents:  make(map[uuid.UUID][]models.LostEvent),
		questions:   make(map[uuid.UUID]*models.Question),
		jobs:        make(map[uuid.UUID]*models.Job),
		quizOrder:   make(map[uuid.UUID][]uuid.UUID),
		questionIDs: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }
func (s *Store) Students() *StudentRepo { return &StudentRepo{s: s} }
func (s *Store) Transcript() *TranscriptRepo { return &TranscriptRepo{s: s} }
func (s *Store) Quizzes() *QuizRepo { return &QuizRepo{s: s} }
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{s: s} }
func (s *Store) LostEvents() *LostEventRepo { return &LostEventRepo{s: s} }
func (s *Store) Jobs() *JobRepo { return &JobRepo{s: s} }

// insertChrono inserts v into a slice kept sorted by created_at. Equal
// timestamps keep insertion order.
func insertChrono[T any](items []T, v T, at func(T) time.Time) []T {
	i := sort.Search(len(items), func(i int) bool { return at(items[i]).After(at(v)) })
	items = append(items, v)
	copy(items[i+1:], items[i:])
	items[i] = v
	return items
}

// newest keeps the last limit elements; limit <= 0 keeps all.
func newest[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[len(items)-limit:]
	}
	return items
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	if s.ContextText != nil {
		v := *s.ContextText
		c.ContextText = &v
	}
	if s.ActiveQuizID != nil {
		v := *s.ActiveQuizID
		c.ActiveQuizID = &v
	}
	if s.QuizGenerationLockID != nil {
		v := *s.QuizGenerationLockID
		c.QuizGenerationLockID = &v
	}
	if s.QuizGenerationLockAt != nil {
		v := *s.QuizGenerationLockAt
		c.QuizGenerationLockAt = &v
	}
	return &c
}

func cloneStudent(st *models.Student) *models.Student {
	c := *st
	if st.LostSummary != nil {
		v := *st.LostSummary
		c.LostSummary = &v
	}
	if st.LostSummaryAt != nil {
		v := *st.LostSummaryAt
		c.LostSummaryAt = &v
	}
	return &c
}

func cloneQuiz(q *models.Quiz) *models.Quiz {
	c := *q
	c.Questions = make([]models.QuizQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Choices = append([]string(nil), qq.Choices...)
		c.Questions[i] = qq
	}
	return &c
}

func cloneQuestion(q *models.Question) models.Question {
	c := *q
	if q.Answer != nil {
		v := *q.Answer
		c.Answer = &v
	}
	return c
}
