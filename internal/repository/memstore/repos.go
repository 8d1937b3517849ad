package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository"
)

// SessionRepo

type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, sess *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.sessions {
		if existing.Code == sess.Code {
			return repository.ErrDuplicate
		}
	}
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	sess.Status = models.SessionStatusLive
	r.s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (r *SessionRepo) GetByCode(_ context.Context, code string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, sess := range r.s.sessions {
		if sess.Code == code {
			return cloneSession(sess), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SessionRepo) CodeExists(_ context.Context, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, sess := range r.s.sessions {
		if sess.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *SessionRepo) End(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.Status = models.SessionStatusEnded
	sess.ActiveQuizID = nil
	return nil
}

func (r *SessionRepo) SetContextText(_ context.Context, id uuid.UUID, text string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.ContextText = &text
	return nil
}

func (r *SessionRepo) AcquireGenerationLock(_ context.Context, id, token uuid.UUID, now, staleBefore time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if sess.QuizGenerationLockID != nil && sess.QuizGenerationLockAt != nil && !sess.QuizGenerationLockAt.Before(staleBefore) {
		return false, nil
	}
	sess.QuizGenerationLockID = &token
	sess.QuizGenerationLockAt = &now
	return true, nil
}

func (r *SessionRepo) ReleaseGenerationLock(_ context.Context, id, token uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok || sess.QuizGenerationLockID == nil || *sess.QuizGenerationLockID != token {
		return false, nil
	}
	sess.QuizGenerationLockID = nil
	sess.QuizGenerationLockAt = nil
	return true, nil
}

func (r *SessionRepo) ClearActiveQuiz(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.ActiveQuizID = nil
	return nil
}

// StudentRepo

type StudentRepo struct{ s *Store }

func (r *StudentRepo) Join(_ context.Context, sessionID uuid.UUID, studentID string, now time.Time) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := studentKey{sessionID, studentID}
	st, ok := r.s.students[key]
	if !ok {
		st = &models.Student{ID: uuid.New(), SessionID: sessionID, StudentID: studentID, JoinedAt: now}
		r.s.students[key] = st
	}
	st.LastSeen = now
	return cloneStudent(st), nil
}

func (r *StudentRepo) Get(_ context.Context, sessionID uuid.UUID, studentID string) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.students[studentKey{sessionID, studentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneStudent(st), nil
}

func (r *StudentRepo) Touch(_ context.Context, sessionID uuid.UUID, studentID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.students[studentKey{sessionID, studentID}]
	if !ok {
		return false, nil
	}
	st.LastSeen = now
	return true, nil
}

func (r *StudentRepo) CountSeenSince(_ context.Context, sessionID uuid.UUID, since time.Time, lostOnly bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for key, st := range r.s.students {
		if key.sessionID != sessionID || st.LastSeen.Before(since) {
			continue
		}
		if lostOnly && !st.IsLost {
			continue
		}
		n++
	}
	return n, nil
}

func (r *StudentRepo) SetLost(_ context.Context, sessionID uuid.UUID, studentID string, isLost bool, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := studentKey{sessionID, studentID}
	st, ok := r.s.students[key]
	if !ok {
		st = &models.Student{ID: uuid.New(), SessionID: sessionID, StudentID: studentID, JoinedAt: now}
		r.s.students[key] = st
	}
	wasLost := st.IsLost
	st.IsLost = isLost
	st.LastSeen = now
	if !isLost {
		st.LostSummary = nil
		st.LostSummaryAt = nil
	}
	return wasLost, nil
}

func (r *StudentRepo) SaveLostSummary(_ context.Context, sessionID uuid.UUID, studentID, summary string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.students[studentKey{sessionID, studentID}]
	if !ok || !st.IsLost {
		return false, nil
	}
	st.LostSummary = &summary
	st.LostSummaryAt = &now
	return true, nil
}

// TranscriptRepo

type TranscriptRepo struct{ s *Store }

func (r *TranscriptRepo) Append(_ context.Context, line *models.TranscriptLine, now func() time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.CreatedAt = now()
	r.s.transcript[line.SessionID] = insertChrono(r.s.transcript[line.SessionID], *line,
		func(l models.TranscriptLine) time.Time { return l.CreatedAt })
	return nil
}

func (r *TranscriptRepo) ListWindow(_ context.Context, sessionID uuid.UUID, since, until time.Time, limit int) ([]models.TranscriptLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.TranscriptLine
	for _, l := range r.s.transcript[sessionID] {
		if !since.IsZero() && l.CreatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && !l.CreatedAt.Before(until) {
			continue
		}
		out = append(out, l)
	}
	return append([]models.TranscriptLine(nil), newest(out, limit)...), nil
}

// QuizRepo

type QuizRepo struct{ s *Store }

func (r *QuizRepo) Launch(_ context.Context, q *models.Quiz, token uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[q.SessionID]
	if !ok || sess.Status != models.SessionStatusLive {
		return false, nil
	}
	if sess.QuizGenerationLockID == nil || *sess.QuizGenerationLockID != token {
		return false, nil
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	r.s.quizzes[q.ID] = cloneQuiz(q)
	r.s.quizOrder[q.SessionID] = append(r.s.quizOrder[q.SessionID], q.ID)

	id := q.ID
	sess.ActiveQuizID = &id
	sess.QuizGenerationLockID = nil
	sess.QuizGenerationLockAt = nil
	return true, nil
}

func (r *QuizRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneQuiz(q), nil
}

func (r *QuizRepo) LatestCreatedAt(_ context.Context, sessionID uuid.UUID) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest time.Time
	found := false
	for _, id := range r.s.quizOrder[sessionID] {
		if at := r.s.quizzes[id].CreatedAt; !found || at.After(latest) {
			latest, found = at, true
		}
	}
	if !found {
		return time.Time{}, repository.ErrNotFound
	}
	return latest, nil
}

func (r *QuizRepo) CreateResponse(_ context.Context, resp *models.QuizResponse) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := responseKey{resp.QuizID, resp.StudentID}
	if _, exists := r.s.responses[key]; exists {
		return false, nil
	}
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	c := *resp
	c.Answers = append([]int(nil), resp.Answers...)
	r.s.responses[key] = &c
	return true, nil
}

func (r *QuizRepo) HasResponse(_ context.Context, quizID uuid.UUID, studentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, exists := r.s.responses[responseKey{quizID, studentID}]
	return exists, nil
}

func (r *QuizRepo) ListResponses(_ context.Context, quizID uuid.UUID) ([]models.QuizResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.QuizResponse
	for key, resp := range r.s.responses {
		if key.quizID != quizID {
			continue
		}
		c := *resp
		c.Answers = append([]int(nil), resp.Answers...)
		out = insertChrono(out, c, func(qr models.QuizResponse) time.Time { return qr.CreatedAt })
	}
	return out, nil
}

// QuestionRepo

type QuestionRepo struct{ s *Store }

func (r *QuestionRepo) Create(_ context.Context, q *models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	c := cloneQuestion(q)
	r.s.questions[q.ID] = &c
	r.s.questionIDs[q.SessionID] = append(r.s.questionIDs[q.SessionID], q.ID)
	return nil
}

func (r *QuestionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneQuestion(q)
	return &c, nil
}

func (r *QuestionRepo) SaveAnswer(_ context.Context, id uuid.UUID, answer string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.questions[id]
	if !ok || q.Answer != nil {
		return false, nil
	}
	q.Answer = &answer
	return true, nil
}

func (r *QuestionRepo) ListSince(_ context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Question
	for _, id := range r.s.questionIDs[sessionID] {
		q := r.s.questions[id]
		if q.CreatedAt.Before(since) {
			continue
		}
		out = insertChrono(out, cloneQuestion(q), func(q models.Question) time.Time { return q.CreatedAt })
	}
	return newest(out, limit), nil
}

// LostEventRepo

type LostEventRepo struct{ s *Store }

func (r *LostEventRepo) Append(_ context.Context, e *models.LostEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.lostEvents[e.SessionID] = insertChrono(r.s.lostEvents[e.SessionID], *e,
		func(ev models.LostEvent) time.Time { return ev.CreatedAt })
	return nil
}

func (r *LostEventRepo) TimestampsSince(_ context.Context, sessionID uuid.UUID, since time.Time) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []time.Time
	for _, e := range r.s.lostEvents[sessionID] {
		if !e.CreatedAt.Before(since) {
			out = append(out, e.CreatedAt)
		}
	}
	return out, nil
}

// JobRepo

type JobRepo struct{ s *Store }

func (r *JobRepo) Create(_ context.Context, j *models.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	j.RetryCount = 0
	if j.MaxRetries == 0 {
		j.MaxRetries = 3
	}
	j.CreatedAt = time.Now()
	c := *j
	r.s.jobs[j.ID] = &c
	return nil
}

func (r *JobRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	j, ok := r.s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (r *JobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	j, ok := r.s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Status = status
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		now := time.Now()
		j.CompletedAt = &now
	}
	return nil
}

func (r *JobRepo) UpdateError(_ context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	j, ok := r.s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.ErrorMessage = &errMsg
	j.RetryCount = retryCount
	return nil
}
