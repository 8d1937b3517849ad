package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"waitwhat-backend/internal/models"
)

func TestPresence_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	sess := createTestSession(ctx, repos, "calm-otter-01", clock.Now())
	svc := NewPresenceService(repos, nil, nil, 0, clock.Now)

	repos.Students.Join(ctx, sess.ID, "amy", clock.Now())

	tests := []struct {
		name    string
		advance time.Duration
		want    int
	}{
		{"at heartbeat", 0, 1},
		{"just inside ttl", 14999 * time.Millisecond, 1},
		{"exactly ttl", 15000 * time.Millisecond, 1},
		{"just outside ttl", 15001 * time.Millisecond, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			at := testEpoch.Add(tc.advance)
			svc.now = func() time.Time { return at }

			got, err := svc.GetStudentCount(ctx, sess.ID)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %d active students at +%s, got %d", tc.want, tc.advance, got)
			}
		})
	}
}

func TestPresence_KeepAlive(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	sess := createTestSession(ctx, repos, "calm-otter-01", clock.Now())
	svc := NewPresenceService(repos, nil, nil, 0, clock.Now)

	repos.Students.Join(ctx, sess.ID, "amy", clock.Now())

	clock.Advance(10 * time.Second)
	if err := svc.KeepAlive(ctx, sess.ID, "amy"); err != nil {
		t.Fatalf("keep alive: %v", err)
	}
	clock.Advance(10 * time.Second)
	if n, _ := svc.GetStudentCount(ctx, sess.ID); n != 1 {
		t.Errorf("Expected heartbeat to keep student active, got %d", n)
	}

	if err := svc.KeepAlive(ctx, sess.ID, "ghost"); err != nil {
		t.Errorf("Expected heartbeat for unknown student to be a no-op, got %v", err)
	}
	if _, err := svc.GetStudentState(ctx, sess.ID, "ghost"); err == nil {
		t.Error("Expected heartbeat not to create a student")
	}

	var ve *ValidationError
	if err := svc.KeepAlive(ctx, sess.ID, " "); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for blank student id, got %v", err)
	}
}

func TestPresence_SetLostStatus(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	sess := createTestSession(ctx, repos, "calm-otter-01", clock.Now())
	scheduler := &recordingScheduler{}
	publisher := &recordingPublisher{}
	svc := NewPresenceService(repos, scheduler, publisher, 0, clock.Now)

	st, err := svc.SetLostStatus(ctx, sess.ID, "amy", true)
	if err != nil {
		t.Fatalf("set lost: %v", err)
	}
	if !st.IsLost {
		t.Error("Expected student to be lost")
	}

	// A repeated toggle is not a new transition.
	svc.SetLostStatus(ctx, sess.ID, "amy", true)

	events, _ := repos.LostEvents.TimestampsSince(ctx, sess.ID, time.Time{})
	if len(events) != 1 {
		t.Errorf("Expected 1 lost event, got %d", len(events))
	}
	questions, _ := repos.Questions.ListSince(ctx, sess.ID, time.Time{}, 0)
	if len(questions) != 1 || questions[0].Question != lostQuestionText || questions[0].Answer != nil {
		t.Fatalf("Expected one pending canned question, got %+v", questions)
	}
	if len(scheduler.jobs) != 1 {
		t.Fatalf("Expected 1 scheduled job, got %d", len(scheduler.jobs))
	}
	job := scheduler.jobs[0]
	if job.Type != models.JobTypeLostSummary || job.ReferenceID != questions[0].ID || job.StudentID != "amy" {
		t.Errorf("Unexpected job %+v", job)
	}
	if n, _ := svc.GetLostStudentCount(ctx, sess.ID); n != 1 {
		t.Errorf("Expected lost count 1, got %d", n)
	}

	repos.Students.SaveLostSummary(ctx, sess.ID, "amy", "recap", clock.Now())
	st, _ = svc.SetLostStatus(ctx, sess.ID, "amy", false)
	if st.IsLost || st.LostSummary != nil || st.LostSummaryAt != nil {
		t.Errorf("Expected cleared lost state, got %+v", st)
	}

	clock.Advance(time.Second)
	svc.SetLostStatus(ctx, sess.ID, "amy", true)
	events, _ = repos.LostEvents.TimestampsSince(ctx, sess.ID, time.Time{})
	if len(events) != 2 {
		t.Errorf("Expected a second lost event after recovering, got %d", len(events))
	}

	for _, typ := range publisher.types() {
		if typ != models.EventPresenceUpdate {
			t.Errorf("Unexpected event type %q", typ)
		}
	}
}

func TestPresence_SetLostStatusUnknownSession(t *testing.T) {
	svc := NewPresenceService(newTestRepos(), nil, nil, 0, nil)
	_, err := svc.SetLostStatus(context.Background(), testSessionID(), "amy", true)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}
