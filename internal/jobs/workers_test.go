package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/campusevents/server/internal/email"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	notice    *Notice
	err       error
	attendees []int64
}

func (d stubDirectory) RegistrationNotice(context.Context, int64) (*Notice, error) {
	return d.notice, d.err
}

func (d stubDirectory) Attendees(context.Context, int64) ([]int64, error) {
	return d.attendees, d.err
}

func (d stubDirectory) AttendeeNotice(context.Context, int64, int64) (*Notice, error) {
	return d.notice, d.err
}

type recordingMailer struct {
	confirmations []email.RegistrationConfirmation
	requests      []email.FeedbackRequest
	err           error
}

func (m *recordingMailer) SendRegistrationConfirmation(_ context.Context, msg email.RegistrationConfirmation) error {
	m.confirmations = append(m.confirmations, msg)
	return m.err
}

func (m *recordingMailer) SendFeedbackRequest(_ context.Context, msg email.FeedbackRequest) error {
	m.requests = append(m.requests, msg)
	return m.err
}

type recordingEnqueuer struct {
	params []river.InsertManyParams
}

func (e *recordingEnqueuer) InsertMany(_ context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error) {
	e.params = append(e.params, params...)
	return nil, nil
}

var aliceNotice = &Notice{
	Email:       "alice@campus.edu",
	FirstName:   "Alice",
	LastName:    "Ng",
	CollegeName: "Campus College",
	EventID:     4,
	EventTitle:  "Robotics",
	EventDate:   "2026-03-14",
	StartTime:   "10:00",
	EndTime:     "12:00",
}

func TestArgs_Kind(t *testing.T) {
	assert.Equal(t, JobKindRegistrationConfirmation, RegistrationConfirmationArgs{}.Kind())
	assert.Equal(t, JobKindEventCompleted, EventCompletedArgs{}.Kind())
	assert.Equal(t, JobKindFeedbackRequest, FeedbackRequestArgs{}.Kind())
}

func TestRegistrationConfirmationWorker(t *testing.T) {
	mailer := &recordingMailer{}
	w := RegistrationConfirmationWorker{Directory: stubDirectory{notice: aliceNotice}, Mailer: mailer, Logger: zerolog.Nop()}

	err := w.Work(context.Background(), &river.Job[RegistrationConfirmationArgs]{Args: RegistrationConfirmationArgs{RegistrationID: 1}})
	require.NoError(t, err)
	require.Len(t, mailer.confirmations, 1)
	assert.Equal(t, "alice@campus.edu", mailer.confirmations[0].To)
	assert.Equal(t, "Alice Ng", mailer.confirmations[0].StudentName)
	assert.Equal(t, "Robotics", mailer.confirmations[0].EventTitle)
}

func TestRegistrationConfirmationWorker_GoneIsNotRetried(t *testing.T) {
	mailer := &recordingMailer{}
	w := RegistrationConfirmationWorker{Directory: stubDirectory{err: ErrRecipientGone}, Mailer: mailer, Logger: zerolog.Nop()}

	err := w.Work(context.Background(), &river.Job[RegistrationConfirmationArgs]{})
	require.NoError(t, err)
	assert.Empty(t, mailer.confirmations)
}

func TestRegistrationConfirmationWorker_PropagatesErrors(t *testing.T) {
	w := RegistrationConfirmationWorker{Directory: stubDirectory{err: errors.New("db down")}, Mailer: &recordingMailer{}}
	require.ErrorContains(t, w.Work(context.Background(), &river.Job[RegistrationConfirmationArgs]{}), "db down")

	mailer := &recordingMailer{err: email.ErrRateLimited}
	w = RegistrationConfirmationWorker{Directory: stubDirectory{notice: aliceNotice}, Mailer: mailer}
	require.ErrorIs(t, w.Work(context.Background(), &river.Job[RegistrationConfirmationArgs]{}), email.ErrRateLimited)

	require.Error(t, w.Work(context.Background(), nil))
}

func TestEventCompletedWorker_FansOut(t *testing.T) {
	enq := &recordingEnqueuer{}
	w := EventCompletedWorker{
		Directory: stubDirectory{attendees: []int64{3, 8}},
		Policy:    NewRetryPolicy(0),
		Enqueuer:  enq,
	}

	err := w.Work(context.Background(), &river.Job[EventCompletedArgs]{Args: EventCompletedArgs{EventID: 4, CollegeID: 1}})
	require.NoError(t, err)
	require.Len(t, enq.params, 2)
	assert.Equal(t, FeedbackRequestArgs{EventID: 4, UserID: 3}, enq.params[0].Args)
	assert.Equal(t, FeedbackRequestArgs{EventID: 4, UserID: 8}, enq.params[1].Args)
	assert.Equal(t, QueueNotifications, enq.params[0].InsertOpts.Queue)
}

func TestEventCompletedWorker_NoAttendees(t *testing.T) {
	enq := &recordingEnqueuer{}
	w := EventCompletedWorker{Directory: stubDirectory{}, Policy: NewRetryPolicy(0), Enqueuer: enq}

	require.NoError(t, w.Work(context.Background(), &river.Job[EventCompletedArgs]{}))
	assert.Empty(t, enq.params)
}

func TestFeedbackRequestWorker(t *testing.T) {
	mailer := &recordingMailer{}
	w := FeedbackRequestWorker{
		Directory: stubDirectory{notice: aliceNotice},
		Mailer:    mailer,
		BaseURL:   "https://events.campus.edu/",
		Logger:    zerolog.Nop(),
	}

	err := w.Work(context.Background(), &river.Job[FeedbackRequestArgs]{Args: FeedbackRequestArgs{EventID: 4, UserID: 3}})
	require.NoError(t, err)
	require.Len(t, mailer.requests, 1)
	assert.Equal(t, "https://events.campus.edu/api/feedback/events/4", mailer.requests[0].FeedbackURL)
	assert.Equal(t, "Alice Ng", mailer.requests[0].StudentName)
}

func TestFeedbackRequestWorker_NoBaseURL(t *testing.T) {
	mailer := &recordingMailer{}
	w := FeedbackRequestWorker{Directory: stubDirectory{notice: aliceNotice}, Mailer: mailer}

	require.NoError(t, w.Work(context.Background(), &river.Job[FeedbackRequestArgs]{}))
	assert.Empty(t, mailer.requests[0].FeedbackURL)
}

func TestNewWorkers(t *testing.T) {
	workers := NewWorkers(Dependencies{Directory: stubDirectory{}, Mailer: &recordingMailer{}, Policy: NewRetryPolicy(0)})
	require.NotNil(t, workers)
}
