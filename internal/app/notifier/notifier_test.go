package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkondr/salonbot/internal/model"
	"github.com/mkondr/salonbot/internal/service/audit"
)

type fakeBookings struct {
	records []model.Appointment
	err     error
	calls   int
	from    time.Time
	to      time.Time
}

func (f *fakeBookings) Records(_ context.Context, from, to time.Time, _ int64) ([]model.Appointment, error) {
	f.calls++
	f.from, f.to = from, to
	return f.records, f.err
}

// fakeService is an in-memory stand-in for the reminders service keyed
// the same way the Postgres repository is: users by client id, reminders
// by record id.
type fakeService struct {
	users     map[int64]*model.User
	reminders map[int64]*model.Reminder
	logs      []model.NotificationLog

	ensureErr   error
	claimErr    error
	claimDenied bool
}

func newFakeService() *fakeService {
	return &fakeService{
		users:     make(map[int64]*model.User),
		reminders: make(map[int64]*model.Reminder),
	}
}

func (f *fakeService) RegisterUser(context.Context, model.User) error { return nil }

func (f *fakeService) UserByChatID(context.Context, int64) (*model.User, error) {
	return nil, model.ErrUserNotFound
}

func (f *fakeService) UserByClientID(_ context.Context, clientID int64) (*model.User, error) {
	user, ok := f.users[clientID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeService) ReminderByRecordID(_ context.Context, recordID int64) (*model.Reminder, error) {
	reminder, ok := f.reminders[recordID]
	if !ok {
		return nil, model.ErrReminderNotFound
	}
	return reminder, nil
}

func (f *fakeService) EnsureReminder(_ context.Context, reminder model.Reminder) (*model.Reminder, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	if existing, ok := f.reminders[reminder.RecordID]; ok {
		return existing, nil
	}
	created := reminder
	f.reminders[reminder.RecordID] = &created
	return &created, nil
}

func (f *fakeService) ClaimSent(_ context.Context, recordID int64) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimDenied {
		return false, nil
	}
	reminder, ok := f.reminders[recordID]
	if !ok || reminder.Sent {
		return false, nil
	}
	reminder.Sent = true
	return true, nil
}

func (f *fakeService) Confirm(context.Context, int64) error { return nil }
func (f *fakeService) Cancel(context.Context, int64) error  { return nil }

func (f *fakeService) RequestReschedule(context.Context, model.RescheduleRequest) (int64, error) {
	return 0, nil
}

func (f *fakeService) PendingReschedules(context.Context) ([]model.RescheduleRequest, error) {
	return nil, nil
}

func (f *fakeService) ProcessReschedule(context.Context, int64, string) error { return nil }

func (f *fakeService) LogNotification(_ context.Context, entry model.NotificationLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

type fakeSender struct {
	sent []int64
	err  error
}

func (f *fakeSender) SendReminder(reminder *model.Reminder) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, reminder.RecordID)
	return nil
}

type fakeAudit struct {
	events []audit.Event
}

func (f *fakeAudit) Publish(_ context.Context, event audit.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) Close() error { return nil }

func newTestNotifier(bookings *fakeBookings, serv *fakeService, sender *fakeSender, auditPub *fakeAudit) *Notifier {
	n := New(bookings, serv, sender, auditPub, zap.NewNop(), 2*time.Hour, "@every 1m")
	n.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	return n
}

func appointment(recordID, clientID int64) model.Appointment {
	return model.Appointment{
		ID:          recordID,
		ClientID:    clientID,
		StartAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		ServiceName: "Стрижка",
		StaffName:   "Анна",
	}
}

func registeredUser(clientID, chatID int64) *model.User {
	return &model.User{
		ID:         1,
		ChatID:     chatID,
		ClientID:   clientID,
		Phone:      "+79001234567",
		FullName:   "Иван Иванов",
		Registered: true,
	}
}

func TestRun_DeliversNewReminder(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	sender := &fakeSender{}
	auditPub := &fakeAudit{}

	n := newTestNotifier(bookings, serv, sender, auditPub)
	n.Run(context.Background())

	require.Equal(t, []int64{100}, sender.sent)
	require.True(t, serv.reminders[100].Sent)

	require.Len(t, serv.logs, 1)
	assert.Equal(t, int64(555), serv.logs[0].ChatID)
	assert.Equal(t, model.MessageTypeReminder, serv.logs[0].MessageType)
	assert.True(t, serv.logs[0].Successful)

	require.Len(t, auditPub.events, 1)
	assert.Equal(t, int64(100), auditPub.events[0].RecordID)
	assert.True(t, auditPub.events[0].Successful)
}

func TestRun_WindowCoversHorizonPlusSlack(t *testing.T) {
	bookings := &fakeBookings{}
	n := newTestNotifier(bookings, newFakeService(), &fakeSender{}, &fakeAudit{})

	n.Run(context.Background())

	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), bookings.from)
	assert.Equal(t, time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC), bookings.to)
}

func TestRun_SecondRunSendsNothing(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	sender := &fakeSender{}
	auditPub := &fakeAudit{}

	n := newTestNotifier(bookings, serv, sender, auditPub)
	n.Run(context.Background())
	n.Run(context.Background())

	assert.Equal(t, []int64{100}, sender.sent)
	assert.Len(t, serv.logs, 1)
	assert.Len(t, auditPub.events, 1)
}

func TestRun_SkipsUnregisteredClient(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	sender := &fakeSender{}

	n := newTestNotifier(bookings, serv, sender, &fakeAudit{})
	n.Run(context.Background())

	assert.Empty(t, sender.sent)
	assert.Empty(t, serv.reminders)
	assert.Empty(t, serv.logs)
}

func TestRun_DeliveryFailureLeavesReminderUnsent(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	sender := &fakeSender{err: errors.New("telegram: chat not found")}
	auditPub := &fakeAudit{}

	n := newTestNotifier(bookings, serv, sender, auditPub)
	n.Run(context.Background())

	assert.False(t, serv.reminders[100].Sent)

	require.Len(t, serv.logs, 1)
	assert.False(t, serv.logs[0].Successful)
	assert.Contains(t, serv.logs[0].ErrorMessage, "chat not found")

	// Следующий прогон пробует доставить снова.
	sender.err = nil
	n.Run(context.Background())
	assert.Equal(t, []int64{100}, sender.sent)
	assert.True(t, serv.reminders[100].Sent)
}

func TestRun_AlreadySentSkips(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	serv.reminders[100] = &model.Reminder{RecordID: 100, UserChatID: 555, Sent: true}
	sender := &fakeSender{}

	n := newTestNotifier(bookings, serv, sender, &fakeAudit{})
	n.Run(context.Background())

	assert.Empty(t, sender.sent)
	assert.Empty(t, serv.logs)
}

func TestRun_ClaimLostToOverlappingRun(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{appointment(100, 42)}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	serv.claimDenied = true
	sender := &fakeSender{}

	n := newTestNotifier(bookings, serv, sender, &fakeAudit{})
	n.Run(context.Background())

	// Сообщение ушло, но флаг занял конкурентный прогон: успех не логируется.
	assert.Equal(t, []int64{100}, sender.sent)
	assert.Empty(t, serv.logs)
}

func TestRun_DegradedListingCompletes(t *testing.T) {
	bookings := &fakeBookings{err: errors.New("HTTP 500")}
	serv := newFakeService()
	sender := &fakeSender{}

	n := newTestNotifier(bookings, serv, sender, &fakeAudit{})
	n.Run(context.Background())

	assert.Equal(t, 1, bookings.calls)
	assert.Empty(t, sender.sent)
}

func TestRun_BadRecordDoesNotStopBatch(t *testing.T) {
	bookings := &fakeBookings{records: []model.Appointment{
		appointment(100, 42),
		appointment(200, 77),
	}}
	serv := newFakeService()
	serv.users[42] = registeredUser(42, 555)
	serv.users[77] = registeredUser(77, 777)

	failOn := int64(100)
	sender := &fakeSender{}
	failingSender := senderFunc(func(reminder *model.Reminder) error {
		if reminder.RecordID == failOn {
			return errors.New("delivery refused")
		}
		return sender.SendReminder(reminder)
	})

	n := newTestNotifier(bookings, serv, sender, &fakeAudit{})
	n.sender = failingSender
	n.Run(context.Background())

	assert.Equal(t, []int64{200}, sender.sent)
	assert.True(t, serv.reminders[200].Sent)
	assert.False(t, serv.reminders[100].Sent)
}

type senderFunc func(reminder *model.Reminder) error

func (f senderFunc) SendReminder(reminder *model.Reminder) error { return f(reminder) }
