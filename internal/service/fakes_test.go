package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeTickets struct {
	mu           sync.Mutex
	byID         map[string]*domain.Ticket
	next         int64
	statusWrites int
	statusErr    error
	lastFilter   repository.TicketFilter
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{byID: map[string]*domain.Ticket{}, next: 1000}
}

func (f *fakeTickets) put(t domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Number == 0 {
		t.Number = f.next
		f.next++
	}
	cp := t
	f.byID[t.ID] = &cp
	out := cp
	return &out
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.NewString()
	t.Number = f.next
	f.next++
	t.CreatedAt = fixedNow
	t.UpdatedAt = fixedNow
	cp := *t
	f.byID[t.ID] = &cp
	return nil
}

func (f *fakeTickets) Update(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	f.byID[t.ID] = &cp
	return nil
}

func (f *fakeTickets) UpdateStatus(_ context.Context, id string, status domain.TicketStatus, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusWrites++
	if f.statusErr != nil {
		return f.statusErr
	}
	t, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.CompletedAt = completedAt
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) GetByNumber(_ context.Context, number int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.Number == number {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := make([]domain.Ticket, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTickets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeTickets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeComments struct {
	mu   sync.Mutex
	rows []domain.Comment
}

func (f *fakeComments) Create(_ context.Context, c *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = fixedNow
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeComments) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			cp := f.rows[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeComments) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Comment
	for _, c := range f.rows {
		if c.TicketID != ticketID || (c.IsInternal && !includeInternal) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeComments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeComments) forTicket(ticketID string) []domain.Comment {
	out, _ := f.ListByTicket(context.Background(), ticketID, true)
	return out
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (f *fakeHistory) Create(_ context.Context, e *domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = fixedNow.Add(time.Duration(len(f.entries)) * time.Second)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID string, limit int) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range f.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistory) actions(ticketID string) []domain.HistoryAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HistoryAction
	for _, e := range f.entries {
		if e.TicketID == ticketID {
			out = append(out, e.Action)
		}
	}
	return out
}

type fakeDepartments struct {
	byID map[string]*domain.Department
}

func newFakeDepartments(depts ...domain.Department) *fakeDepartments {
	f := &fakeDepartments{byID: map[string]*domain.Department{}}
	for i := range depts {
		d := depts[i]
		f.byID[d.ID] = &d
	}
	return f
}

func (f *fakeDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	if d, ok := f.byID[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDepartments) GetByEmail(_ context.Context, email string) (*domain.Department, error) {
	for _, d := range f.byID {
		if d.Email != nil && strings.EqualFold(*d.Email, email) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDepartments) List(_ context.Context, scope repository.Scope) ([]domain.Department, error) {
	var out []domain.Department
	for _, d := range f.byID {
		if scope.All || (scope.DepartmentID != nil && *scope.DepartmentID == d.ID) {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	mu         sync.Mutex
	byID       map[string]*domain.Profile
	getErr     error
	lastFilter repository.ProfileFilter
}

func newFakeProfiles(profiles ...domain.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[string]*domain.Profile{}}
	for i := range profiles {
		p := profiles[i]
		f.byID[p.ID] = &p
	}
	return f
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProfiles) List(_ context.Context, filter repository.ProfileFilter) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []domain.Profile
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProfiles) UpdateRole(_ context.Context, id string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Role = role
	return nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	rows []*domain.OutboundEmail
}

func (f *fakeQueue) Enqueue(_ context.Context, e *domain.OutboundEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = fixedNow
	e.UpdatedAt = fixedNow
	cp := *e
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeQueue) find(id string) *domain.OutboundEmail {
	for _, e := range f.rows {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeQueue) GetByID(_ context.Context, id string) (*domain.OutboundEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e := f.find(id); e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQueue) ListDeliverable(_ context.Context, limit int) ([]domain.OutboundEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutboundEmail
	for _, e := range f.rows {
		if e.Deliverable() && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeQueue) MarkSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return pgx.ErrNoRows
	}
	now := fixedNow
	e.Status = domain.EmailStatusSent
	e.SentAt = &now
	return nil
}

func (f *fakeQueue) RecordFailure(_ context.Context, id string, reason string) (*domain.OutboundEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return nil, pgx.ErrNoRows
	}
	e.Attempts, e.Status = domain.NextDeliveryState(e.Attempts)
	e.LastError = &reason
	cp := *e
	return &cp, nil
}

func (f *fakeQueue) ResetForRetry(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil || e.Status != domain.EmailStatusFailed {
		return pgx.ErrNoRows
	}
	e.Status = domain.EmailStatusPending
	e.Attempts = 0
	e.LastError = nil
	return nil
}

func (f *fakeQueue) all() []domain.OutboundEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OutboundEmail, 0, len(f.rows))
	for _, e := range f.rows {
		out = append(out, *e)
	}
	return out
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]time.Time
	puts   int
}

func (f *fakeSettings) Get(_ context.Context, key string) (*repository.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &repository.Setting{Key: key, Value: v.Format(time.RFC3339Nano)}, nil
}

func (f *fakeSettings) Put(_ context.Context, key, value string) error {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return err
	}
	return f.PutTime(context.Background(), key, t)
}

func (f *fakeSettings) GetTime(_ context.Context, key string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeSettings) PutTime(_ context.Context, key string, value time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]time.Time{}
	}
	f.values[key] = value
	f.puts++
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	failFor map[string]error
	authErr error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Authenticate(context.Context) error { return f.authErr }

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, to := range msg.To {
		if err, ok := f.failFor[to]; ok {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

// fakeFetcher hands out canned messages and records which were acknowledged.
type fakeFetcher struct {
	messages []domain.InboundMessage
	fetchErr error
	since    []time.Time
	marked   []string
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, _ config.MailboxAccount, since time.Time, handle mail.Handler) (mail.FetchStats, error) {
	f.since = append(f.since, since)
	var stats mail.FetchStats
	if f.fetchErr != nil {
		return stats, f.fetchErr
	}
	for _, msg := range f.messages {
		stats.Fetched++
		if err := handle(ctx, msg); err != nil {
			stats.Failed++
			continue
		}
		stats.Handled++
		f.marked = append(f.marked, msg.Subject)
	}
	return stats, nil
}

type fakeResolver struct {
	fetchers map[string]mail.Fetcher
}

func (r fakeResolver) FetcherFor(account config.MailboxAccount) (mail.Fetcher, error) {
	if f, ok := r.fetchers[account.Name]; ok {
		return f, nil
	}
	return nil, errors.New("no fetcher for " + account.Name)
}

// harness wires every service over the fakes the way cmd/api does.
type harness struct {
	tickets     *fakeTickets
	comments    *fakeComments
	history     *fakeHistory
	departments *fakeDepartments
	profiles    *fakeProfiles
	queue       *fakeQueue
	sender      *fakeSender

	dispatcher    events.Dispatcher
	ticketSvc     *TicketService
	commentSvc    *CommentService
	assignSvc     *AssignmentService
	queueSvc      *EmailQueueService
	correlator    *Correlator
	profileSvc    *ProfileService
	notifications *NotificationService
}

const (
	maintenanceID = "dept-maintenance"
	electricalID  = "dept-electrical"
)

func newHarness() *harness {
	maintEmail := "maintenance@greatlakesg.com"
	elecEmail := "electrical@greatlakesg.com"
	h := &harness{
		tickets:  newFakeTickets(),
		comments: &fakeComments{},
		history:  &fakeHistory{},
		departments: newFakeDepartments(
			domain.Department{ID: maintenanceID, Name: "Maintenance", Email: &maintEmail},
			domain.Department{ID: electricalID, Name: "Electrical", Email: &elecEmail},
		),
		profiles: newFakeProfiles(
			profile("global", domain.RoleGlobalAdmin, nil),
			profile("maint-admin", domain.RoleMaintenanceAdmin, strPtr(maintenanceID)),
			profile("maint-user", domain.RoleUser, strPtr(maintenanceID)),
			profile("elec-user", domain.RoleUser, strPtr(electricalID)),
			profile("elec-admin", domain.RoleElectricalAdmin, strPtr(electricalID)),
		),
		queue:      &fakeQueue{},
		sender:     &fakeSender{},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	logger := zap.NewNop()

	h.queueSvc = NewEmailQueueService(EmailQueueDependencies{
		QueueRepo: h.queue,
		Sender:    h.sender,
		Logger:    logger,
		From:      "Great Lakes Greenhouses <noreply@greatlakesg.com>",
		ReplyTo:   "tickets@greatlakesg.com",
	})
	h.notifications = NewNotificationService(NotificationDependencies{
		Dispatcher:     h.dispatcher,
		Queue:          h.queueSvc,
		DepartmentRepo: h.departments,
		ProfileRepo:    h.profiles,
		Logger:         logger,
	})
	h.notifications.RegisterHandlers()

	h.assignSvc = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  h.tickets,
		ProfileRepo: h.profiles,
		HistoryRepo: h.history,
		Dispatcher:  h.dispatcher,
		Logger:      logger,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:     h.tickets,
		CommentRepo:    h.comments,
		DepartmentRepo: h.departments,
		HistoryRepo:    h.history,
		Assignments:    h.assignSvc,
		Dispatcher:     h.dispatcher,
		Logger:         logger,
		Clock:          fixedClock,
	})
	h.commentSvc = NewCommentService(CommentDependencies{
		TicketRepo:  h.tickets,
		CommentRepo: h.comments,
		HistoryRepo: h.history,
		Dispatcher:  h.dispatcher,
		Logger:      logger,
	})
	h.correlator = NewCorrelator(CorrelatorDependencies{
		TicketRepo:     h.tickets,
		CommentRepo:    h.comments,
		DepartmentRepo: h.departments,
		HistoryRepo:    h.history,
		Dispatcher:     h.dispatcher,
		Logger:         logger,
		Clock:          fixedClock,
	})
	h.profileSvc = NewProfileService(h.profiles, h.departments, logger)
	return h
}

func profile(id string, role domain.Role, dept *string) domain.Profile {
	return domain.Profile{ID: id, Email: id + "@greatlakesg.com", FullName: id, Role: role, DepartmentID: dept}
}

func (h *harness) caller(id string) auth.Caller {
	p, err := h.profiles.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return auth.CallerFromProfile(p)
}

func (h *harness) seedTicket(t domain.Ticket) *domain.Ticket {
	if t.Title == "" {
		t.Title = "Leaky valve"
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusTodo
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityMedium
	}
	if t.DepartmentID == "" {
		t.DepartmentID = maintenanceID
	}
	if t.RequesterEmail == "" {
		t.RequesterEmail = "grower@example.com"
	}
	return h.tickets.put(t)
}
