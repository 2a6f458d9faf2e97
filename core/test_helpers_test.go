package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func intPtr(value int) *int { return &value }

// memoryStore is an in-memory persistence gateway. Every write happens under
// one mutex so the conditional updates behave like their SQL counterparts.
type memoryStore struct {
	mu             sync.Mutex
	seq            int
	initiatives    map[string]Initiative
	managers       map[string]map[string]bool
	participations map[string]Participation
	users          map[string]Recipient
	transitionErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		initiatives:    map[string]Initiative{},
		managers:       map[string]map[string]bool{},
		participations: map[string]Participation{},
		users:          map[string]Recipient{},
	}
}

func (s *memoryStore) addInitiative(initiative Initiative, managers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiatives[initiative.ID] = initiative
	allowed := map[string]bool{initiative.OrganizerID: true}
	for _, manager := range managers {
		allowed[manager] = true
	}
	s.managers[initiative.ID] = allowed
}

func (s *memoryStore) addUser(recipient Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[recipient.UserID] = recipient
}

func (s *memoryStore) counter(initiativeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initiatives[initiativeID].CurrentParticipants
}

func (s *memoryStore) countStatus(initiativeID string, status ParticipationStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, participation := range s.participations {
		if participation.InitiativeID == initiativeID && participation.Status == status {
			total++
		}
	}
	return total
}

func (s *memoryStore) GetInitiative(_ context.Context, id string) (Initiative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	initiative, ok := s.initiatives[id]
	if !ok {
		return Initiative{}, ErrRecordNotFound
	}
	return initiative, nil
}

func (s *memoryStore) IsManager(_ context.Context, initiativeID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed, ok := s.managers[initiativeID]
	if !ok {
		return false, ErrRecordNotFound
	}
	return allowed[userID], nil
}

func (s *memoryStore) GetParticipation(_ context.Context, id string) (Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participation, ok := s.participations[id]
	if !ok {
		return Participation{}, ErrRecordNotFound
	}
	return participation, nil
}

func (s *memoryStore) CreateParticipation(_ context.Context, in CreateParticipationInput) (Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *Participation
	for id, participation := range s.participations {
		if participation.InitiativeID == in.InitiativeID && participation.UserID == in.UserID {
			copied := s.participations[id]
			existing = &copied
			break
		}
	}
	if existing != nil && existing.Status != ParticipationStatusCancelled {
		return Participation{}, ErrParticipationExists
	}
	if in.Status == ParticipationStatusApproved {
		if err := s.incrementLocked(in.InitiativeID); err != nil {
			return Participation{}, err
		}
	}
	if existing != nil {
		existing.Status = in.Status
		existing.Role = in.Role
		existing.FormResponses = in.FormResponses
		existing.UpdatedAt = in.Now
		s.participations[existing.ID] = *existing
		return *existing, nil
	}
	s.seq++
	participation := Participation{
		ID:            fmt.Sprintf("prt_%03d", s.seq),
		InitiativeID:  in.InitiativeID,
		UserID:        in.UserID,
		Status:        in.Status,
		Role:          in.Role,
		FormResponses: in.FormResponses,
		CreatedAt:     in.Now.Add(time.Duration(s.seq) * time.Second),
		UpdatedAt:     in.Now,
	}
	s.participations[participation.ID] = participation
	return participation, nil
}

func (s *memoryStore) TransitionParticipation(_ context.Context, in TransitionInput) (Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionErr != nil {
		return Participation{}, s.transitionErr
	}
	participation, ok := s.participations[in.ParticipationID]
	if !ok {
		return Participation{}, ErrRecordNotFound
	}
	if participation.Status != in.From {
		return Participation{}, ErrStatusConflict
	}
	switch {
	case in.CounterDelta > 0:
		if err := s.incrementLocked(participation.InitiativeID); err != nil {
			return Participation{}, err
		}
	case in.CounterDelta < 0:
		initiative := s.initiatives[participation.InitiativeID]
		if initiative.CurrentParticipants > 0 {
			initiative.CurrentParticipants--
		}
		s.initiatives[initiative.ID] = initiative
	}
	participation.Status = in.To
	participation.UpdatedAt = in.Now
	s.participations[participation.ID] = participation
	return participation, nil
}

func (s *memoryStore) incrementLocked(initiativeID string) error {
	initiative, ok := s.initiatives[initiativeID]
	if !ok {
		return ErrRecordNotFound
	}
	if initiative.MaxParticipants != nil && initiative.CurrentParticipants >= *initiative.MaxParticipants {
		return ErrCapacityReached
	}
	initiative.CurrentParticipants++
	s.initiatives[initiativeID] = initiative
	return nil
}

func (s *memoryStore) ListParticipants(_ context.Context, filter ParticipantFilter) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Participant{}
	for _, participation := range s.participations {
		if participation.InitiativeID != filter.InitiativeID {
			continue
		}
		if filter.Status != "" && participation.Status != filter.Status {
			continue
		}
		user := s.users[participation.UserID]
		out = append(out, Participant{Participation: participation, Name: user.Name, Email: user.Email})
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.NewestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) EligibleRecipients(_ context.Context, initiativeID string) ([]Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Recipient{}
	for _, participation := range s.participations {
		if participation.InitiativeID != initiativeID || participation.Status == ParticipationStatusCancelled {
			continue
		}
		if user, ok := s.users[participation.UserID]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memoryPostQueue struct {
	mu        sync.Mutex
	seq       int
	tasks     []PostNotificationTask
	deleteErr error
}

func (q *memoryPostQueue) seed(tasks ...PostNotificationTask) {
	for _, task := range tasks {
		if _, err := q.Enqueue(context.Background(), task); err != nil {
			panic(err)
		}
	}
}

func (q *memoryPostQueue) Enqueue(_ context.Context, task PostNotificationTask) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.tasks {
		if existing.RecipientEmail == task.RecipientEmail && existing.PostID == task.PostID {
			return false, nil
		}
	}
	q.seq++
	if task.ID == "" {
		task.ID = fmt.Sprintf("pnq_%03d", q.seq)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = testNow
	}
	task.CreatedAt = task.CreatedAt.Add(time.Duration(q.seq) * time.Millisecond)
	q.tasks = append(q.tasks, task)
	return true, nil
}

func (q *memoryPostQueue) EnqueueBatch(ctx context.Context, tasks []PostNotificationTask) (int, error) {
	inserted := 0
	for _, task := range tasks {
		ok, err := q.Enqueue(ctx, task)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (q *memoryPostQueue) FetchOldest(_ context.Context, limit int) ([]PostNotificationTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]PostNotificationTask(nil), q.tasks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memoryPostQueue) Delete(_ context.Context, ids ...string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleteErr != nil {
		return 0, q.deleteErr
	}
	remove := map[string]struct{}{}
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := q.tasks[:0]
	deleted := 0
	for _, task := range q.tasks {
		if _, ok := remove[task.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, task)
	}
	q.tasks = kept
	return deleted, nil
}

func (q *memoryPostQueue) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}

type memoryWebhookQueue struct {
	mu     sync.Mutex
	seq    int
	events []WebhookEvent
}

func (q *memoryWebhookQueue) Enqueue(_ context.Context, envelope WebhookEnvelope) (WebhookEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	event := WebhookEvent{
		ID:        fmt.Sprintf("whe_%03d", q.seq),
		Provider:  envelope.Provider,
		EventType: envelope.Type,
		Payload: map[string]any{
			"type":      envelope.Type,
			"timestamp": envelope.Timestamp,
			"data":      envelope.Data,
		},
		ReceivedAt: testNow.Add(time.Duration(q.seq) * time.Millisecond),
	}
	q.events = append(q.events, event)
	return event, nil
}

func (q *memoryWebhookQueue) FetchOldest(_ context.Context, limit int) ([]WebhookEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]WebhookEvent(nil), q.events...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memoryWebhookQueue) Delete(_ context.Context, ids ...string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	remove := map[string]struct{}{}
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := q.events[:0]
	deleted := 0
	for _, event := range q.events {
		if _, ok := remove[event.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	q.events = kept
	return deleted, nil
}

func (q *memoryWebhookQueue) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events), nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

func newTestService(store *memoryStore, opts ...Option) (*Service, error) {
	base := []Option{
		WithInitiativeStore(store),
		WithManagerResolver(store),
		WithParticipationStore(store),
		WithClock(fixedClock),
		WithLogger(stubLogger{}),
	}
	return NewService(DefaultConfig(), append(base, opts...)...)
}
