package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/messagequeue"
)

var errNotFound = errors.New("not found")

// mockStore implements database.Store in memory for service tests.
type mockStore struct {
	mu         sync.Mutex
	providers  map[string]provider.Provider
	models     map[string]provider.Model
	criteria   map[string]feedback.Criterion
	feedbacks  map[string]feedback.Feedback
	sessions   map[string]feedback.Session
	usedTokens map[string]int64 // providerID → tokens in current window

	createSessionErr error
	usedTokensErr    error
	rolled           bool
}

func newMockStore() *mockStore {
	return &mockStore{
		providers:  make(map[string]provider.Provider),
		models:     make(map[string]provider.Model),
		criteria:   make(map[string]feedback.Criterion),
		feedbacks:  make(map[string]feedback.Feedback),
		sessions:   make(map[string]feedback.Session),
		usedTokens: make(map[string]int64),
	}
}

func (s *mockStore) ListProviders(context.Context) ([]provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) GetProvider(_ context.Context, id string) (*provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (s *mockStore) CreateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = *p
	return nil
}

func (s *mockStore) UpdateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[p.ID]; !ok {
		return errNotFound
	}
	s.providers[p.ID] = *p
	return nil
}

func (s *mockStore) DeleteProvider(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providers, id)
	return nil
}

func (s *mockStore) RollQuotaWindow(_ context.Context, providerID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return false, errNotFound
	}
	if p.TokenResetInterval > 0 && now.Sub(p.LastResetAt) >= p.TokenResetInterval {
		p.LastResetAt = now
		s.providers[providerID] = p
		s.usedTokens[providerID] = 0
		s.rolled = true
		return true, nil
	}
	return false, nil
}

func (s *mockStore) UsedTokens(_ context.Context, providerID string, _, _ time.Time) (int64, error) {
	if s.usedTokensErr != nil {
		return 0, s.usedTokensErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedTokens[providerID], nil
}

func (s *mockStore) ListModels(context.Context) ([]provider.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) GetModel(_ context.Context, id string) (*provider.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return nil, errNotFound
	}
	return &m, nil
}

func (s *mockStore) GetDefaultModel(context.Context) (*provider.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.IsDefault {
			return &m, nil
		}
	}
	return nil, errNotFound
}

func (s *mockStore) CreateModel(_ context.Context, m *provider.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = *m
	return nil
}

func (s *mockStore) UpdateModel(_ context.Context, m *provider.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[m.ID]; !ok {
		return errNotFound
	}
	s.models[m.ID] = *m
	return nil
}

func (s *mockStore) DeleteModel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, id)
	return nil
}

func (s *mockStore) ListCriteria(context.Context) ([]feedback.Criterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feedback.Criterion, 0, len(s.criteria))
	for _, c := range s.criteria {
		out = append(out, c)
	}
	return out, nil
}

func (s *mockStore) GetCriterion(_ context.Context, id string) (*feedback.Criterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.criteria[id]
	if !ok {
		return nil, errNotFound
	}
	return &c, nil
}

func (s *mockStore) CreateCriterion(_ context.Context, c *feedback.Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria[c.ID] = *c
	return nil
}

func (s *mockStore) UpdateCriterion(_ context.Context, c *feedback.Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.criteria[c.ID]; !ok {
		return errNotFound
	}
	s.criteria[c.ID] = *c
	return nil
}

func (s *mockStore) DeleteCriterion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.criteria, id)
	return nil
}

func (s *mockStore) ListFeedbacks(context.Context) ([]feedback.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feedback.Feedback, 0, len(s.feedbacks))
	for _, f := range s.feedbacks {
		f.Criteria = nil
		out = append(out, f)
	}
	return out, nil
}

func (s *mockStore) GetFeedback(_ context.Context, id string) (*feedback.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedbacks[id]
	if !ok {
		return nil, errNotFound
	}
	criteria := make([]feedback.RankedCriterion, len(f.Criteria))
	copy(criteria, f.Criteria)
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].Rank < criteria[j].Rank })
	f.Criteria = criteria
	return &f, nil
}

func (s *mockStore) CreateFeedback(_ context.Context, f *feedback.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbacks[f.ID] = *f
	return nil
}

func (s *mockStore) UpdateFeedback(_ context.Context, f *feedback.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feedbacks[f.ID]; !ok {
		return errNotFound
	}
	s.feedbacks[f.ID] = *f
	return nil
}

func (s *mockStore) DeleteFeedback(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feedbacks, id)
	return nil
}

func (s *mockStore) AttachCriterion(_ context.Context, feedbackID, criterionID string, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedbacks[feedbackID]
	if !ok {
		return errNotFound
	}
	c, ok := s.criteria[criterionID]
	if !ok {
		return errNotFound
	}
	for _, rc := range f.Criteria {
		if rc.Rank == rank {
			return errors.New("duplicate rank")
		}
	}
	f.Criteria = append(f.Criteria, feedback.RankedCriterion{Criterion: c, Rank: rank})
	s.feedbacks[feedbackID] = f
	return nil
}

func (s *mockStore) DetachCriterion(_ context.Context, feedbackID, criterionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedbacks[feedbackID]
	if !ok {
		return errNotFound
	}
	kept := f.Criteria[:0]
	for _, rc := range f.Criteria {
		if rc.ID != criterionID {
			kept = append(kept, rc)
		}
	}
	f.Criteria = kept
	s.feedbacks[feedbackID] = f
	return nil
}

func (s *mockStore) CreateSession(_ context.Context, sess *feedback.Session) (bool, error) {
	if s.createSessionErr != nil {
		return false, s.createSessionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.CorrelationID == sess.CorrelationID {
			return false, nil
		}
	}
	s.sessions[sess.ID] = *sess
	return true, nil
}

func (s *mockStore) GetSession(_ context.Context, id string) (*feedback.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errNotFound
	}
	return &sess, nil
}

func (s *mockStore) GetSessionByCorrelation(_ context.Context, correlationID string) (*feedback.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.CorrelationID == correlationID {
			return &sess, nil
		}
	}
	return nil, errNotFound
}

func (s *mockStore) ListSessions(_ context.Context, feedbackID string, limit int) ([]feedback.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feedback.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if feedbackID != "" && sess.FeedbackID != feedbackID {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *mockStore) SetSessionScore(_ context.Context, id string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errNotFound
	}
	sess.NPSScore = &score
	s.sessions[id] = sess
	return nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.published))
	for _, p := range q.published {
		out = append(out, p.subject)
	}
	return out
}

// mockBroadcaster implements broadcast.Broadcaster for testing.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

// mockCache implements cache.Cache for testing.
type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}
