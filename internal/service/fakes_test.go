package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/notify"
	"github.com/sratov/TimeBankingBot/internal/repository"
)

// memStore - хранилище в памяти для тестов сервисов.
// txMu сериализует транзакции, как это делают блокировки строк в PostgreSQL.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users        map[uuid.UUID]models.User
	byTelegram   map[int64]uuid.UUID
	listings     map[uuid.UUID]models.Listing
	transactions []models.Transaction
	friendships  map[uuid.UUID]models.Friendship
	sessions     map[uuid.UUID]models.Session

	clock   time.Time
	onMiss  func()
	failTxn error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]models.User),
		byTelegram:  make(map[int64]uuid.UUID),
		listings:    make(map[uuid.UUID]models.Listing),
		friendships: make(map[uuid.UUID]models.Friendship),
		sessions:    make(map[uuid.UUID]models.Session),
		clock:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick возвращает строго возрастающее время, чтобы сортировка по created_at была детерминированной.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(name string, balance float64) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{
		ID:          uuid.New(),
		TelegramID:  int64(len(s.users) + 1000),
		DisplayName: name,
		Balance:     balance,
		CreatedAt:   s.tick(),
	}
	s.users[u.ID] = u
	s.byTelegram[u.TelegramID] = u.ID
	return &u
}

func (s *memStore) user(id uuid.UUID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) listing(id uuid.UUID) models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[id]
}

func (s *memStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *memStore) totalBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, u := range s.users {
		total += u.Balance
	}
	return models.RoundAmount(total)
}

func (s *memStore) minBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := true
	lowest := 0.0
	for _, u := range s.users {
		if first || u.Balance < lowest {
			lowest, first = u.Balance, false
		}
	}
	return lowest
}

// WithinTx реализует TxRunner с откатом к снимку при ошибке.
func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users := make(map[uuid.UUID]models.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	listings := make(map[uuid.UUID]models.Listing, len(s.listings))
	for k, v := range s.listings {
		listings[k] = v
	}
	txLen := len(s.transactions)
	s.mu.Unlock()

	err := fn(ctx, &memTx{s: s})
	if err == nil && s.failTxn != nil {
		err = s.failTxn
	}
	if err != nil {
		s.mu.Lock()
		s.users = users
		s.listings = listings
		s.transactions = s.transactions[:txLen]
		s.mu.Unlock()
	}
	return err
}

type memTx struct {
	s *memStore
}

func (t *memTx) LockListing(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	return &l, nil
}

func (t *memTx) UpdateListing(_ context.Context, l *models.Listing) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l.UpdatedAt = t.s.tick()
	t.s.listings[l.ID] = *l
	return nil
}

func (t *memTx) LockUsers(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	locked := make(map[uuid.UUID]*models.User, len(ids))
	for _, id := range ids {
		u, ok := t.s.users[id]
		if !ok {
			return nil, repository.ErrUserNotFound
		}
		locked[id] = &u
	}
	return locked, nil
}

func (t *memTx) UpdateBalances(_ context.Context, u *models.User) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	stored := t.s.users[u.ID]
	stored.Balance = u.Balance
	stored.EarnedHours = u.EarnedHours
	stored.SpentHours = u.SpentHours
	stored.UpdatedAt = t.s.tick()
	t.s.users[u.ID] = stored
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *models.Transaction) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	tr.CreatedAt = t.s.tick()
	t.s.transactions = append(t.s.transactions, *tr)
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, tr := range t.s.transactions {
		if tr.ID == id {
			found := tr
			return &found, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.byTelegram[u.TelegramID]; ok {
		return repository.ErrUserExists
	}
	u.ID = uuid.New()
	u.CreatedAt = r.s.tick()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = *u
	r.s.byTelegram[u.TelegramID] = u.ID
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.Lock()
	id, ok := r.s.byTelegram[telegramID]
	u := r.s.users[id]
	onMiss := r.s.onMiss
	r.s.mu.Unlock()

	if !ok {
		if onMiss != nil {
			onMiss()
		}
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) UpdateProfile(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[u.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.DisplayName = u.DisplayName
	stored.AvatarURL = u.AvatarURL
	stored.UpdatedAt = r.s.tick()
	r.s.users[u.ID] = stored
	return nil
}

func (r memUsers) Search(_ context.Context, query string, excludeID uuid.UUID, limit int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	result := []models.User{}
	for _, u := range r.s.users {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.DisplayName), q) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DisplayName < result[j].DisplayName })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r memUsers) ListPartners(_ context.Context, userID uuid.UUID) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	result := []models.User{}
	for _, l := range r.s.listings {
		if l.Status != models.ListingStatusCompleted || l.WorkerID == nil {
			continue
		}
		var other uuid.UUID
		switch userID {
		case l.CreatorID:
			other = *l.WorkerID
		case *l.WorkerID:
			other = l.CreatorID
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			result = append(result, r.s.users[other])
		}
	}
	return result, nil
}

type memListings struct{ s *memStore }

func (r memListings) Create(_ context.Context, l *models.Listing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = r.s.tick()
	l.UpdatedAt = l.CreatedAt
	r.s.listings[l.ID] = *l
	return nil
}

func (r memListings) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	return &l, nil
}

func (r memListings) List(_ context.Context, f models.ListingFilter) ([]models.Listing, error) {
	return r.filter(func(l models.Listing) bool {
		return (f.Status == nil || l.Status == *f.Status) && (f.Type == nil || l.Type == *f.Type)
	}, f.Limit, f.Offset), nil
}

func (r memListings) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	return r.filter(func(l models.Listing) bool { return l.IsParticipant(userID) }, limit, offset), nil
}

func (r memListings) filter(match func(models.Listing) bool, limit, offset int) []models.Listing {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Listing{}
	for _, l := range r.s.listings {
		if match(l) {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return page(result, limit, offset)
}

type memTransactions struct{ s *memStore }

func (r memTransactions) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Transaction{}
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		tr := r.s.transactions[i]
		if tr.PayerID == userID || tr.PayeeID == userID {
			result = append(result, tr)
		}
	}
	return page(result, limit, offset), nil
}

type memFriends struct{ s *memStore }

func (r memFriends) Create(_ context.Context, f *models.Friendship) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.friendships {
		if samePair(existing, f.RequesterID, f.TargetID) {
			return repository.ErrFriendshipExists
		}
	}
	f.ID = uuid.New()
	f.CreatedAt = r.s.tick()
	r.s.friendships[f.ID] = *f
	return nil
}

func (r memFriends) GetByID(_ context.Context, id uuid.UUID) (*models.Friendship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.friendships[id]
	if !ok {
		return nil, repository.ErrFriendshipNotFound
	}
	return &f, nil
}

func (r memFriends) FindBetween(_ context.Context, a, b uuid.UUID) (*models.Friendship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.friendships {
		if samePair(f, a, b) {
			found := f
			return &found, nil
		}
	}
	return nil, repository.ErrFriendshipNotFound
}

func (r memFriends) MarkAccepted(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.friendships[id]
	if !ok || f.Status != models.FriendshipStatusPending {
		return repository.ErrFriendshipNotPending
	}
	f.Status = models.FriendshipStatusAccepted
	r.s.friendships[id] = f
	return nil
}

func (r memFriends) DeletePending(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.friendships[id]
	if !ok || f.Status != models.FriendshipStatusPending {
		return repository.ErrFriendshipNotPending
	}
	delete(r.s.friendships, id)
	return nil
}

func (r memFriends) ListFriends(_ context.Context, userID uuid.UUID) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.User{}
	for _, f := range r.s.friendships {
		if f.Status == models.FriendshipStatusAccepted && (f.RequesterID == userID || f.TargetID == userID) {
			result = append(result, r.s.users[f.Other(userID)])
		}
	}
	return result, nil
}

func (r memFriends) ListIncoming(_ context.Context, userID uuid.UUID) ([]repository.IncomingRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []repository.IncomingRequest{}
	for _, f := range r.s.friendships {
		if f.Status == models.FriendshipStatusPending && f.TargetID == userID {
			from := r.s.users[f.RequesterID]
			result = append(result, repository.IncomingRequest{
				ID:              f.ID,
				CreatedAt:       f.CreatedAt,
				RequesterID:     from.ID,
				RequesterName:   from.DisplayName,
				RequesterAvatar: from.AvatarURL,
			})
		}
	}
	return result, nil
}

func (r memFriends) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.friendships {
		if f.Status == models.FriendshipStatusAccepted && samePair(f, a, b) {
			return true, nil
		}
	}
	return false, nil
}

type memSessions struct{ s *memStore }

func (r memSessions) Create(_ context.Context, session *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session.CreatedAt = r.s.tick()
	r.s.sessions[session.ID] = *session
	return nil
}

func (r memSessions) Consume(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrSessionNotFound
	}
	delete(r.s.sessions, id)
	return &session, nil
}

func (r memSessions) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Session{}
	for _, session := range r.s.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result, nil
}

func (r memSessions) DeleteForUser(_ context.Context, id, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || session.UserID != userID {
		return repository.ErrSessionNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r memSessions) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, session := range r.s.sessions {
		if !session.ExpiresAt.After(time.Now()) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func samePair(f models.Friendship, a, b uuid.UUID) bool {
	return (f.RequesterID == a && f.TargetID == b) || (f.RequesterID == b && f.TargetID == a)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]notify.EventType, 0, len(p.events))
	for _, e := range p.events {
		result = append(result, e.Type)
	}
	return result
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions map[string]int
	transfers   map[string]float64
	logins      map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		transitions: map[string]int{},
		transfers:   map[string]float64{},
		logins:      map[string]int{},
	}
}

func (o *recordingObserver) Transition(name, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions[name+":"+outcome]++
}

func (o *recordingObserver) Transfer(kind string, hours float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transfers[kind] += hours
}

func (o *recordingObserver) Login(method, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins[method+":"+outcome]++
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
