package db

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/models"
)

// Memory implements every store in process. It backs tests and runs where no
// database is configured.
type Memory struct {
	mu           sync.Mutex
	users        []models.User
	profiles     map[string]models.UserProfile
	chats        map[string]*memoryChat
	transactions map[string][]models.Transaction
	holdings     map[string][]models.Holding
	nextID       int64
	chatSeq      int64
	now          func() time.Time
}

type memoryChat struct {
	record   models.ChatRecord
	seq      int64
	messages []models.Message
}

func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[string]models.UserProfile),
		chats:        make(map[string]*memoryChat),
		transactions: make(map[string][]models.Transaction),
		holdings:     make(map[string][]models.Holding),
		now:          time.Now,
	}
}

func (m *Memory) CreateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return auth.ErrUserExists
		}
		if user.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return auth.ErrEmailExists
		}
	}
	m.users = append(m.users, user)
	return nil
}

func (m *Memory) FindUser(ctx context.Context, identifier string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var byEmail *models.User
	for i := range m.users {
		u := m.users[i]
		if strings.EqualFold(u.Username, identifier) {
			return &u, nil
		}
		if byEmail == nil && u.Email != "" && strings.EqualFold(u.Email, identifier) {
			byEmail = &u
		}
	}
	return byEmail, nil
}

func (m *Memory) TouchUser(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == userID {
			m.users[i].UpdatedAt = at
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile.UpdatedAt = m.now().UTC()
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *Memory) EnsureProfile(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; ok {
		return false, nil
	}
	p := models.DefaultProfile()
	p.UserID = userID
	p.UpdatedAt = m.now().UTC()
	m.profiles[userID] = p
	return true, nil
}

func (m *Memory) CreateChat(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatSeq++
	id := uuid.NewString()
	m.chats[id] = &memoryChat{
		record: models.ChatRecord{ID: id, UserID: userID, CreatedAt: m.now().UTC()},
		seq:    m.chatSeq,
	}
	return id, nil
}

func (m *Memory) chat(userID, chatID string) (*memoryChat, error) {
	c, ok := m.chats[chatID]
	if !ok || c.record.UserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *Memory) AppendMessages(ctx context.Context, userID, chatID string, msgs []models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.chat(userID, chatID)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	c.record.LastMessageAt = &now
	m.chatSeq++
	c.seq = m.chatSeq
	c.messages = append(c.messages, msgs...)
	return nil
}

func (m *Memory) ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []*memoryChat
	for _, c := range m.chats {
		if c.record.UserID == userID {
			owned = append(owned, c)
		}
	}
	slices.SortFunc(owned, func(a, b *memoryChat) int {
		switch {
		case a.record.LastMessageAt != nil && b.record.LastMessageAt == nil:
			return -1
		case a.record.LastMessageAt == nil && b.record.LastMessageAt != nil:
			return 1
		case a.record.LastMessageAt != nil:
			if c := b.record.LastMessageAt.Compare(*a.record.LastMessageAt); c != 0 {
				return c
			}
		}
		if c := b.record.CreatedAt.Compare(a.record.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	out := make([]models.ChatRecord, 0, len(owned))
	for _, c := range owned {
		out = append(out, c.record)
	}
	return out, nil
}

func (m *Memory) LoadMessages(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.chat(userID, chatID)
	if err != nil {
		return nil, err
	}
	return append([]models.Message{}, c.messages...), nil
}

func (m *Memory) RenameChat(ctx context.Context, userID, chatID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.chat(userID, chatID)
	if err != nil {
		return err
	}
	c.record.Title = title
	return nil
}

func (m *Memory) DeleteChat(ctx context.Context, userID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.chat(userID, chatID); err != nil {
		return err
	}
	delete(m.chats, chatID)
	return nil
}

func (m *Memory) DeleteAllChats(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chats {
		if c.record.UserID == userID {
			delete(m.chats, id)
		}
	}
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := append([]models.Transaction{}, m.transactions[userID]...)
	slices.SortFunc(txs, func(a, b models.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return txs, nil
}

func (m *Memory) AddTransaction(ctx context.Context, userID string, t models.Transaction) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t = t.Signed()
	t.ID = m.nextID
	m.transactions[userID] = append(m.transactions[userID], t)
	return &t, nil
}

func (m *Memory) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.transactions[userID]
	i := slices.IndexFunc(txs, func(t models.Transaction) bool { return t.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.transactions[userID] = slices.Delete(txs, i, i+1)
	return nil
}

func (m *Memory) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	holdings := append([]models.Holding{}, m.holdings[userID]...)
	slices.SortFunc(holdings, func(a, b models.Holding) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return holdings, nil
}

func (m *Memory) AddHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	h.ID = m.nextID
	m.holdings[userID] = append(m.holdings[userID], h)
	return &h, nil
}

func (m *Memory) DeleteHolding(ctx context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	holdings := m.holdings[userID]
	i := slices.IndexFunc(holdings, func(h models.Holding) bool { return h.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.holdings[userID] = slices.Delete(holdings, i, i+1)
	return nil
}
