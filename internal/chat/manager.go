package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/llm"
	"github.com/wuwenbin0122/finbot/internal/models"
)

const (
	defaultPersistTimeout = 10 * time.Second
	defaultStartTimeout   = 30 * time.Second
)

// ContextSource renders the financial data block for a user.
type ContextSource interface {
	Context(ctx context.Context, id auth.Identity) string
}

// Options wires a Manager's collaborators. Only the backend is required;
// without History the manager keeps transcripts in memory only.
type Options struct {
	History        HistoryStore
	Context        ContextSource
	Logger         *zap.SugaredLogger
	PersistTimeout time.Duration
	StartTimeout   time.Duration
	Now            func() time.Time
}

// Snapshot is a consistent copy of a manager's visible state.
type Snapshot struct {
	State     State            `json:"state"`
	ChatID    string           `json:"chatId,omitempty"`
	Persona   models.Persona   `json:"persona"`
	Messages  []models.Message `json:"messages"`
	Followups []string         `json:"followups"`
	Error     string           `json:"error,omitempty"`
}

// Reply is the result of a completed send. Failed replies carry the inline
// error text as the bot message and no follow-ups.
type Reply struct {
	User      models.Message `json:"user"`
	Bot       models.Message `json:"bot"`
	Followups []string       `json:"followups"`
	Failed    bool           `json:"failed"`
}

// Manager drives one conversation at a time for one identity.
//
// Starting a session replaces the previous one: the in-flight stream, if
// any, is cancelled and its late chunks are dropped. Only one send may be in
// flight. Persistence runs in the background and never changes what the user
// has already seen.
type Manager struct {
	backend        llm.Backend
	history        HistoryStore
	context        ContextSource
	logger         *zap.SugaredLogger
	persistTimeout time.Duration
	startTimeout   time.Duration
	now            func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	identity   auth.Identity
	profile    models.UserProfile
	session    llm.Session
	transcript transcript
	chatID     string
	titled     bool
	followups  []string
	startErr   string
	lastID     int64

	persisting sync.WaitGroup
}

func NewManager(backend llm.Backend, opts Options) *Manager {
	m := &Manager{
		backend:        backend,
		history:        opts.History,
		context:        opts.Context,
		logger:         opts.Logger,
		persistTimeout: opts.PersistTimeout,
		startTimeout:   opts.StartTimeout,
		now:            opts.Now,
		profile:        models.DefaultProfile(),
	}
	if m.logger == nil {
		m.logger = zap.NewNop().Sugar()
	}
	if m.persistTimeout <= 0 {
		m.persistTimeout = defaultPersistTimeout
	}
	if m.startTimeout <= 0 {
		m.startTimeout = defaultStartTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Start opens a fresh session for id using profile, discarding the current
// transcript. It is valid from any state. A failure leaves the manager in
// StateFailed until the next Start. The session outlives the caller, so ctx
// only contributes its values; the start is bounded by StartTimeout.
func (m *Manager) Start(ctx context.Context, id auth.Identity, profile models.UserProfile) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.startTimeout)
	defer cancel()

	m.mu.Lock()
	gen := m.supersedeLocked()
	m.state = StateStarting
	m.identity = id
	m.profile = profile
	m.session = nil
	m.transcript.reset(nil)
	m.chatID = ""
	m.titled = false
	m.followups = nil
	m.startErr = ""
	m.mu.Unlock()

	financial := finance.NoDataText
	if m.context != nil {
		financial = m.context.Context(ctx, id)
	}

	session, err := m.backend.StartSession(ctx, llm.Spec{
		Instructions: Instructions(profile, financial),
		Persona:      profile.Persona,
	})
	if err != nil {
		m.logger.Errorw("start chat session", "user_id", id.UserID, "error", err)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation == gen {
			m.state = StateFailed
			m.startErr = StartFailedText
		}
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	chatID := m.createChat(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return ErrSuperseded
	}
	m.session = session
	m.chatID = chatID
	m.state = StateReady
	return nil
}

// NewChat restarts with the identity and latest profile snapshot.
func (m *Manager) NewChat(ctx context.Context) error {
	m.mu.Lock()
	id, profile := m.identity, m.profile
	m.mu.Unlock()
	return m.Start(ctx, id, profile)
}

// SetProfile records the latest profile without restarting and reports
// whether the persona changed.
func (m *Manager) SetProfile(profile models.UserProfile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.profile.Persona != profile.Persona
	m.profile = profile
	return changed
}

// supersedeLocked invalidates the running generation and cancels its stream.
func (m *Manager) supersedeLocked() uint64 {
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m.generation
}

func (m *Manager) createChat(ctx context.Context, id auth.Identity) string {
	if m.history == nil || !id.Authenticated() {
		return ""
	}
	chatID, err := m.history.CreateChat(ctx, id.UserID)
	if err != nil {
		m.logger.Warnw("create chat failed, continuing without persistence", "user_id", id.UserID, "error", err)
		return ""
	}
	return chatID
}

// Send submits text and streams the reply. observe, when non-nil, receives
// the user message, the placeholder, and then the reply with its full text
// after every chunk. Stream failures are not returned as errors: they end
// the exchange with the inline error text and Reply.Failed set.
func (m *Manager) Send(ctx context.Context, text string, observe func(models.Message)) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if observe == nil {
		observe = func(models.Message) {}
	}

	m.mu.Lock()
	switch m.state {
	case StateReady:
	case StateSending:
		m.mu.Unlock()
		return nil, ErrBusy
	default:
		m.mu.Unlock()
		return nil, ErrNotReady
	}

	userID, botID := m.nextIDsLocked()
	user := finished(models.Message{ID: userID, Text: text, Sender: models.SenderUser})
	bot := placeholder(botID)
	m.transcript.push(user, bot)
	m.state = StateSending
	m.followups = nil

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.cancel = cancel
	gen := m.generation
	session := m.session
	userMsg, pending := user.snapshot(), bot.snapshot()
	m.mu.Unlock()

	observe(userMsg)
	observe(pending)

	var streamErr error
	for chunk, err := range session.SendStream(streamCtx, text) {
		if err != nil {
			streamErr = err
			break
		}
		msg, ok := m.apply(gen, bot, chunk)
		if !ok {
			return nil, ErrSuperseded
		}
		observe(msg)
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return nil, ErrSuperseded
	}
	m.cancel = nil
	m.state = StateReady
	if streamErr == nil && bot.empty() {
		streamErr = llm.ErrEmptyResponse
	}

	if streamErr != nil {
		bot.replace(failureText(streamErr))
		bot.finalize()
		m.followups = nil
		final := bot.snapshot()
		userID, chatID := m.identity.UserID, m.chatID
		m.mu.Unlock()

		m.logger.Warnw("chat reply failed", "user_id", userID, "chat_id", chatID, "error", streamErr)
		observe(final)
		return &Reply{User: userMsg, Bot: final, Failed: true}, nil
	}

	bot.finalize()
	final := bot.snapshot()
	m.followups = Followups(text, final.Text)
	followups := append([]string(nil), m.followups...)

	var title string
	if !m.titled && m.chatID != "" {
		m.titled = true
		title = Title(text)
	}
	id, chatID := m.identity, m.chatID
	m.mu.Unlock()

	observe(final)
	m.persist(ctx, id, chatID, []models.Message{userMsg, final}, title)
	return &Reply{User: userMsg, Bot: final, Followups: followups}, nil
}

// apply appends chunk to the reply if gen is still current.
func (m *Manager) apply(gen uint64, bot *handle, chunk string) (models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return models.Message{}, false
	}
	bot.write(chunk)
	return bot.snapshot(), true
}

// nextIDsLocked derives ids from the current millisecond. The reply id is
// the user id plus one; ids never repeat within a manager.
func (m *Manager) nextIDsLocked() (string, string) {
	userID := m.now().UnixMilli()
	if userID <= m.lastID {
		userID = m.lastID + 1
	}
	botID := userID + 1
	m.lastID = botID
	return strconv.FormatInt(userID, 10), strconv.FormatInt(botID, 10)
}

func failureText(err error) string {
	if errors.Is(err, llm.ErrMissingAPIKey) || strings.Contains(err.Error(), "API key") {
		return APIKeyFailedText
	}
	return ReplyFailedText
}

func (m *Manager) persist(ctx context.Context, id auth.Identity, chatID string, msgs []models.Message, title string) {
	if m.history == nil || chatID == "" || !id.Authenticated() {
		return
	}

	base := context.WithoutCancel(ctx)
	m.persisting.Add(1)
	go func() {
		defer m.persisting.Done()
		ctx, cancel := context.WithTimeout(base, m.persistTimeout)
		defer cancel()

		m.report(id, outcome("append messages", chatID, m.history.AppendMessages(ctx, id.UserID, chatID, msgs)))
		if title != "" {
			m.report(id, outcome("rename chat", chatID, m.history.RenameChat(ctx, id.UserID, chatID, title)))
		}
	}()
}

func (m *Manager) report(id auth.Identity, o Outcome) {
	if o.OK() {
		m.logger.Debugw("chat persisted", "op", o.Op, "user_id", id.UserID, "chat_id", o.ChatID)
		return
	}
	m.logger.Warnw("chat persistence failed", "op", o.Op, "user_id", id.UserID, "chat_id", o.ChatID, "error", o.Err)
}

// Wait blocks until background persistence has finished.
func (m *Manager) Wait() {
	m.persisting.Wait()
}

// Select replaces the transcript with a persisted chat. The live session is
// kept; further exchanges are appended to the selected chat.
func (m *Manager) Select(ctx context.Context, chatID string) error {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if m.history == nil || !id.Authenticated() {
		return ErrNoHistory
	}
	msgs, err := m.history.LoadMessages(ctx, id.UserID, chatID)
	if err != nil {
		return fmt.Errorf("load chat %s: %w", chatID, err)
	}
	if len(msgs) == 0 {
		return ErrChatNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(chatID, msgs)
}

// openLocked swaps in a persisted transcript, abandoning any reply still
// streaming. It refuses unless a session is live.
func (m *Manager) openLocked(chatID string, msgs []models.Message) error {
	switch m.state {
	case StateReady:
	case StateSending:
		m.supersedeLocked()
		m.state = StateReady
	default:
		return ErrNotReady
	}
	m.transcript.reset(msgs)
	m.chatID = chatID
	m.titled = true
	m.followups = nil
	return nil
}

// Resume opens the most recently active chat, if there is one with
// messages. Failures are logged and leave the fresh session in place.
func (m *Manager) Resume(ctx context.Context) bool {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if m.history == nil || !id.Authenticated() {
		return false
	}
	chats, err := m.history.ListChats(ctx, id.UserID)
	if err != nil {
		m.logger.Warnw("list chats for resume", "user_id", id.UserID, "error", err)
		return false
	}
	if len(chats) == 0 {
		return false
	}
	msgs, err := m.history.LoadMessages(ctx, id.UserID, chats[0].ID)
	if err != nil {
		m.logger.Warnw("load chat for resume", "user_id", id.UserID, "chat_id", chats[0].ID, "error", err)
		return false
	}
	if len(msgs) == 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(chats[0].ID, msgs) == nil
}

// ListChats returns the user's chats, most recently active first.
func (m *Manager) ListChats(ctx context.Context) ([]models.ChatRecord, error) {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if m.history == nil || !id.Authenticated() {
		return []models.ChatRecord{}, nil
	}
	return m.history.ListChats(ctx, id.UserID)
}

// Delete removes a persisted chat. Deleting the active chat starts a new
// session.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	id, active := m.identity, m.chatID
	m.mu.Unlock()

	if m.history == nil || !id.Authenticated() {
		return ErrNoHistory
	}
	if err := m.history.DeleteChat(ctx, id.UserID, chatID); err != nil {
		return err
	}
	if chatID == active {
		return m.NewChat(ctx)
	}
	return nil
}

// ClearAll removes every persisted chat and starts a new session.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if m.history == nil || !id.Authenticated() {
		return ErrNoHistory
	}
	if err := m.history.DeleteAllChats(ctx, id.UserID); err != nil {
		return err
	}
	return m.NewChat(ctx)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:     m.state,
		ChatID:    m.chatID,
		Persona:   m.profile.Persona,
		Messages:  m.transcript.messages(),
		Followups: append([]string{}, m.followups...),
		Error:     m.startErr,
	}
}
