package chat_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/chat"
	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/llm"
	"github.com/wuwenbin0122/finbot/internal/models"
)

type streamFunc func(ctx context.Context, text string) iter.Seq2[string, error]

type fakeBackend struct {
	mu       sync.Mutex
	startErr error
	stream   streamFunc
	sends    int
	specs    []llm.Spec
}

func (b *fakeBackend) StartSession(ctx context.Context, spec llm.Spec) (llm.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.specs = append(b.specs, spec)
	if b.startErr != nil {
		return nil, b.startErr
	}
	return fakeSession{b}, nil
}

func (b *fakeBackend) sendCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sends
}

type fakeSession struct {
	b *fakeBackend
}

func (s fakeSession) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	s.b.mu.Lock()
	s.b.sends++
	stream := s.b.stream
	s.b.mu.Unlock()
	return stream(ctx, text)
}

func replyWith(chunks ...string) streamFunc {
	return failAfter(nil, chunks...)
}

func failAfter(err error, chunks ...string) streamFunc {
	return func(ctx context.Context, text string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
			if err != nil {
				yield("", err)
			}
		}
	}
}

// flakyHistory fails selected operations of an in-memory store.
type flakyHistory struct {
	*db.Memory
	createErr error
	appendErr error
}

func (f *flakyHistory) CreateChat(ctx context.Context, userID string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.Memory.CreateChat(ctx, userID)
}

func (f *flakyHistory) AppendMessages(ctx context.Context, userID, chatID string, msgs []models.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Memory.AppendMessages(ctx, userID, chatID, msgs)
}

var user = auth.Identity{UserID: "user-1"}

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func startManager(t *testing.T, backend *fakeBackend, history chat.HistoryStore) *chat.Manager {
	t.Helper()
	m := chat.NewManager(backend, chat.Options{History: history, Now: fixedClock})
	if err := m.Start(context.Background(), user, models.DefaultProfile()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if m.State() != chat.StateReady {
		t.Fatalf("expected ready, got %s", m.State())
	}
	return m
}

func TestSendStreamsFullTextAndSuggestsFollowups(t *testing.T) {
	backend := &fakeBackend{stream: replyWith("Track spending ", "and set savings goals.")}
	m := startManager(t, backend, nil)

	var observed []models.Message
	reply, err := m.Send(context.Background(), "How do I budget better?", func(msg models.Message) {
		observed = append(observed, msg)
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if reply.User.ID != "1700000000000" || reply.Bot.ID != "1700000000001" {
		t.Fatalf("unexpected ids user=%s bot=%s", reply.User.ID, reply.Bot.ID)
	}
	if reply.Bot.Text != "Track spending and set savings goals." || reply.Bot.Pending {
		t.Fatalf("unexpected final reply %+v", reply.Bot)
	}
	if !slices.Equal(reply.Followups, budgetFollowups) {
		t.Fatalf("expected budget follow-ups, got %q", reply.Followups)
	}

	var botTexts []string
	for _, msg := range observed {
		if msg.Sender == models.SenderBot {
			botTexts = append(botTexts, msg.Text)
		}
	}
	want := []string{"", "Track spending ", "Track spending and set savings goals.", "Track spending and set savings goals."}
	if !slices.Equal(botTexts, want) {
		t.Fatalf("expected cumulative snapshots %q, got %q", want, botTexts)
	}
	if !observed[1].Pending {
		t.Fatalf("expected placeholder to be pending")
	}

	snap := m.Snapshot()
	if snap.State != chat.StateReady || len(snap.Messages) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !slices.Equal(snap.Followups, budgetFollowups) {
		t.Fatalf("expected follow-ups in snapshot, got %q", snap.Followups)
	}

	second, err := m.Send(context.Background(), "And then?", nil)
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if second.User.ID != "1700000000002" {
		t.Fatalf("expected ids to keep increasing, got %s", second.User.ID)
	}
}

func TestSendEmptyMessageDoesNothing(t *testing.T) {
	backend := &fakeBackend{stream: replyWith("unused")}
	m := startManager(t, backend, nil)

	for _, text := range []string{"", "   \n\t"} {
		if _, err := m.Send(context.Background(), text, nil); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %q, got %v", text, err)
		}
	}
	if backend.sendCount() != 0 {
		t.Fatalf("expected no backend call, got %d", backend.sendCount())
	}
	if msgs := m.Snapshot().Messages; len(msgs) != 0 {
		t.Fatalf("expected empty transcript, got %+v", msgs)
	}
}

func TestSendFailureReplacesPartialText(t *testing.T) {
	backend := &fakeBackend{stream: failAfter(errors.New("stream reset"), "Hel")}
	m := startManager(t, backend, nil)

	var last models.Message
	reply, err := m.Send(context.Background(), "Tell me about taxes", func(msg models.Message) { last = msg })
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !reply.Failed || reply.Bot.Text != chat.ReplyFailedText {
		t.Fatalf("expected inline failure text, got %+v", reply)
	}
	if last.Text != chat.ReplyFailedText {
		t.Fatalf("expected observer to see failure text, got %q", last.Text)
	}

	snap := m.Snapshot()
	if snap.State != chat.StateReady {
		t.Fatalf("expected ready after failure, got %s", snap.State)
	}
	if len(snap.Followups) != 0 {
		t.Fatalf("expected follow-ups cleared, got %q", snap.Followups)
	}
	if snap.Messages[1].Text != chat.ReplyFailedText || snap.Messages[1].Pending {
		t.Fatalf("unexpected bot message %+v", snap.Messages[1])
	}

	backend.mu.Lock()
	backend.stream = replyWith("Recovered.")
	backend.mu.Unlock()
	if reply, err := m.Send(context.Background(), "Again", nil); err != nil || reply.Failed {
		t.Fatalf("expected session usable after failure, got %+v err=%v", reply, err)
	}
}

func TestSendMissingAPIKeyText(t *testing.T) {
	backend := &fakeBackend{stream: failAfter(llm.ErrMissingAPIKey)}
	m := startManager(t, backend, nil)

	reply, err := m.Send(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply.Bot.Text != chat.APIKeyFailedText {
		t.Fatalf("expected API key message, got %q", reply.Bot.Text)
	}
}

func TestSendEmptyReplyIsFailure(t *testing.T) {
	m := startManager(t, &fakeBackend{stream: replyWith()}, nil)

	reply, err := m.Send(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !reply.Failed || reply.Bot.Text != chat.ReplyFailedText {
		t.Fatalf("expected failure for empty reply, got %+v", reply)
	}
}

type blockingStream struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{started: make(chan struct{}), release: make(chan struct{})}
}

// stream yields one chunk, then waits for release before yielding a late
// chunk without looking at ctx.
func (b *blockingStream) stream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("partial ", nil) {
			return
		}
		close(b.started)
		<-b.release
		yield("LATE", nil)
	}
}

type sendResult struct {
	reply *chat.Reply
	err   error
}

func sendAsync(m *chat.Manager, text string) <-chan sendResult {
	done := make(chan sendResult, 1)
	go func() {
		reply, err := m.Send(context.Background(), text, nil)
		done <- sendResult{reply, err}
	}()
	return done
}

func TestSendRejectsConcurrentSend(t *testing.T) {
	blocking := newBlockingStream()
	m := startManager(t, &fakeBackend{stream: blocking.stream}, nil)

	first := sendAsync(m, "first")
	<-blocking.started

	if m.State() != chat.StateSending {
		t.Fatalf("expected sending, got %s", m.State())
	}
	if _, err := m.Send(context.Background(), "second", nil); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(blocking.release)
	res := <-first
	if res.err != nil || res.reply.Bot.Text != "partial LATE" {
		t.Fatalf("unexpected first result %+v err=%v", res.reply, res.err)
	}
	if len(m.Snapshot().Messages) != 2 {
		t.Fatalf("expected the rejected send to leave no messages")
	}
}

func TestNewChatDropsStaleChunks(t *testing.T) {
	blocking := newBlockingStream()
	history := db.NewMemory()
	m := startManager(t, &fakeBackend{stream: blocking.stream}, history)
	firstChat := m.Snapshot().ChatID

	pending := sendAsync(m, "budget please")
	<-blocking.started

	if err := m.NewChat(context.Background()); err != nil {
		t.Fatalf("new chat failed: %v", err)
	}
	close(blocking.release)

	res := <-pending
	if !errors.Is(res.err, chat.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", res.err)
	}

	snap := m.Snapshot()
	if snap.State != chat.StateReady || len(snap.Messages) != 0 {
		t.Fatalf("expected fresh ready session, got %+v", snap)
	}
	if snap.ChatID == firstChat || snap.ChatID == "" {
		t.Fatalf("expected a new chat id, got %q", snap.ChatID)
	}

	m.Wait()
	msgs, err := history.LoadMessages(context.Background(), user.UserID, firstChat)
	if err != nil {
		t.Fatalf("load messages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected abandoned exchange not persisted, got %+v", msgs)
	}
}

func TestExchangeRoundTrip(t *testing.T) {
	history := db.NewMemory()
	m := startManager(t, &fakeBackend{stream: replyWith("Track spending ", "and set savings goals.")}, history)
	chatID := m.Snapshot().ChatID

	reply, err := m.Send(context.Background(), "How do I budget better?", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	m.Wait()

	loaded, err := history.LoadMessages(context.Background(), user.UserID, chatID)
	if err != nil {
		t.Fatalf("load messages failed: %v", err)
	}
	want := []models.Message{reply.User, reply.Bot}
	if !slices.Equal(loaded, want) {
		t.Fatalf("expected %+v, got %+v", want, loaded)
	}

	chats, err := m.ListChats(context.Background())
	if err != nil {
		t.Fatalf("list chats failed: %v", err)
	}
	if len(chats) != 1 || chats[0].Title != "How do I budget better?" {
		t.Fatalf("expected titled chat, got %+v", chats)
	}
}

func TestTitleWrittenOnFirstExchangeOnly(t *testing.T) {
	history := db.NewMemory()
	m := startManager(t, &fakeBackend{stream: replyWith("ok")}, history)

	for _, text := range []string{"First question", "Second question"} {
		if _, err := m.Send(context.Background(), text, nil); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	m.Wait()

	chats, _ := history.ListChats(context.Background(), user.UserID)
	if len(chats) != 1 || chats[0].Title != "First question" {
		t.Fatalf("expected title from first exchange, got %+v", chats)
	}
}

func TestPersistenceFailureIsSilent(t *testing.T) {
	history := &flakyHistory{Memory: db.NewMemory(), appendErr: errors.New("connection reset")}
	m := startManager(t, &fakeBackend{stream: replyWith("Saved locally.")}, history)

	reply, err := m.Send(context.Background(), "Hello", nil)
	if err != nil || reply.Failed {
		t.Fatalf("expected successful reply despite persistence failure, got %+v err=%v", reply, err)
	}
	m.Wait()

	snap := m.Snapshot()
	if len(snap.Messages) != 2 || snap.Messages[1].Text != "Saved locally." {
		t.Fatalf("expected transcript intact, got %+v", snap.Messages)
	}
}

func TestCreateChatFailureKeepsSessionUsable(t *testing.T) {
	history := &flakyHistory{Memory: db.NewMemory(), createErr: errors.New("unreachable")}
	m := startManager(t, &fakeBackend{stream: replyWith("Still here.")}, history)

	if id := m.Snapshot().ChatID; id != "" {
		t.Fatalf("expected no chat id, got %q", id)
	}
	reply, err := m.Send(context.Background(), "Hello", nil)
	if err != nil || reply.Bot.Text != "Still here." {
		t.Fatalf("expected in-memory session to work, got %+v err=%v", reply, err)
	}
	m.Wait()
}

func TestUnauthenticatedSessionSkipsPersistence(t *testing.T) {
	history := db.NewMemory()
	m := chat.NewManager(&fakeBackend{stream: replyWith("ok")}, chat.Options{History: history})
	if err := m.Start(context.Background(), auth.Identity{}, models.DefaultProfile()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := m.Send(context.Background(), "hi", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	m.Wait()

	if chats, _ := m.ListChats(context.Background()); len(chats) != 0 {
		t.Fatalf("expected no chats for anonymous session, got %+v", chats)
	}
}

func TestStartFailureEntersFailedState(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("backend unreachable"), stream: replyWith("ok")}
	m := chat.NewManager(backend, chat.Options{})

	err := m.Start(context.Background(), user, models.DefaultProfile())
	if !errors.Is(err, chat.ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}

	snap := m.Snapshot()
	if snap.State != chat.StateFailed || snap.Error != chat.StartFailedText || len(snap.Messages) != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, err := m.Send(context.Background(), "hi", nil); !errors.Is(err, chat.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	backend.mu.Lock()
	backend.startErr = nil
	backend.mu.Unlock()
	if err := m.NewChat(context.Background()); err != nil {
		t.Fatalf("expected manual retry to succeed, got %v", err)
	}
	if snap := m.Snapshot(); snap.State != chat.StateReady || snap.Error != "" {
		t.Fatalf("expected ready after retry, got %+v", snap)
	}
}

func TestStartUsesFinancialContext(t *testing.T) {
	backend := &fakeBackend{stream: replyWith("ok")}
	m := chat.NewManager(backend, chat.Options{Context: staticContext("- Net Cash Flow: ₹5,500.00")})

	profile := models.DefaultProfile()
	profile.Persona = models.PersonaProfessional
	if err := m.Start(context.Background(), user, profile); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	spec := backend.specs[0]
	if spec.Persona != models.PersonaProfessional {
		t.Fatalf("expected professional persona, got %s", spec.Persona)
	}
	if !strings.Contains(spec.Instructions, "- Net Cash Flow: ₹5,500.00") {
		t.Fatalf("expected financial context in instructions:\n%s", spec.Instructions)
	}
}

type staticContext string

func (s staticContext) Context(ctx context.Context, id auth.Identity) string {
	return string(s)
}

func TestDeleteActiveChatStartsNewSession(t *testing.T) {
	history := db.NewMemory()
	m := startManager(t, &fakeBackend{stream: replyWith("ok")}, history)
	active := m.Snapshot().ChatID

	if _, err := m.Send(context.Background(), "hello", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	m.Wait()

	if err := m.Delete(context.Background(), active); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	snap := m.Snapshot()
	if snap.ChatID == active || len(snap.Messages) != 0 || snap.State != chat.StateReady {
		t.Fatalf("expected a fresh session, got %+v", snap)
	}
}

func TestDeleteOtherChatKeepsSession(t *testing.T) {
	history := db.NewMemory()
	other, _ := history.CreateChat(context.Background(), user.UserID)
	m := startManager(t, &fakeBackend{stream: replyWith("ok")}, history)
	active := m.Snapshot().ChatID

	if err := m.Delete(context.Background(), other); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if m.Snapshot().ChatID != active {
		t.Fatalf("expected active chat untouched")
	}
}

func TestClearAllStartsNewSession(t *testing.T) {
	history := db.NewMemory()
	m := startManager(t, &fakeBackend{stream: replyWith("ok")}, history)
	if _, err := m.Send(context.Background(), "hello", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	m.Wait()

	if err := m.ClearAll(context.Background()); err != nil {
		t.Fatalf("clear all failed: %v", err)
	}
	chats, _ := m.ListChats(context.Background())
	if len(chats) != 1 || chats[0].ID != m.Snapshot().ChatID {
		t.Fatalf("expected only the fresh chat to remain, got %+v", chats)
	}
}

func TestSelectAndResume(t *testing.T) {
	history := db.NewMemory()
	saved, _ := history.CreateChat(context.Background(), user.UserID)
	exchange := []models.Message{
		{ID: "1", Text: "Old question", Sender: models.SenderUser},
		{ID: "2", Text: "Old answer", Sender: models.SenderBot},
	}
	if err := history.AppendMessages(context.Background(), user.UserID, saved, exchange); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	m := startManager(t, &fakeBackend{stream: replyWith("New answer")}, history)
	if !m.Resume(context.Background()) {
		t.Fatalf("expected resume to open the saved chat")
	}
	snap := m.Snapshot()
	if snap.ChatID != saved || !slices.Equal(snap.Messages, exchange) {
		t.Fatalf("unexpected resumed snapshot %+v", snap)
	}

	if _, err := m.Send(context.Background(), "Follow up", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	m.Wait()
	msgs, _ := history.LoadMessages(context.Background(), user.UserID, saved)
	if len(msgs) != 4 {
		t.Fatalf("expected exchange appended to resumed chat, got %d messages", len(msgs))
	}
	chats, _ := history.ListChats(context.Background(), user.UserID)
	for _, c := range chats {
		if c.ID == saved && c.Title != "" {
			t.Fatalf("expected resumed chat title untouched, got %q", c.Title)
		}
	}

	if err := m.NewChat(context.Background()); err != nil {
		t.Fatalf("new chat failed: %v", err)
	}
	if err := m.Select(context.Background(), saved); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if got := len(m.Snapshot().Messages); got != 4 {
		t.Fatalf("expected 4 messages after select, got %d", got)
	}

	empty, _ := history.CreateChat(context.Background(), user.UserID)
	if err := m.Select(context.Background(), empty); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound for empty chat, got %v", err)
	}
}

// ctxHistory fails CreateChat once the caller's context is done, like a
// database driver would.
type ctxHistory struct {
	*db.Memory
}

func (h ctxHistory) CreateChat(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return h.Memory.CreateChat(ctx, userID)
}

func TestStartOutlivesCancelledCaller(t *testing.T) {
	m := chat.NewManager(&fakeBackend{stream: replyWith("ok")}, chat.Options{History: ctxHistory{db.NewMemory()}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Start(ctx, user, models.DefaultProfile()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != chat.StateReady || snap.ChatID == "" {
		t.Fatalf("expected persisted session despite cancelled caller, got %+v", snap)
	}
}

func TestSelectRefusedWhileFailed(t *testing.T) {
	history := db.NewMemory()
	saved, _ := history.CreateChat(context.Background(), user.UserID)
	if err := history.AppendMessages(context.Background(), user.UserID, saved, []models.Message{
		{ID: "1", Text: "Old question", Sender: models.SenderUser},
		{ID: "2", Text: "Old answer", Sender: models.SenderBot},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	backend := &fakeBackend{startErr: errors.New("backend unreachable")}
	m := chat.NewManager(backend, chat.Options{History: history})
	if err := m.Start(context.Background(), user, models.DefaultProfile()); !errors.Is(err, chat.ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}

	if err := m.Select(context.Background(), saved); !errors.Is(err, chat.ErrNotReady) {
		t.Fatalf("expected ErrNotReady while failed, got %v", err)
	}
	if m.Resume(context.Background()) {
		t.Fatalf("expected resume to be refused while failed")
	}

	snap := m.Snapshot()
	if snap.State != chat.StateFailed || snap.Error != chat.StartFailedText || len(snap.Messages) != 0 || snap.ChatID != "" {
		t.Fatalf("expected failed state without transcript, got %+v", snap)
	}
}
