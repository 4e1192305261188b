// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// Gateway is the subset of the backend client the reconciler drives.
type Gateway interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, title string) (model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) error
	ListMessages(ctx context.Context, id string) ([]model.Message, error)
	SendMessage(ctx context.Context, id, content string) (io.ReadCloser, error)
}

// Recorder receives committed state for local persistence. Failures are
// logged and never affect the exchange.
type Recorder interface {
	SaveConversations(ctx context.Context, convs []model.Conversation) error
	// Sync replaces the recorded conversation set with convs.
	Sync(ctx context.Context, convs []model.Conversation) error
	SaveMessages(ctx context.Context, conversationID string, msgs []model.Message) error
	AppendMessage(ctx context.Context, msg model.Message) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRecorder writes committed messages through to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler owns the conversation list, each conversation's committed
// messages, and the per-conversation exchange state machine
// Idle -> Sending -> Streaming -> Idle.
//
// Subscribers are called after every state change with the latest snapshot,
// in order, from whichever goroutine made the change. A subscriber may call
// Snapshot and the read accessors but must not call mutating methods.
type Reconciler struct {
	gw       Gateway
	recorder Recorder
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	convs   []model.Conversation
	states  map[string]*conversationState
	active  string
	version uint64
	// deletingAll is set while DeleteAll waits on the backend.
	deletingAll bool

	notifyMu sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int

	wg sync.WaitGroup
}

// New creates a reconciler driving gw.
func New(gw Gateway, opts ...Option) *Reconciler {
	r := &Reconciler{
		gw:     gw,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
		states: make(map[string]*conversationState),
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn and returns a function that removes it.
func (r *Reconciler) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.notifyMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.notifyMu.Unlock()

	return func() {
		r.notifyMu.Lock()
		delete(r.subs, id)
		r.notifyMu.Unlock()
	}
}

// notify delivers the current snapshot. notifyMu serializes deliveries so
// subscribers never see an older snapshot after a newer one.
func (r *Reconciler) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if len(r.subs) == 0 {
		return
	}

	snap := r.Snapshot()
	keys := make([]int, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		r.subs[k](snap)
	}
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Version:       r.version,
		Conversations: slices.Clone(r.convs),
		ActiveID:      r.active,
	}
	if st, ok := r.states[r.active]; ok {
		snap.Messages = slices.Clone(st.messages)
		snap.Phase = st.phase
		snap.Streaming = st.streaming
		snap.LastError = st.lastErr
	}
	for _, c := range r.convs {
		if st, ok := r.states[c.ID]; ok && st.phase.Busy() {
			snap.Busy = append(snap.Busy, c.ID)
		}
	}
	return snap
}

// Messages returns the committed messages of any conversation.
func (r *Reconciler) Messages(id string) []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		return slices.Clone(st.messages)
	}
	return nil
}

// Phase returns the exchange phase of any conversation.
func (r *Reconciler) Phase(id string) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		return st.phase
	}
	return Idle
}

// ActiveID returns the active conversation, or "".
func (r *Reconciler) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Wait blocks until every background exchange has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// state returns the state for id, creating it. Caller holds r.mu.
func (r *Reconciler) state(id string) *conversationState {
	st, ok := r.states[id]
	if !ok {
		st = &conversationState{}
		r.states[id] = st
	}
	return st
}

// changed bumps the version. Caller holds r.mu.
func (r *Reconciler) changed() {
	r.version++
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// SetConversations replaces the conversation list. Message state of known
// conversations is kept.
func (r *Reconciler) SetConversations(convs []model.Conversation) {
	r.mu.Lock()
	r.convs = slices.Clone(convs)
	r.changed()
	r.mu.Unlock()
	r.notify()
}

// Refresh loads the conversation list from the backend.
func (r *Reconciler) Refresh(ctx context.Context) error {
	convs, err := r.gw.ListConversations(ctx)
	if err != nil {
		return err
	}
	r.SetConversations(convs)
	r.record(ctx, "sync", func(ctx context.Context, rec Recorder) error {
		return rec.Sync(ctx, convs)
	})
	return nil
}

// NewConversation creates a conversation on the backend, puts it first in
// the list, and makes it active.
func (r *Reconciler) NewConversation(ctx context.Context, title string) (model.Conversation, error) {
	conv, err := r.gw.CreateConversation(ctx, title)
	if err != nil {
		return model.Conversation{}, err
	}

	r.mu.Lock()
	if i := model.FindConversation(r.convs, conv.ID); i >= 0 {
		r.convs = slices.Delete(r.convs, i, i+1)
	}
	r.convs = slices.Insert(r.convs, 0, conv)
	r.state(conv.ID)
	r.active = conv.ID
	r.changed()
	r.mu.Unlock()

	r.logger.Printf("CONVERSATION_CREATED | conversation=%s", conv.ID)
	r.record(ctx, "save_conversations", func(ctx context.Context, rec Recorder) error {
		return rec.SaveConversations(ctx, []model.Conversation{conv})
	})
	r.notify()
	return conv, nil
}

// EnsureConversation returns the active conversation, creating one when
// none is active.
func (r *Reconciler) EnsureConversation(ctx context.Context) (string, error) {
	if id := r.ActiveID(); id != "" {
		return id, nil
	}
	conv, err := r.NewConversation(ctx, "")
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// Switch makes id the active conversation without loading its messages. An
// exchange running on the previous conversation continues in the background.
func (r *Reconciler) Switch(id string) error {
	r.mu.Lock()
	if id != "" && model.FindConversation(r.convs, id) < 0 {
		r.mu.Unlock()
		return ErrUnknownConversation
	}
	prev := r.active
	r.active = id
	if id != "" {
		r.state(id)
	}
	r.changed()
	r.mu.Unlock()

	if prev != id {
		r.logger.Printf("CONVERSATION_SWITCH | from=%s to=%s", prev, id)
	}
	r.notify()
	return nil
}

// Open switches to id and loads its committed messages from the backend.
// Messages are not replaced while the conversation has an exchange in
// progress.
func (r *Reconciler) Open(ctx context.Context, id string) error {
	if err := r.Switch(id); err != nil {
		return err
	}
	if r.Phase(id).Busy() {
		return nil
	}

	msgs, err := r.gw.ListMessages(ctx, id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	st := r.state(id)
	if st.phase.Busy() {
		r.mu.Unlock()
		return nil
	}
	st.messages = slices.Clone(msgs)
	st.lastErr = nil
	r.changed()
	r.mu.Unlock()

	r.record(ctx, "save_messages", func(ctx context.Context, rec Recorder) error {
		return rec.SaveMessages(ctx, id, msgs)
	})
	r.notify()
	return nil
}

// Delete removes a conversation. A conversation with an exchange in
// progress cannot be deleted, and Send is refused while the delete is
// pending.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	st := r.state(id)
	switch {
	case st.phase.Busy():
		r.mu.Unlock()
		return ErrExchangeInFlight
	case st.deleting || r.deletingAll:
		r.mu.Unlock()
		return ErrDeleteInProgress
	}
	st.deleting = true
	r.mu.Unlock()

	if err := r.gw.DeleteConversation(ctx, id); err != nil {
		r.mu.Lock()
		st.deleting = false
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if i := model.FindConversation(r.convs, id); i >= 0 {
		r.convs = slices.Delete(r.convs, i, i+1)
	}
	delete(r.states, id)
	if r.active == id {
		r.active = ""
	}
	r.changed()
	r.mu.Unlock()

	r.record(ctx, "delete", func(ctx context.Context, rec Recorder) error {
		return rec.Delete(ctx, id)
	})
	r.notify()
	return nil
}

// DeleteAll removes every conversation. It fails while any exchange is in
// progress.
func (r *Reconciler) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	if r.deletingAll {
		r.mu.Unlock()
		return ErrDeleteInProgress
	}
	for _, st := range r.states {
		if st.phase.Busy() {
			r.mu.Unlock()
			return ErrExchangeInFlight
		}
		if st.deleting {
			r.mu.Unlock()
			return ErrDeleteInProgress
		}
	}
	r.deletingAll = true
	r.mu.Unlock()

	err := r.gw.DeleteAllConversations(ctx)

	r.mu.Lock()
	r.deletingAll = false
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.convs = nil
	r.states = make(map[string]*conversationState)
	r.active = ""
	r.changed()
	r.mu.Unlock()

	r.record(ctx, "delete_all", func(ctx context.Context, rec Recorder) error {
		return rec.DeleteAll(ctx)
	})
	r.notify()
	return nil
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Send starts an exchange on the active conversation. The user message is
// appended immediately and never rolled back. The reply streams in the
// background; use the returned Exchange to wait for it.
//
// Send fails synchronously, with no state change and no network call, when
// the conversation already has an exchange in progress.
func (r *Reconciler) Send(ctx context.Context, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	r.mu.Lock()
	convID := r.active
	if convID == "" {
		r.mu.Unlock()
		return nil, ErrNoConversation
	}
	st := r.state(convID)
	if st.phase.Busy() {
		r.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	if st.deleting || r.deletingAll {
		r.mu.Unlock()
		return nil, ErrDeleteInProgress
	}

	user := model.NewUserMessage(convID, content, r.now())
	st.messages = append(st.messages, user)
	st.phase = Sending
	st.streaming = ""
	st.lastErr = nil
	r.touchLocked(convID, user)
	r.changed()
	r.mu.Unlock()

	r.logger.Printf("EXCHANGE_START | conversation=%s chars=%d", convID, len(content))
	r.record(ctx, "append_message", func(ctx context.Context, rec Recorder) error {
		return rec.AppendMessage(ctx, user)
	})
	r.notify()

	ex := newExchange(convID, user)
	r.wg.Add(1)
	go r.run(ctx, ex, content)
	return ex, nil
}

// SendAndWait is Send followed by Exchange.Wait.
func (r *Reconciler) SendAndWait(ctx context.Context, content string) (model.Message, error) {
	ex, err := r.Send(ctx, content)
	if err != nil {
		return model.Message{}, err
	}
	<-ex.Done()
	return ex.reply, ex.err
}

func (r *Reconciler) run(ctx context.Context, ex *Exchange, content string) {
	defer r.wg.Done()
	convID := ex.ConversationID

	body, err := r.gw.SendMessage(ctx, convID, content)
	if err != nil {
		r.logger.Printf("EXCHANGE_FAILED | conversation=%s phase=sending error=%v", convID, err)
		r.settle(convID, func(st *conversationState) { st.lastErr = err })
		r.notify()
		ex.finish(model.Message{}, false, stream.Result{}, err)
		return
	}
	defer body.Close()

	r.update(convID, func(st *conversationState) { st.phase = Streaming })

	asm := stream.NewAssembler(
		stream.WithClock(r.now),
		stream.WithPartial(func(partial string) {
			r.update(convID, func(st *conversationState) { st.streaming = partial })
		}),
	)
	res, streamErr := asm.Run(ctx, stream.NewDecoder(body))

	// A clean done always commits. An abnormal end commits what arrived.
	commit := streamErr == nil || res.Content != ""
	var reply model.Message
	if commit {
		reply = model.NewAssistantMessage(convID, res.Content, r.now())
	}

	r.settle(convID, func(st *conversationState) {
		if commit {
			st.messages = append(st.messages, reply)
			r.touchLocked(convID, reply)
		}
		st.lastErr = streamErr
	})

	if streamErr != nil {
		r.logger.Printf("EXCHANGE_TRUNCATED | conversation=%s chars=%d committed=%t error=%v",
			convID, len(res.Content), commit, streamErr)
	} else {
		r.logger.Printf("EXCHANGE_DONE | conversation=%s chars=%d events=%d ttft=%v",
			convID, len(res.Content), res.Events, res.Stats.TTFT)
	}
	if commit {
		r.record(ctx, "append_message", func(ctx context.Context, rec Recorder) error {
			return rec.AppendMessage(ctx, reply)
		})
	}
	r.notify()
	ex.finish(reply, commit, res, streamErr)
}

// update mutates a conversation state and notifies.
func (r *Reconciler) update(convID string, fn func(st *conversationState)) {
	r.mu.Lock()
	fn(r.state(convID))
	r.changed()
	r.mu.Unlock()
	r.notify()
}

// settle applies fn and returns the conversation to Idle with an empty
// streaming buffer. It does not notify.
func (r *Reconciler) settle(convID string, fn func(st *conversationState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(convID)
	fn(st)
	st.phase = Idle
	st.streaming = ""
	r.changed()
}

// touchLocked updates list metadata for a new message. Caller holds r.mu.
func (r *Reconciler) touchLocked(convID string, msg model.Message) {
	i := model.FindConversation(r.convs, convID)
	if i < 0 {
		return
	}
	conv := r.convs[i]
	conv.Touch(msg.CreatedAt)
	if conv.Preview == "" && msg.Role == model.RoleUser {
		conv.Preview = msg.Content
	}
	// Most recently updated first.
	r.convs = slices.Delete(r.convs, i, i+1)
	r.convs = slices.Insert(r.convs, 0, conv)
}

// record runs fn against the recorder if one is attached. The write outlives
// cancellation of ctx.
func (r *Reconciler) record(ctx context.Context, op string, fn func(context.Context, Recorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), r.recorder); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Printf("CACHE_WRITE_FAILED | op=%s error=%v", op, err)
	}
}
