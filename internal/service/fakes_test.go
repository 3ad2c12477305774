package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aisuite/internal/ai"
	"aisuite/internal/ai/cost"
	"aisuite/internal/model/assistant"
	"aisuite/internal/model/conversation"
	"aisuite/internal/model/library"
	"aisuite/internal/model/user"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/cache"
	"aisuite/internal/pkg/events"
	"aisuite/internal/repository"
)

type fakeWorkspaces struct {
	mu      sync.Mutex
	items   map[string]*workspace.Workspace
	deducts []cost.Count
}

func newFakeWorkspaces(list ...*workspace.Workspace) *fakeWorkspaces {
	f := &fakeWorkspaces{items: map[string]*workspace.Workspace{}}
	for _, ws := range list {
		f.items[ws.ID] = ws
	}
	return f
}

func (f *fakeWorkspaces) Create(_ context.Context, ws *workspace.Workspace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[ws.ID] = ws
	return nil
}

func (f *fakeWorkspaces) FindByID(_ context.Context, id string) (*workspace.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ai.ErrNotFound)
	}
	cp := *ws
	return &cp, nil
}

func (f *fakeWorkspaces) DeductCredit(_ context.Context, id string, amount cost.Count) (*workspace.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deducts = append(f.deducts, amount)
	ws, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ai.ErrNotFound)
	}
	if ws.CreditCount == nil || !amount.IsPositive() {
		return nil, nil
	}
	left := ws.CreditCount.Sub(amount)
	if !left.IsPositive() {
		left = cost.Zero
	}
	ws.CreditCount = &left
	cp := *ws
	return &cp, nil
}

func (f *fakeWorkspaces) SetCredits(_ context.Context, id string, credits *cost.Count) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.items[id]
	if !ok {
		return fmt.Errorf("workspace %s: %w", id, ai.ErrNotFound)
	}
	ws.CreditCount = credits
	return nil
}

func (f *fakeWorkspaces) credit(id string) *cost.Count {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].CreditCount
}

type fakeUsers struct {
	items map[string]*user.User
}

func newFakeUsers(list ...*user.User) *fakeUsers {
	f := &fakeUsers{items: map[string]*user.User{}}
	for _, u := range list {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	for _, existing := range f.items {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	f.items[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := f.items[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, ai.ErrNotFound)
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*user.User, error) {
	for _, u := range f.items {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, ai.ErrNotFound)
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range f.items {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ai.ErrNotFound)
}

func (f *fakeUsers) UpdateLastLoginAt(context.Context, string) error {
	return nil
}

// fakeConversations 保存对话快照，AppendMessages 记录每次追加的消息
type fakeConversations struct {
	items    map[string]*conversation.Conversation
	appended []*conversation.Message
	titles   map[string]string
}

func newFakeConversations(list ...*conversation.Conversation) *fakeConversations {
	f := &fakeConversations{items: map[string]*conversation.Conversation{}, titles: map[string]string{}}
	for _, c := range list {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeConversations) Create(_ context.Context, conv *conversation.Conversation) error {
	f.items[conv.ID] = conv
	return nil
}

func (f *fakeConversations) FindByID(_ context.Context, id string) (*conversation.Conversation, error) {
	conv, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ai.ErrNotFound)
	}
	cp := *conv
	cp.Messages = append([]*conversation.Message(nil), conv.Messages...)
	return &cp, nil
}

func (f *fakeConversations) AppendMessages(_ context.Context, id string, msgs ...*conversation.Message) error {
	conv, ok := f.items[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ai.ErrNotFound)
	}
	for _, m := range msgs {
		conv.Messages = append(conv.Messages, m)
		conv.Cost = conv.Cost.Add(m.Cost)
	}
	f.appended = append(f.appended, msgs...)
	return nil
}

func (f *fakeConversations) UpdateTitle(_ context.Context, id, title string) error {
	conv, ok := f.items[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ai.ErrNotFound)
	}
	conv.Title = title
	f.titles[id] = title
	return nil
}

func (f *fakeConversations) ListByUser(_ context.Context, workspaceID, userID string, _ repository.Page) ([]*conversation.Conversation, int64, error) {
	var out []*conversation.Conversation
	for _, c := range f.items {
		if c.WorkspaceID == workspaceID && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversations) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeConversations) assistantReplies() int {
	n := 0
	for _, m := range f.appended {
		if m.Role == conversation.RoleAssistant {
			n++
		}
	}
	return n
}

type fakeAssistants struct {
	items map[string]*assistant.Assistant
}

func newFakeAssistants(list ...*assistant.Assistant) *fakeAssistants {
	f := &fakeAssistants{items: map[string]*assistant.Assistant{}}
	for _, a := range list {
		f.items[a.ID] = a
	}
	return f
}

func (f *fakeAssistants) Create(_ context.Context, a *assistant.Assistant) error {
	f.items[a.ID] = a
	return nil
}

func (f *fakeAssistants) FindByID(_ context.Context, id string) (*assistant.Assistant, error) {
	if a, ok := f.items[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("assistant %s: %w", id, ai.ErrNotFound)
}

func (f *fakeAssistants) FindByIDs(_ context.Context, ids []string) (map[string]*assistant.Assistant, error) {
	out := map[string]*assistant.Assistant{}
	for _, id := range ids {
		if a, ok := f.items[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeAssistants) ListVisible(_ context.Context, workspaceID string, activeOnly bool) ([]*assistant.Assistant, error) {
	out := []*assistant.Assistant{}
	for _, a := range f.items {
		if a.WorkspaceID != "" && a.WorkspaceID != workspaceID {
			continue
		}
		if activeOnly && !a.IsActive() {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAssistants) Update(_ context.Context, a *assistant.Assistant) error {
	f.items[a.ID] = a
	return nil
}

func (f *fakeAssistants) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

type fakeLibrary struct {
	items map[string]*library.Item
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{items: map[string]*library.Item{}}
}

func (f *fakeLibrary) Create(_ context.Context, item *library.Item) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeLibrary) FindByID(_ context.Context, id string) (*library.Item, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, fmt.Errorf("library item %s: %w", id, ai.ErrNotFound)
}

func (f *fakeLibrary) ListByUser(_ context.Context, workspaceID, userID string, itemType library.ItemType, _ repository.Page) ([]*library.Item, int64, error) {
	var out []*library.Item
	for _, item := range f.items {
		if item.WorkspaceID == workspaceID && item.UserID == userID && (itemType == "" || item.Type == itemType) {
			out = append(out, item)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeLibrary) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

type recordingDispatcher struct {
	events []events.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e events.Event) {
	d.events = append(d.events, e)
}

// fakeChat 可配置 token 序列与结尾错误的对话适配器
type fakeChat struct {
	model  ai.Model
	tokens []string
	err    error
	openFn func() error
	result ai.Result

	calls  int
	leaves []*conversation.Message
}

func (f *fakeChat) SupportsModel(m ai.Model) bool { return m == f.model }

func (f *fakeChat) Models() []ai.Model { return []ai.Model{f.model} }

func (f *fakeChat) GenerateMessage(_ context.Context, _ ai.Model, msg *conversation.Message) (*ai.Stream, error) {
	f.calls++
	f.leaves = append(f.leaves, msg)
	if f.openFn != nil {
		if err := f.openFn(); err != nil {
			return nil, err
		}
	}
	return ai.NewStream(&ai.SliceSource{Tokens: f.tokens, Err: f.err, Res: f.result}), nil
}

func (f *fakeChat) GenerateCompletion(_ context.Context, _ ai.Model, _ ai.Params) (*ai.Stream, error) {
	f.calls++
	return ai.NewStream(&ai.SliceSource{Tokens: f.tokens, Err: f.err, Res: f.result}), nil
}

func (f *fakeChat) GenerateTitle(_ context.Context, content string, _ ai.Model) (*ai.TitleResult, error) {
	f.calls++
	if ai.TitleSeed(content) == "" {
		return &ai.TitleResult{Title: ai.UntitledTitle, Cost: cost.Zero}, nil
	}
	return &ai.TitleResult{Title: "Greeting", Cost: f.result.Cost}, nil
}

type fakeImages struct {
	err   error
	calls int
}

func (f *fakeImages) UploadMessageImage(_ context.Context, data []byte) (*conversation.ImageFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &conversation.ImageFile{StorageKey: "messages/a.png", URL: "http://cdn/messages/a.png", Ext: "png", Size: int64(len(data)), Width: 1, Height: 1}, nil
}

// memoryCache 以 JSON 保存，与 Redis 缓存的编码方式一致
type memoryCache struct {
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.data[key] = raw
	return nil
}
