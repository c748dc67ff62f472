package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/chatmodel"
	"github.com/effective-security/mcpchat/llms"
)

type memChat struct {
	info     ChatInfo
	messages []MessageModel
}

type inMemory struct {
	mu    sync.RWMutex
	chats map[string]*memChat
	list  map[string][]string
}

// NewMemoryStore creates a MessageStore backed by process memory,
// suitable for tests and single-process use.
func NewMemoryStore() MessageStore {
	return &inMemory{
		chats: make(map[string]*memChat),
		list:  make(map[string][]string),
	}
}

func chatKey(tenantID, chatID string) string {
	return tenantID + "/" + chatID
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatKey(tenantID, chatID)]
	if !ok {
		return nil
	}
	return ToMessages(chat.messages)
}

func (m *inMemory) Add(ctx context.Context, msg llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.getOrCreate(tenantID, chatID)
	chat.messages = append(chat.messages, ToModel(msg))
	chat.info.UpdatedAt = time.Now()
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatKey(tenantID, chatID))
	if idx := slices.Index(m.list[tenantID], chatID); idx >= 0 {
		m.list[tenantID] = slices.Delete(m.list[tenantID], idx, idx+1)
	}
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.getOrCreate(tenantID, chatID)
	if title != "" {
		chat.info.Title = title
	}
	for k, v := range metadata {
		if chat.info.Metadata == nil {
			chat.info.Metadata = make(map[string]any)
		}
		chat.info.Metadata[k] = v
	}
	chat.info.UpdatedAt = time.Now()
	return nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list[tenantID]), nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatKey(tenantID, id)]
	if !ok {
		return nil, errors.Newf("chat not found: %s", id)
	}
	info := chat.info
	info.Messages = ToMessages(chat.messages)
	return &info, nil
}

// getOrCreate must be called with the write lock held.
func (m *inMemory) getOrCreate(tenantID, chatID string) *memChat {
	key := chatKey(tenantID, chatID)
	chat, ok := m.chats[key]
	if !ok {
		chat = &memChat{
			info: ChatInfo{
				TenantID:  tenantID,
				ChatID:    chatID,
				Title:     "New Chat",
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
		}
		m.chats[key] = chat
		m.list[tenantID] = append(m.list[tenantID], chatID)
	}
	return chat
}
