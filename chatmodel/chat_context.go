package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ErrInvalidChatContext is returned when the context does not carry chat identity.
var ErrInvalidChatContext = errors.New("invalid chat context")

// ChatContext carries the identity of one conversation:
// the tenant that owns it and the chat session ID,
// plus arbitrary per-request metadata.
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	tenantID string
	chatID   string
	metadata sync.Map
}

func (c *chatContext) GetTenantID() string {
	return c.tenantID
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// NewChatContext creates a ChatContext; an empty chatID is replaced
// with a freshly generated one.
func NewChatContext(tenantID, chatID string) ChatContext {
	return &chatContext{
		tenantID: tenantID,
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// GetTenantAndChatID retrieves both IDs, or ErrInvalidChatContext
// when the context does not carry a chat identity.
func GetTenantAndChatID(ctx context.Context) (tenantID, chatID string, err error) {
	v, ok := ctx.Value(keyContext).(ChatContext)
	if !ok || v.GetChatID() == "" {
		return "", "", errors.WithStack(ErrInvalidChatContext)
	}
	return v.GetTenantID(), v.GetChatID(), nil
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
