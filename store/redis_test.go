package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/effective-security/mcpchat/chatmodel"
	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/mcpchat/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func Test_RedisStore(t *testing.T) {
	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7",
		testcontainers.WithConfigModifier(func(config *container.Config) {
			config.Env = []string{
				"ALLOW_EMPTY_PASSWORD=yes",
			}
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	state, err := redisContainer.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Running)

	root := fmt.Sprintf("test-%d", time.Now().Unix())

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	rs := client.Ping(ctx)
	require.NoError(t, rs.Err(), "failed to connect to Redis")

	st := store.NewRedisStore(client, root)

	msg1 := llms.MessageFromTextParts(llms.RoleHuman, "Hello")
	msg2 := llms.MessageFromTextParts(llms.RoleAI, "Hi there!")

	// chat identity comes from context; without it every operation fails
	expErr := "invalid chat context"
	assert.EqualError(t, st.Reset(ctx), expErr)
	assert.EqualError(t, st.Add(ctx, msg1), expErr)
	assert.EqualError(t, st.UpdateChat(ctx, "", nil), expErr)
	_, err = st.ListChats(ctx)
	assert.EqualError(t, err, expErr)
	_, err = st.GetChatInfo(ctx, "")
	assert.EqualError(t, err, expErr)
	assert.Empty(t, st.Messages(ctx))

	tenantID := "tenant1"
	chatID := "chat1"
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(tenantID, chatID))

	require.NoError(t, st.Add(ctx, msg1))
	require.NoError(t, st.Add(ctx, msg2))

	msgs := st.Messages(ctx)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].GetContent())
	assert.Equal(t, "Hi there!", msgs[1].GetContent())

	// tool round trips survive serialization
	require.NoError(t, st.Add(ctx, llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "web__search", Arguments: `{"q":"redis"}`},
	})))
	require.NoError(t, st.Add(ctx, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: "call_1",
		Name:       "web__search",
		Content:    "found it",
	})))

	msgs = st.Messages(ctx)
	require.Len(t, msgs, 4)
	require.Len(t, msgs[2].ToolCalls(), 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls()[0].ID)
	require.NotNil(t, msgs[3].ToolResponse())
	assert.Equal(t, "found it", msgs[3].ToolResponse().Content)

	// chat info is created on first use and updatable
	info, err := st.GetChatInfo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, tenantID, info.TenantID)
	assert.Equal(t, chatID, info.ChatID)
	assert.Equal(t, "New Chat", info.Title)
	assert.Len(t, info.Messages, 4)

	require.NoError(t, st.UpdateChat(ctx, "Redis talk", map[string]any{"model": "gpt-4o"}))
	info, err = st.GetChatInfo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Redis talk", info.Title)
	assert.Equal(t, "gpt-4o", info.Metadata["model"])

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{chatID}, chats)

	// a second chat under the same tenant is independent
	ctx2 := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext(tenantID, "chat2"))
	require.NoError(t, st.Add(ctx2, msg1))
	assert.Len(t, st.Messages(ctx2), 1)
	assert.Len(t, st.Messages(ctx), 4)

	chats, err = st.ListChats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat1", "chat2"}, chats)

	// reset removes history and metadata
	require.NoError(t, st.Reset(ctx))
	assert.Empty(t, st.Messages(ctx))
	chats, err = st.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat2"}, chats)
}
