package mcp_test

import (
	"testing"

	"github.com/effective-security/mcpchat/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DecodeMessageResponse(t *testing.T) {
	msg, err := mcp.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":"42","result":{"ok":true}}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.KindResponse, msg.Kind)
	require.NotNil(t, msg.Response)
	assert.Equal(t, "42", msg.Response.ID)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Response.Result))
	assert.Nil(t, msg.Response.Error)
}

func Test_DecodeMessageErrorResponse(t *testing.T) {
	msg, err := mcp.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":"42","error":{"code":-32601,"message":"method not found"}}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.KindResponse, msg.Kind)
	require.NotNil(t, msg.Response.Error)
	assert.Equal(t, -32601, msg.Response.Error.Code)
	assert.Equal(t, "method not found", msg.Response.Error.Error())
}

func Test_DecodeMessageNotification(t *testing.T) {
	msg, err := mcp.DecodeMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.KindNotification, msg.Kind)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "notifications/tools/list_changed", msg.Notification.Method)
}

func Test_DecodeMessageServerRequest(t *testing.T) {
	msg, err := mcp.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":"7","method":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.KindRequest, msg.Kind)
	assert.Equal(t, mcp.MethodPing, msg.Notification.Method)
}

func Test_DecodeMessageNullID(t *testing.T) {
	// a null id is a notification, not a request
	msg, err := mcp.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, mcp.KindNotification, msg.Kind)
}

func Test_DecodeMessageInvalid(t *testing.T) {
	_, err := mcp.DecodeMessage([]byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON-RPC frame")
}
