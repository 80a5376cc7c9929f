package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMessageCreator struct {
	reqs       []*larkim.CreateMessageReq
	createFunc func(req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
}

func (m *mockMessageCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	m.reqs = append(m.reqs, req)
	if m.createFunc != nil {
		return m.createFunc(req)
	}
	return &larkim.CreateMessageResp{
		Data: &larkim.CreateMessageRespData{MessageId: larkcore.StringPtr("om_1")},
	}, nil
}

func TestMessenger_SendMessage(t *testing.T) {
	api := &mockMessageCreator{}
	m := newMessenger(api, zap.NewNop())

	require.NoError(t, m.SendMessage(context.Background(), "ou_lead", `Approval needed: "Trip"`))
	require.Len(t, api.reqs, 1)
	assert.NotNil(t, api.reqs[0])
}

func TestNewTextBody(t *testing.T) {
	body, err := newTextBody("ou_lead", `Approval needed: "Trip"`)
	require.NoError(t, err)
	require.NotNil(t, body)

	assert.Equal(t, "ou_lead", *body.ReceiveId)
	assert.Equal(t, msgTypeText, *body.MsgType)
	require.NotNil(t, body.Uuid)
	assert.NotEmpty(t, *body.Uuid)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, `Approval needed: "Trip"`, content["text"])

	other, err := newTextBody("ou_lead", "again")
	require.NoError(t, err)
	assert.NotEqual(t, *body.Uuid, *other.Uuid)
}

func TestMessenger_Errors(t *testing.T) {
	tests := []struct {
		name       string
		openID     string
		content    string
		createFunc func(req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
		wantCalls  int
	}{
		{name: "missing open id", content: "hi"},
		{name: "missing content", openID: "ou_1"},
		{
			name: "transport error", openID: "ou_1", content: "hi", wantCalls: 1,
			createFunc: func(*larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
				return nil, errors.New("timeout")
			},
		},
		{
			name: "api failure", openID: "ou_1", content: "hi", wantCalls: 1,
			createFunc: func(*larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
				return &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockMessageCreator{createFunc: tt.createFunc}
			m := newMessenger(api, zap.NewNop())
			assert.Error(t, m.SendMessage(context.Background(), tt.openID, tt.content))
			assert.Len(t, api.reqs, tt.wantCalls)
		})
	}
}
