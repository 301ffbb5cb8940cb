package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/service"
)

func TestConversationList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c := e.user(t, "alice"), e.user(t, "bobby"), e.user(t, "carol")
	e.connect(c)

	_, err := e.router.Send(ctx, b, service.SendInput{ReceiverID: a, Content: "from b"})
	require.NoError(t, err)
	_, err = e.router.Send(ctx, c, service.SendInput{ReceiverID: a, Content: "from c 1"})
	require.NoError(t, err)
	_, err = e.router.Send(ctx, c, service.SendInput{ReceiverID: a, Content: "from c 2"})
	require.NoError(t, err)
	_, err = e.router.Send(ctx, a, service.SendInput{ReceiverID: b, Content: "to b"})
	require.NoError(t, err)

	convs, err := e.convSvc.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, b, convs[0].OtherUser.ID, "most recently updated first")
	assert.Equal(t, "to b", convs[0].LastMessage.Content)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.False(t, convs[0].OtherUser.IsOnline)

	assert.Equal(t, c, convs[1].OtherUser.ID)
	assert.Equal(t, "from c 2", convs[1].LastMessage.Content)
	assert.Equal(t, 2, convs[1].UnreadCount)
	assert.True(t, convs[1].OtherUser.IsOnline)

	fromB, err := e.convSvc.List(ctx, b)
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, 1, fromB[0].UnreadCount, "b has not read a's reply")

	_, err = e.router.MarkRead(ctx, a, c)
	require.NoError(t, err)
	convs, err = e.convSvc.List(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, convs[1].UnreadCount)
}

func TestConversationListEmpty(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "alice")

	convs, err := e.convSvc.List(context.Background(), a)
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}
