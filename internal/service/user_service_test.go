package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) (*UserService, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: baseTime}
	return NewUserService(memory.NewStore(), 15*time.Minute, clock.Now, zap.NewNop()), clock
}

func TestLinkTokenExpires(t *testing.T) {
	users, clock := newUserService(t)
	ctx := context.Background()

	token, err := users.IssueLinkToken(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(15*time.Minute), token.ExpiresAt)

	clock.Advance(15 * time.Minute)
	_, err = users.LinkTelegram(ctx, token.Token.String(), 555, "Ann")
	assert.Equal(t, apperr.CodeLinkTokenInvalid, apperr.CodeOf(err))

	_, err = users.LinkTelegram(ctx, "not-a-token", 555, "Ann")
	assert.Equal(t, apperr.CodeLinkTokenInvalid, apperr.CodeOf(err))
}

func TestLinkTelegramRefusesTakeover(t *testing.T) {
	users, _ := newUserService(t)
	ctx := context.Background()

	first, err := users.IssueLinkToken(ctx, 42)
	require.NoError(t, err)
	_, err = users.LinkTelegram(ctx, first.Token.String(), 555, "Ann")
	require.NoError(t, err)

	second, err := users.IssueLinkToken(ctx, 42)
	require.NoError(t, err)
	_, err = users.LinkTelegram(ctx, second.Token.String(), 999, "Eve")
	assert.Equal(t, apperr.CodeTelegramAlreadyLinked, apperr.CodeOf(err))

	owner, err := users.GetByTelegramID(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, int64(42), owner.ID)

	// Отказ откатил погашение: после /stop в старом чате тот же токен срабатывает
	unlinked, err := users.UnlinkTelegram(ctx, 555)
	require.NoError(t, err)
	assert.True(t, unlinked)

	user, err := users.LinkTelegram(ctx, second.Token.String(), 999, "Ann")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
}

func TestLinkTelegramChatBelongsToOneUser(t *testing.T) {
	users, _ := newUserService(t)
	ctx := context.Background()

	a, err := users.IssueLinkToken(ctx, 42)
	require.NoError(t, err)
	_, err = users.LinkTelegram(ctx, a.Token.String(), 555, "Ann")
	require.NoError(t, err)

	b, err := users.IssueLinkToken(ctx, 43)
	require.NoError(t, err)
	_, err = users.LinkTelegram(ctx, b.Token.String(), 555, "Ann")
	assert.Equal(t, apperr.CodeTelegramAlreadyLinked, apperr.CodeOf(err))
}

func TestIssueLinkTokenValidatesUser(t *testing.T) {
	users, _ := newUserService(t)

	_, err := users.IssueLinkToken(context.Background(), 0)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}
