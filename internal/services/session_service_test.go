package services

import (
	"context"
	"testing"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_History(t *testing.T) {
	h := newChatHarness(t, nil)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	sessions := NewSessionService(h.convs, h.msgs, h.codec, logger)

	res, err := h.svc.HandleChat(ctx, "alice", question, "")
	require.NoError(t, err)
	h.bg.Wait()

	got, err := sessions.History(ctx, "alice", res.SessionToken)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, question, got[0].Content)
	assert.Equal(t, h.llm.answer, got[1].Content)
	assert.False(t, got[0].Redacted)

	_, err = sessions.History(ctx, "mallory", res.SessionToken)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = sessions.History(ctx, "alice", "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = sessions.History(ctx, "alice", "nope")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSessionService_HistoryRedacted(t *testing.T) {
	h := newChatHarness(t, nil)
	ctx := context.Background()
	h.users.prefs["bob"] = models.ConsentPrivacy
	sessions := NewSessionService(h.convs, h.msgs, h.codec, nil)

	res, err := h.svc.HandleChat(ctx, "bob", question, "")
	require.NoError(t, err)
	h.bg.Wait()

	got, err := sessions.History(ctx, "bob", res.SessionToken)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.True(t, m.Redacted)
		assert.Empty(t, m.Content)
	}
}

func TestSessionService_End(t *testing.T) {
	h := newChatHarness(t, nil)
	ctx := context.Background()
	sessions := NewSessionService(h.convs, h.msgs, h.codec, nil)

	res, err := h.svc.HandleChat(ctx, "", question, "")
	require.NoError(t, err)

	require.NoError(t, sessions.End(ctx, "", res.SessionToken))
	err = sessions.End(ctx, "", res.SessionToken)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestUserService_ConsentMode(t *testing.T) {
	users := &fakeUsers{}
	svc := NewUserService(users)
	ctx := context.Background()

	mode, err := svc.ConsentMode(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.ConsentStandard, mode)

	require.NoError(t, svc.SetConsentMode(ctx, "carol", models.ConsentAnonymous))
	mode, err = svc.ConsentMode(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.ConsentAnonymous, mode)

	err = svc.SetConsentMode(ctx, "carol", models.ConsentMode("forever"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	err = svc.SetConsentMode(ctx, "", models.ConsentPrivacy)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}
