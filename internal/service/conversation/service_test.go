package conversation_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	"github.com/rudeai/innerlog/backend/internal/model/record"
	model "github.com/rudeai/innerlog/backend/internal/model/session"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

const checkingSituation = "I keep checking my phone for messages and getting anxious"

func newService(t *testing.T, policy conversation.ReentryPolicy) (*conversation.Service, *sessionstore.Store) {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store := sessionstore.NewStore(sessionstore.WithClock(clock))
	engine := pattern.NewEngine(nil, pattern.WithClock(clock), pattern.WithLocation(time.UTC))
	svc := conversation.NewService(
		store,
		conversation.FromEngine(engine),
		nil,
		conversation.Config{ReentryPolicy: policy, Location: time.UTC},
		conversation.WithClock(clock),
		conversation.WithLogger(zaptest.NewLogger(t)),
	)
	return svc, store
}

func turn(t *testing.T, svc *conversation.Service, id, text string) conversation.Reply {
	t.Helper()
	reply, err := svc.ProcessTurn(context.Background(), id, text)
	require.NoError(t, err, "ProcessTurn(%q)", text)
	return reply
}

func TestCheckingScenarioDeclinedOverride(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()

	id, err := svc.StartSession(ctx)
	require.NoError(t, err)

	reply := turn(t, svc, id, checkingSituation)
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.True(t, strings.HasPrefix(reply.Text, "Situation logged. ID: "+id[:8]+"-1430\n\n"), reply.Text)
	assert.Contains(t, reply.Text, "Context: I keep checking my phone")
	assert.Contains(t, reply.Text, "Somatic Response:\n- checking\n- anxiety")
	assert.True(t, strings.HasSuffix(reply.Text, "Confirm log accuracy?"))

	log, err := svc.CurrentLog(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, log.Context)
	assert.NotEmpty(t, log.SomaticResponse)

	reply = turn(t, svc, id, "yes")
	assert.Equal(t, model.StateAskingOverrideReady, reply.State)
	assert.Equal(t, "Are you override-ready?", reply.Text)

	reply = turn(t, svc, id, "no")
	assert.Equal(t, model.StateComplete, reply.State)
	assert.Equal(t, "Log is closed.", reply.Text)

	info, err := svc.GetSessionInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, info.State)
	assert.Equal(t, model.ReadinessNo, info.OverrideReady)
	assert.Equal(t, model.OutcomeNone, info.OverrideResult)
	assert.Equal(t, 3, info.TurnCount)
	require.NotNil(t, info.CompletedAt)
}

func TestFullOverrideCycle(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	turn(t, svc, id, checkingSituation)
	turn(t, svc, id, "that's accurate")

	reply := turn(t, svc, id, "Yes, I'm ready")
	assert.Equal(t, model.StateProvidingOverride, reply.State)
	assert.True(t, strings.HasPrefix(reply.Text, "Override sequence:\n\n1. Identify current physical sensations\n"))
	assert.Contains(t, reply.Text, "Remove access to checking stimulus")
	assert.Contains(t, reply.Text, "Ground through sensory awareness")
	assert.NotContains(t, reply.Text, "Address chest tension")
	assert.True(t, strings.HasSuffix(reply.Text, "Execute sequence. Report completion status."))

	reply = turn(t, svc, id, "done")
	assert.Equal(t, model.StateCheckingOverrideResult, reply.State)
	assert.Equal(t, "Did the override sequence resolve the emotional state?", reply.Text)

	reply = turn(t, svc, id, "It helped a bit")
	assert.Equal(t, model.StateComplete, reply.State)
	assert.Equal(t, "Outcome recorded: partial. Log is closed.", reply.Text)

	info, _ := svc.GetSessionInfo(ctx, id)
	assert.Equal(t, model.ReadinessYes, info.OverrideReady)
	assert.Equal(t, model.OutcomePartial, info.OverrideResult)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i, entry := range history {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, entry.Role, "entry %d", i)
	}
	assert.Equal(t, model.StateInitial, history[0].State)
	assert.Equal(t, model.StateConfirmingLog, history[1].State)
}

func TestSunkCostCategorisationInConfirmation(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	id, _ := svc.StartSession(context.Background())

	reply := turn(t, svc, id, "I already paid the deposit and don't want to waste it")
	assert.Contains(t, reply.Text, "Pattern recognized: sunk-cost.")
}

func TestEmptyInputRepromptsWithoutAdvancing(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	reply := turn(t, svc, id, "   ")
	assert.Equal(t, model.StateInitial, reply.State)
	assert.Equal(t, "Provide situation details.", reply.Text)

	turn(t, svc, id, checkingSituation)
	reply = turn(t, svc, id, "")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.Equal(t, "Confirm log accuracy? Yes or no.", reply.Text)

	history, _ := svc.History(ctx, id)
	assert.Len(t, history, 6)
}

func TestAmbiguousAnswersReask(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	id, _ := svc.StartSession(context.Background())

	turn(t, svc, id, checkingSituation)
	reply := turn(t, svc, id, "maybe")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.Equal(t, "Confirm log accuracy? Yes or no.", reply.Text)

	turn(t, svc, id, "yes")
	reply = turn(t, svc, id, "I'm not sure")
	assert.Equal(t, model.StateAskingOverrideReady, reply.State)
	assert.Equal(t, "Are you override-ready? Yes or no.", reply.Text)
}

func TestRejectionWithCorrectionReplacesLog(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	turn(t, svc, id, checkingSituation)
	before, _ := svc.CurrentLog(ctx, id)

	reply := turn(t, svc, id, "No, actually I was at work when my boss yelled at me")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.True(t, strings.HasPrefix(reply.Text, "Situation logged."))

	after, _ := svc.CurrentLog(ctx, id)
	assert.NotEqual(t, before.Context, after.Context)
	assert.Equal(t, "My boss yelled at me", after.Trigger)
	assert.NotContains(t, after.SomaticResponse, "checking")
}

func TestCorrectionBodyWithAffirmativeWordsReplacesLog(t *testing.T) {
	cases := map[string]string{
		"No, it happened right after my boss sent an email": "My boss sent an email",
		"No, I was ready to leave when my partner yelled":   "My partner yelled",
	}
	for input, trigger := range cases {
		svc, _ := newService(t, conversation.ReentryRestart)
		ctx := context.Background()
		id, _ := svc.StartSession(ctx)
		turn(t, svc, id, checkingSituation)

		reply := turn(t, svc, id, input)
		assert.Equal(t, model.StateConfirmingLog, reply.State, input)
		assert.True(t, strings.HasPrefix(reply.Text, "Situation logged."), input)

		after, err := svc.CurrentLog(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, trigger, after.Trigger, input)
	}
}

func TestBareRejectionAwaitsCorrection(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	turn(t, svc, id, checkingSituation)

	reply := turn(t, svc, id, "no")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.Equal(t, "Log rejected. Provide corrected situation details.", reply.Text)

	sess, _ := svc.Session(ctx, id)
	assert.True(t, sess.AwaitingCorrection)
	require.NotNil(t, sess.CurrentLog, "rejected log is kept until it is replaced")

	reply = turn(t, svc, id, "My landlord raised the rent again today")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.Contains(t, reply.Text, "Context: My landlord raised the rent again today")

	sess, _ = svc.Session(ctx, id)
	assert.False(t, sess.AwaitingCorrection)
}

func TestUnknownSession(t *testing.T) {
	svc, store := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	_, _ = svc.StartSession(ctx)

	_, err := svc.ProcessTurn(ctx, "missing", "hello there")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
	assert.Equal(t, 1, store.Len())

	_, err = svc.GetSessionInfo(ctx, "missing")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
	assert.ErrorIs(t, svc.ResetSession(ctx, "missing"), conversation.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, "missing"), conversation.ErrSessionNotFound)
}

func completeSession(t *testing.T, svc *conversation.Service) string {
	t.Helper()
	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	turn(t, svc, id, checkingSituation)
	turn(t, svc, id, "yes")
	turn(t, svc, id, "no")
	return id
}

func TestCompleteSessionRestartsAndArchives(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id := completeSession(t, svc)

	reply := turn(t, svc, id, "")
	assert.Equal(t, model.StateComplete, reply.State)

	reply = turn(t, svc, id, "I already paid the deposit and don't want to waste it")
	assert.Equal(t, model.StateConfirmingLog, reply.State)
	assert.Contains(t, reply.Text, "Pattern recognized: sunk-cost.")

	sess, _ := svc.Session(ctx, id)
	require.Len(t, sess.Cycles, 1)
	assert.Equal(t, "anticipatory-vigilance", sess.Cycles[0].Log.PatternTag)
	assert.Equal(t, model.ReadinessNo, sess.Cycles[0].OverrideReady)
	assert.False(t, sess.Cycles[0].Reset)
	assert.Equal(t, model.ReadinessUnknown, sess.OverrideReady)
	assert.Nil(t, sess.CompletedAt)
}

func TestCompleteSessionStaysClosed(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryClosed)
	ctx := context.Background()
	id := completeSession(t, svc)
	before, _ := svc.CurrentLog(ctx, id)

	reply := turn(t, svc, id, "something else happened at the office")
	assert.Equal(t, model.StateComplete, reply.State)
	assert.Equal(t, "Log is closed.", reply.Text)

	after, _ := svc.CurrentLog(ctx, id)
	assert.Equal(t, before, after)
}

func TestResetSession(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	turn(t, svc, id, checkingSituation)
	require.NoError(t, svc.ResetSession(ctx, id))

	sess, _ := svc.Session(ctx, id)
	assert.Equal(t, model.StateInitial, sess.State)
	assert.Nil(t, sess.CurrentLog)
	require.Len(t, sess.Cycles, 1)
	assert.True(t, sess.Cycles[0].Reset)
	require.Len(t, sess.History, 3)
	assert.Equal(t, model.RoleSystem, sess.History[2].Role)

	_, err := svc.CurrentLog(ctx, id)
	assert.ErrorIs(t, err, conversation.ErrNoLog)
}

func TestListActiveSessions(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()

	done := completeSession(t, svc)
	open, _ := svc.StartSession(ctx)

	ids, err := svc.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, open)
	assert.NotContains(t, ids, done)

	require.NoError(t, svc.DeleteSession(ctx, open))
	ids, _ = svc.ListActiveSessions(ctx)
	assert.Empty(t, ids)
}

func TestInjectedLogCreator(t *testing.T) {
	store := sessionstore.NewStore()
	creator := conversation.LogCreatorFunc(func(_ context.Context, text string) record.Log {
		return record.Log{TimestampLabel: "fixed", Context: text, PatternTag: "custom"}
	})
	at := time.Date(2024, 1, 2, 9, 5, 0, 0, time.UTC)
	svc := conversation.NewService(store, creator, nil, conversation.Config{Location: time.UTC},
		conversation.WithClock(func() time.Time { return at }))

	id, _ := svc.StartSession(context.Background())
	reply := turn(t, svc, id, "anything at all")
	assert.Contains(t, reply.Text, "ID: "+id[:8]+"-0905")
	assert.Contains(t, reply.Text, "Pattern recognized: custom.")

	reply = turn(t, svc, id, "yes")
	reply = turn(t, svc, id, "yes")
	assert.Contains(t, reply.Text, "5. Execute response protocol\n")
}

var allowedEdges = map[model.State][]model.State{
	model.StateInitial:                {model.StateInitial, model.StateConfirmingLog},
	model.StateConfirmingLog:          {model.StateConfirmingLog, model.StateAskingOverrideReady},
	model.StateAskingOverrideReady:    {model.StateAskingOverrideReady, model.StateProvidingOverride, model.StateComplete},
	model.StateProvidingOverride:      {model.StateProvidingOverride, model.StateCheckingOverrideResult},
	model.StateCheckingOverrideResult: {model.StateCheckingOverrideResult, model.StateComplete},
	model.StateComplete:               {model.StateComplete, model.StateConfirmingLog},
}

func TestRandomTurnsFollowTransitionTable(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()

	inputs := []string{
		"", "yes", "no", "maybe", "ok", "not ready",
		checkingSituation,
		"No, it happened after my boss emailed me late",
		"done", "it helped a bit", "still racing",
		"My chest got tight when the invoice arrived",
	}

	rng := rand.New(rand.NewSource(7))
	ids := make([]string, 5)
	for i := range ids {
		ids[i], _ = svc.StartSession(ctx)
	}

	for i := 0; i < 400; i++ {
		id := ids[rng.Intn(len(ids))]
		before, _ := svc.Session(ctx, id)

		reply := turn(t, svc, id, inputs[rng.Intn(len(inputs))])
		assert.Contains(t, allowedEdges[before.State], reply.State, "illegal edge %s -> %s", before.State, reply.State)

		after, _ := svc.Session(ctx, id)
		require.NoError(t, after.Validate())
		assert.Equal(t, before.TurnCount+1, after.TurnCount)
		assert.Len(t, after.History, len(before.History)+2)
	}
}

func TestConcurrentTurnsOnOneSession(t *testing.T) {
	svc, _ := newService(t, conversation.ReentryRestart)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)

	const turns = 40
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < turns; i++ {
		g.Go(func() error {
			_, err := svc.ProcessTurn(gctx, id, "maybe")
			return err
		})
	}
	require.NoError(t, g.Wait())

	sess, _ := svc.Session(ctx, id)
	assert.Equal(t, turns, sess.TurnCount)
	assert.Len(t, sess.History, 2*turns)
	require.NoError(t, sess.Validate())
}
