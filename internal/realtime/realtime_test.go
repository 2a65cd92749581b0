package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/session"
	"github.com/mcoot/holdem-lobby/internal/storage/memory"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

var (
	alice = model.Identity{ID: "p_alice", DisplayName: "Alice", Verified: true}
	bob   = model.Identity{ID: "p_bob", DisplayName: "Bob", Verified: true}
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	deps := session.Deps{
		Clock:   clock.New(),
		Storage: memory.New(),
		Logger:  testutil.NopLogger(),
	}
	return session.New(context.Background(), "sess-1", "ABCD", alice, deps, session.DefaultConfig())
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WriteTimeout = time.Second
	cfg.PingInterval = time.Minute
	return cfg
}

func testRandom() random.Random {
	return random.New()
}

func drain(out *outbox) []model.SessionView {
	var views []model.SessionView
	for {
		select {
		case v := <-out.queue:
			views = append(views, v)
		default:
			return views
		}
	}
}

func TestCancelledCallerStillReachesOtherMembers(t *testing.T) {
	sess := newTestSession(t)
	out := newOutbox("o-alice", 4)
	require.NoError(t, sess.AttachConnection(context.Background(), out, alice))
	drain(out)

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sess.AddMember(ctx, bob)

		views := drain(out)
		require.Len(t, views, 1, "run %d", i)
		require.Equal(t, []string{"Alice", "Bob"}, views[0].MemberNames)
	}
}

func TestBackloggedOutboxDoesNotDelayCountdown(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.SendTimeout = 2 * time.Second
	cfg.TickInterval = 100 * time.Millisecond
	deps := session.Deps{
		Clock:   clock.New(),
		Storage: memory.New(),
		Logger:  testutil.NopLogger(),
	}
	sess := session.New(context.Background(), "sess-2", "WXYZ", alice, deps, cfg)

	stalled := newOutbox("o-stalled", 1)
	healthy := newOutbox("o-healthy", 64)
	require.NoError(t, sess.AttachConnection(context.Background(), stalled, alice))
	require.NoError(t, sess.AttachConnection(context.Background(), healthy, alice))

	start := time.Now()
	require.NoError(t, sess.StartCountdown(context.Background(), 500*time.Millisecond))
	require.Less(t, time.Since(start), 200*time.Millisecond)

	var seen []model.SessionView
	require.Eventually(t, func() bool {
		seen = append(seen, drain(healthy)...)
		return len(seen) > 0 && seen[len(seen)-1].Phase == model.PhaseAnte
	}, 1500*time.Millisecond, 10*time.Millisecond)
	require.Less(t, time.Since(start), 1500*time.Millisecond)

	var counting int
	for _, v := range seen {
		if v.SecondsRemaining != nil {
			counting++
		}
	}
	require.GreaterOrEqual(t, counting, 2, "expected the start and at least one tick")
}
