package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/warp/giftcert-engine/giftcert"
	"github.com/warp/giftcert-engine/giftcert/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSweeperEnv(t *testing.T) (*giftcert.Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)}
	svc, err := giftcert.NewService(giftcert.ServiceConfig{Store: store.NewMemory(), Clock: clock})
	require.NoError(t, err)
	return svc, clock
}

func issueExpiring(t *testing.T, svc *giftcert.Service, org giftcert.OrganizationID, until time.Time) giftcert.Certificate {
	t.Helper()
	res, err := svc.Create(context.Background(), giftcert.IssueRequest{
		OrganizationID: org,
		Amount:         decimal.NewFromInt(10),
		ValidUntil:     &until,
	})
	require.NoError(t, err)
	return res.Certificate
}

func TestExpirySweeper_RunNow_ExpiresOverdueAcrossOrganizations(t *testing.T) {
	ctx := context.Background()
	svc, clock := newSweeperEnv(t)

	// GIVEN: Two organizations, each with one certificate due tomorrow and
	// one due next month
	soon := clock.Now().Add(24 * time.Hour)
	later := clock.Now().AddDate(0, 1, 0)
	a := issueExpiring(t, svc, "org-a", soon)
	issueExpiring(t, svc, "org-a", later)
	b := issueExpiring(t, svc, "org-b", soon)
	noExpiry, err := svc.Create(ctx, giftcert.IssueRequest{OrganizationID: "org-b", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	sweeper := NewExpirySweeper(svc, nil)

	// WHEN: Sweeping before anything is due
	res := sweeper.RunNow(ctx)
	assert.Equal(t, 2, res.Organizations)
	assert.Equal(t, 0, res.Expired)

	// WHEN: Two days pass and the sweeper runs
	clock.Advance(48 * time.Hour)
	res = sweeper.RunNow(ctx)

	// THEN: Only the overdue certificates were expired
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 0, res.Failed)
	for _, c := range []giftcert.Certificate{a, b} {
		got, err := svc.Get(ctx, c.OrganizationID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, giftcert.StatusExpired, got.Status)
	}
	got, err := svc.Get(ctx, "org-b", noExpiry.Certificate.ID)
	require.NoError(t, err)
	assert.Equal(t, giftcert.StatusActive, got.Status)

	// AND: A second pass finds nothing new
	res = sweeper.RunNow(ctx)
	assert.Equal(t, 0, res.Expired)
}

func TestExpirySweeper_ExplicitOrganizations(t *testing.T) {
	ctx := context.Background()
	svc, clock := newSweeperEnv(t)
	soon := clock.Now().Add(time.Hour)
	a := issueExpiring(t, svc, "org-a", soon)
	b := issueExpiring(t, svc, "org-b", soon)
	clock.Advance(2 * time.Hour)

	sweeper := NewExpirySweeper(svc, nil)
	sweeper.Organizations = []giftcert.OrganizationID{"org-a"}
	res := sweeper.RunNow(ctx)

	assert.Equal(t, 1, res.Organizations)
	assert.Equal(t, 1, res.Expired)
	gotA, _ := svc.Get(ctx, "org-a", a.ID)
	gotB, _ := svc.Get(ctx, "org-b", b.ID)
	assert.Equal(t, giftcert.StatusExpired, gotA.Status)
	assert.Equal(t, giftcert.StatusActive, gotB.Status)
}

func TestExpirySweeper_StartStop_NoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, clock := newSweeperEnv(t)
	c := issueExpiring(t, svc, "org-a", clock.Now().Add(time.Minute))
	clock.Advance(time.Hour)

	// GIVEN: A running sweeper with a short interval
	sweeper := NewExpirySweeper(svc, nil)
	sweeper.Interval = 10 * time.Millisecond
	sweeper.Start()
	sweeper.Start() // second Start is a no-op

	// THEN: The first pass runs immediately on start
	assert.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), "org-a", c.ID)
		return err == nil && got.Status == giftcert.StatusExpired
	}, time.Second, 5*time.Millisecond)

	// WHEN: Stopped (twice)
	sweeper.Stop()
	sweeper.Stop()
	// THEN: goleak finds no goroutine left behind
}
