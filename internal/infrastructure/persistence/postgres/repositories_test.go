package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rideloop/payments/internal/domain"
	"github.com/rideloop/payments/internal/infrastructure/persistence/postgres"
	"github.com/rideloop/payments/internal/infrastructure/persistence/testhelpers"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB   *testhelpers.TestDatabase
	intents  *postgres.IntentRepository
	queue    *postgres.CaptureQueueRepository
	earnings *postgres.EarningsRepository
	grants   *postgres.ReferralRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.intents = postgres.NewIntentRepository(suite.testDB.DB.Pool)
	suite.queue = postgres.NewCaptureQueueRepository(suite.testDB.DB.Pool)
	suite.earnings = postgres.NewEarningsRepository(suite.testDB.DB.Pool)
	suite.grants = postgres.NewReferralRepository(suite.testDB.DB.Pool)
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoryTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoryTestSuite) createIntent() *domain.PaymentIntent {
	intent := testhelpers.CreateAuthorizedIntent(suite.T())
	require.NoError(suite.T(), suite.intents.Create(context.Background(), intent))
	return intent
}

func (suite *RepositoryTestSuite) Test_Intent_RoundTrip() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()

	loaded, err := suite.intents.FindByID(ctx, intent.ID)
	require.NoError(t, err)

	assert.Equal(t, intent.ID, loaded.ID)
	assert.Equal(t, intent.BookingID, loaded.BookingID)
	assert.Equal(t, domain.StatusAuthorized, loaded.Status)
	assert.Equal(t, int64(3000), loaded.AmountSubtotal)
	assert.Equal(t, int64(300), loaded.DiscountAmount)
	assert.Equal(t, int64(2700), loaded.AmountTotal)
	require.NotNil(t, loaded.ExternalRef)
	assert.Equal(t, *intent.ExternalRef, *loaded.ExternalRef)
	assert.NotNil(t, loaded.AuthorizedAt)
	assert.Equal(t, 1, loaded.Version)

	byBooking, err := suite.intents.FindByBookingID(ctx, intent.BookingID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, byBooking.ID)
}

func (suite *RepositoryTestSuite) Test_Intent_NotFound() {
	_, err := suite.intents.FindByID(context.Background(), uuid.New().String())
	assert.True(suite.T(), domain.IsErrorCode(err, domain.ErrCodeIntentNotFound))
}

func (suite *RepositoryTestSuite) Test_Intent_UpdateBumpsVersion() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()

	require.NoError(t, intent.MarkCaptureQueued())
	require.NoError(t, suite.intents.Update(ctx, intent))
	assert.Equal(t, 2, intent.Version)

	loaded, err := suite.intents.FindByID(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCaptureQueued, loaded.Status)
	assert.Equal(t, 2, loaded.Version)
}

func (suite *RepositoryTestSuite) Test_Intent_StaleWriteRejected() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()

	stale, err := suite.intents.FindByID(ctx, intent.ID)
	require.NoError(t, err)

	require.NoError(t, intent.MarkCaptureQueued())
	require.NoError(t, suite.intents.Update(ctx, intent))

	require.NoError(t, stale.Cancel(time.Now()))
	err = suite.intents.Update(ctx, stale)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeVersionConflict))

	// The winning write is untouched.
	loaded, err := suite.intents.FindByID(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCaptureQueued, loaded.Status)
}

func (suite *RepositoryTestSuite) Test_Queue_SecondActiveItemRejected() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()

	first := testhelpers.CreateQueueItem(t, intent.ID, intent.AmountTotal)
	require.NoError(t, suite.queue.Enqueue(ctx, first))

	second := testhelpers.CreateQueueItem(t, intent.ID, intent.AmountTotal)
	err := suite.queue.Enqueue(ctx, second)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDuplicateQueueItem))

	// A completed item no longer blocks re-enqueueing.
	first.Complete()
	require.NoError(t, suite.queue.Update(ctx, first))
	require.NoError(t, suite.queue.Enqueue(ctx, second))
}

func (suite *RepositoryTestSuite) Test_Queue_ClaimIsExclusive() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()
	item := testhelpers.CreateQueueItem(t, intent.ID, intent.AmountTotal)
	require.NoError(t, suite.queue.Enqueue(ctx, item))

	claimed, err := suite.queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = suite.queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	active, err := suite.queue.FindActiveByIntent(ctx, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, domain.CaptureProcessing, active.Status)
}

func (suite *RepositoryTestSuite) Test_Queue_ReclaimExpiredReleasesLostClaims() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()
	item := testhelpers.CreateQueueItem(t, intent.ID, intent.AmountTotal)
	require.NoError(t, suite.queue.Enqueue(ctx, item))

	claimed, err := suite.queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// The claim is fresh: a cutoff in the past leaves it alone.
	n, err := suite.queue.ReclaimExpired(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Once the lease lapses the item is claimable again.
	n, err = suite.queue.ReclaimExpired(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claimed, err = suite.queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func (suite *RepositoryTestSuite) Test_Queue_FindDueHonorsBackoff() {
	ctx := context.Background()
	t := suite.T()

	now := time.Now()

	ready := suite.createIntent()
	readyItem := testhelpers.CreateQueueItem(t, ready.ID, ready.AmountTotal)
	require.NoError(t, suite.queue.Enqueue(ctx, readyItem))

	backedOff := suite.createIntent()
	backedOffItem := testhelpers.CreateQueueItem(t, backedOff.ID, backedOff.AmountTotal)
	require.NoError(t, suite.queue.Enqueue(ctx, backedOffItem))
	backedOffItem.ScheduleRetry(time.Hour, "provider unavailable")
	require.NoError(t, suite.queue.Update(ctx, backedOffItem))

	due, err := suite.queue.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, readyItem.ID, due[0].ID)

	// Once the backoff window passes, the retried item comes due.
	due, err = suite.queue.FindDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func (suite *RepositoryTestSuite) Test_Earnings_UpsertIsIdempotentPerBooking() {
	ctx := context.Background()
	t := suite.T()

	intent := suite.createIntent()

	record, err := domain.NewEarningsRecord(uuid.New().String(), intent.DriverID, intent.RideID, intent.BookingID, intent.ID, 2700)
	require.NoError(t, err)
	require.NoError(t, suite.earnings.UpsertByBooking(ctx, record))

	duplicate, err := domain.NewEarningsRecord(uuid.New().String(), intent.DriverID, intent.RideID, intent.BookingID, intent.ID, 2700)
	require.NoError(t, err)
	require.NoError(t, suite.earnings.UpsertByBooking(ctx, duplicate))

	loaded, err := suite.earnings.FindByBookingID(ctx, intent.BookingID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, int64(2700), loaded.GrossAmount)
	assert.Equal(t, int64(405), loaded.PlatformFee)
	assert.Equal(t, int64(2295), loaded.NetAmount)

	pending, err := suite.earnings.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func (suite *RepositoryTestSuite) Test_Grants_ReferredPreferredOverReward() {
	ctx := context.Background()
	t := suite.T()

	riderID := "rider-" + uuid.New().String()

	reward, err := domain.NewReferralDiscountGrant(uuid.New().String(), "use-1", riderID, domain.RoleReferrer)
	require.NoError(t, err)
	reward.Unlock(time.Now())
	suite.testDB.InsertGrant(t, reward)

	referred, err := domain.NewReferralDiscountGrant(uuid.New().String(), "use-2", riderID, domain.RoleReferred)
	require.NoError(t, err)
	suite.testDB.InsertGrant(t, referred)

	grant, err := suite.grants.FindConsumableByBeneficiary(ctx, riderID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, referred.ID, grant.ID)

	now := time.Now()
	require.NoError(t, grant.Consume(now))
	require.NoError(t, suite.grants.Update(ctx, grant))

	// With the referred grant spent, the unlocked reward is next.
	next, err := suite.grants.FindConsumableByBeneficiary(ctx, riderID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, reward.ID, next.ID)
}

func (suite *RepositoryTestSuite) Test_Grants_FindByReferralUse() {
	ctx := context.Background()
	t := suite.T()

	referred, err := domain.NewReferralDiscountGrant(uuid.New().String(), "use-9", "rider-a", domain.RoleReferred)
	require.NoError(t, err)
	suite.testDB.InsertGrant(t, referred)

	reward, err := domain.NewReferralDiscountGrant(uuid.New().String(), "use-9", "rider-b", domain.RoleReferrer)
	require.NoError(t, err)
	suite.testDB.InsertGrant(t, reward)

	found, err := suite.grants.FindByReferralUse(ctx, "use-9", domain.RoleReferrer)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, reward.ID, found.ID)
	assert.Equal(t, domain.GrantUnavailable, found.Status)

	missing, err := suite.grants.FindByReferralUse(ctx, "use-unknown", domain.RoleReferrer)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
