package services

import (
	"context"
	"testing"

	"checkin-system/internal/status"
	"checkin-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCheckIn(t *testing.T, withSigner bool) (*CheckInService, *utils.QRSigner) {
	t.Helper()
	s := newTestStore()
	addRegistration(s, "r1")

	var signer *utils.QRSigner
	if withSigner {
		var err error
		signer, err = utils.NewQRSigner("0123456789abcdef-checkin")
		require.NoError(t, err)
	}
	return NewCheckInService(NewAllocator(s, fastRetry(), nil, nil), signer), signer
}

func TestCheckInToken(t *testing.T) {
	svc, _ := newCheckIn(t, true)

	token, err := svc.IssueToken(testActivity, "r1")
	require.NoError(t, err)

	alloc, err := svc.CheckInToken(context.Background(), testActivity, token)
	require.NoError(t, err)
	assert.Equal(t, "r1", alloc.RegistrationID)
	assert.Equal(t, "ANE-001", alloc.DisplayQueueNumber)
}

func TestCheckInToken_AnyActivity(t *testing.T) {
	svc, _ := newCheckIn(t, true)
	token, err := svc.IssueToken(testActivity, "r1")
	require.NoError(t, err)

	alloc, err := svc.CheckInToken(context.Background(), "", token)
	require.NoError(t, err)
	assert.Equal(t, testActivity, alloc.ActivityID)
}

func TestCheckInToken_WrongActivity(t *testing.T) {
	svc, _ := newCheckIn(t, true)
	token, err := svc.IssueToken(testActivity, "r1")
	require.NoError(t, err)

	_, err = svc.CheckInToken(context.Background(), "act-2", token)
	assert.ErrorIs(t, err, status.ErrInvalidToken)
}

func TestCheckInToken_Forged(t *testing.T) {
	svc, _ := newCheckIn(t, true)

	other, err := utils.NewQRSigner("fedcba9876543210-other")
	require.NoError(t, err)
	token, err := other.Sign(testActivity, "r1")
	require.NoError(t, err)

	_, err = svc.CheckInToken(context.Background(), testActivity, token)
	assert.ErrorIs(t, err, status.ErrInvalidToken)
}

func TestCheckInToken_NoSigner(t *testing.T) {
	svc, _ := newCheckIn(t, false)

	_, err := svc.CheckInToken(context.Background(), testActivity, "anything")
	assert.ErrorIs(t, err, status.ErrInvalidToken)

	_, err = svc.IssueToken(testActivity, "r1")
	assert.Error(t, err)
}

func TestCheckIn_ById(t *testing.T) {
	svc, _ := newCheckIn(t, false)

	alloc, err := svc.CheckIn(context.Background(), testActivity, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, alloc.QueueNumber)

	_, err = svc.CheckIn(context.Background(), testActivity, "r1")
	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)
}

