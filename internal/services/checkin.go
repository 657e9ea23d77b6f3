package services

import (
	"context"
	"errors"
	"fmt"

	"checkin-system/internal/status"
	"checkin-system/utils"
)

// CheckInService is the entry point for scanning stations and the manual
// check-in form. A station sends either a signed QR token or, for manual
// check-in, the registration id.
type CheckInService struct {
	allocator *Allocator
	signer    *utils.QRSigner
}

// NewCheckInService accepts a nil signer, in which case tokens are refused.
func NewCheckInService(allocator *Allocator, signer *utils.QRSigner) *CheckInService {
	return &CheckInService{allocator: allocator, signer: signer}
}

func (s *CheckInService) CheckIn(ctx context.Context, activityID, registrationID string) (*Allocation, error) {
	return s.allocator.Allocate(ctx, activityID, registrationID)
}

// CheckInToken verifies a QR token and checks in the registration it names.
// When activityID is set the token must belong to that activity.
func (s *CheckInService) CheckInToken(ctx context.Context, activityID, token string) (*Allocation, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("%w: qr check-in is not configured", status.ErrInvalidToken)
	}
	tokenActivity, registrationID, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, utils.ErrBadToken) {
			return nil, status.ErrInvalidToken
		}
		return nil, err
	}
	if activityID != "" && tokenActivity != activityID {
		return nil, fmt.Errorf("%w: token is for another activity", status.ErrInvalidToken)
	}
	return s.allocator.Allocate(ctx, tokenActivity, registrationID)
}

// IssueToken returns the QR payload printed on a registrant's pass.
func (s *CheckInService) IssueToken(activityID, registrationID string) (string, error) {
	if s.signer == nil {
		return "", errors.New("qr signer is not configured")
	}
	return s.signer.Sign(activityID, registrationID)
}
