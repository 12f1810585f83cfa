package services

import (
	"context"
	"errors"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// PartnerService handles partner-linking business logic
type PartnerService struct {
	profiles ProfileStore
	notifier Notifier
}

// NewPartnerService creates a new partner service
func NewPartnerService(profiles ProfileStore, notifier Notifier) *PartnerService {
	return &PartnerService{
		profiles: profiles,
		notifier: notifierOrNop(notifier),
	}
}

// ConnectRequest represents the request body for linking two profiles
type ConnectRequest struct {
	MyID        string `json:"myId"`
	PartnerCode string `json:"partnerCode"`
}

// ConnectResponse is returned after a successful link
type ConnectResponse struct {
	Profile *models.Profile `json:"profile"`
	Partner *models.Profile `json:"partner"`
}

// Connect links the requester with the profile owning partnerCode.
// Linking the same two profiles again re-applies identical values.
func (s *PartnerService) Connect(ctx context.Context, myID, partnerCode string) (*ConnectResponse, error) {
	if myID == "" {
		return nil, models.ValidationError(errors.New("myId: cannot be blank"))
	}
	partnerCode = NormalizeCode(partnerCode)
	if err := ValidateCode(partnerCode); err != nil {
		return nil, err
	}

	partner, err := s.profiles.GetByCode(ctx, partnerCode)
	if err != nil {
		return nil, err
	}

	me, err := s.profiles.GetByID(ctx, myID)
	if err != nil {
		return nil, err
	}

	if me.ID == partner.ID {
		return nil, models.ValidationError(errors.New("cannot link a profile with itself"))
	}
	if me.HasPartner() && *me.PartnerID != partner.ID {
		return nil, fmt.Errorf("profile is already linked to another partner: %w", models.ErrConflict)
	}
	if partner.HasPartner() && *partner.PartnerID != me.ID {
		return nil, fmt.Errorf("partner is already linked to another profile: %w", models.ErrConflict)
	}

	if err := s.profiles.Link(ctx, me, partner); err != nil {
		return nil, err
	}

	me, err = s.profiles.GetByID(ctx, me.ID)
	if err != nil {
		return nil, err
	}
	partner, err = s.profiles.GetByID(ctx, partner.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("profile_id", me.ID).
		Str("partner_id", partner.ID).
		Msg("Profiles linked")

	data := map[string]interface{}{"profile_id": me.ID, "partner_id": partner.ID}
	s.notifier.Notify(me.ID, WSMessage{Type: EventPartnerLinked, Data: data})
	s.notifier.Notify(partner.ID, WSMessage{Type: EventPartnerLinked, Data: data})

	return &ConnectResponse{Profile: me, Partner: partner}, nil
}

// Disconnect clears the partnership of a profile on both sides
func (s *PartnerService) Disconnect(ctx context.Context, myID string) error {
	if myID == "" {
		return models.ValidationError(errors.New("myId: cannot be blank"))
	}

	partnerID, err := s.profiles.Unlink(ctx, myID)
	if err != nil {
		return err
	}

	log.Info().
		Str("profile_id", myID).
		Str("partner_id", partnerID).
		Msg("Profiles unlinked")

	s.notifier.Notify(myID, WSMessage{Type: EventPartnerUnlinked})
	s.notifier.Notify(partnerID, WSMessage{Type: EventPartnerUnlinked})
	return nil
}

// GetPartner returns the linked partner of a profile
func (s *PartnerService) GetPartner(ctx context.Context, profileID string) (*models.Profile, error) {
	me, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !me.HasPartner() {
		return nil, fmt.Errorf("partner %w", models.ErrNotFound)
	}
	return s.profiles.GetByID(ctx, *me.PartnerID)
}
