package geofence

import (
	"context"
	"log/slog"
	"time"

	"pawtrack/internal/types"
)

// smsTimeout bounds the fire-and-forget alert delivery.
const smsTimeout = 10 * time.Second

// PetStore is the subset of the pet repository location ingest needs.
type PetStore interface {
	ResolveTracker(ctx context.Context, code string) (string, error)
	GetWithOwner(ctx context.Context, petID string) (*types.Pet, *types.User, error)
	UpdateLocation(ctx context.Context, petID string, lat, lng float64, seenAt time.Time, state types.GeofenceState) error
}

// Notifier delivers exit alerts. Satisfied by external.SMSGatewayClient.
type Notifier interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Service ingests tracker fixes: persist the location, run the geofence
// state machine, and alert the owner when the pet leaves the safe zone.
type Service struct {
	pets      PetStore
	evaluator *Evaluator
	notifier  Notifier
	clock     types.Clock
	logger    *slog.Logger
}

// NewService creates the geofence Service. A nil logger falls back to
// slog.Default(), a nil clock to the real clock. A nil notifier disables
// alerts (they are logged and dropped).
func NewService(pets PetStore, evaluator *Evaluator, notifier Notifier, clock types.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		pets:      pets,
		evaluator: evaluator,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

// Ingest records a fix for the pet and returns the resulting evaluation.
// The alert SMS, if any, is sent after the location write succeeds, off the
// request path; a gateway failure never fails the ingest.
func (s *Service) Ingest(ctx context.Context, petID string, lat, lng float64) (*Evaluation, error) {
	if err := validateCoords(lat, lng); err != nil {
		return nil, err
	}

	pet, owner, err := s.pets.GetWithOwner(ctx, petID)
	if err != nil {
		return nil, err
	}

	var homeLat, homeLng *float64
	if owner != nil {
		homeLat, homeLng = owner.HomeLat, owner.HomeLng
	}
	eval := s.evaluator.Evaluate(pet.GeofenceState, homeLat, homeLng, lat, lng)

	if err := s.pets.UpdateLocation(ctx, petID, lat, lng, s.clock.Now(), eval.State); err != nil {
		return nil, err
	}

	if eval.Alert {
		s.alert(ctx, pet, owner, eval)
	}
	return &eval, nil
}

// IngestByTracker resolves a tracker device code and ingests the fix for
// the bound pet.
func (s *Service) IngestByTracker(ctx context.Context, code string, lat, lng float64) (*Evaluation, error) {
	petID, err := s.pets.ResolveTracker(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, petID, lat, lng)
}

// alert delivers the exit SMS without blocking the ingest path. The context
// is detached so a finished request does not cancel an in-flight send.
func (s *Service) alert(ctx context.Context, pet *types.Pet, owner *types.User, eval Evaluation) {
	if owner == nil || owner.Phone == "" {
		s.logger.WarnContext(ctx, "geofence exit with no reachable owner",
			slog.String("pet_id", pet.ID))
		return
	}
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "geofence exit alert dropped, no sms gateway configured",
			slog.String("pet_id", pet.ID))
		return
	}

	phone := owner.Phone
	message := AlertMessage(pet.Name, eval.DistanceMeters)
	petID := pet.ID
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), smsTimeout)
		defer cancel()
		if err := s.notifier.SendSMS(sendCtx, phone, message); err != nil {
			s.logger.ErrorContext(sendCtx, "failed to send geofence alert",
				slog.String("pet_id", petID),
				slog.String("error", err.Error()))
			return
		}
		s.logger.InfoContext(sendCtx, "geofence alert sent", slog.String("pet_id", petID))
	}()
}

func validateCoords(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return types.NewAppError(types.ErrCodeValidationInvalidCoord,
			"coordinates out of range", nil)
	}
	return nil
}
