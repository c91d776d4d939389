package quota

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"pawtrack/internal/db"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// qrTokenAttempts bounds the collision-retry loop when minting QR tokens.
// With 256-bit tokens a single retry is already astronomically unlikely.
const qrTokenAttempts = 5

// NewPetInput carries the user-supplied fields of a pet request.
type NewPetInput struct {
	Name  string `json:"name"`
	Breed string `json:"breed,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// RequestPet re-runs the admission gate and, if it passes, records a pending
// pet for the requester. The gate check and the insert share one transaction
// so two concurrent requests cannot both squeeze into the last slot.
func (s *Service) RequestPet(ctx context.Context, requesterID string, input NewPetInput) (*types.Pet, error) {
	var pet *types.Pet
	err := s.runner.InTx(ctx, requesterID, func(tx db.DBTX) error {
		st := s.stores(tx)
		user, err := st.Users.GetByID(ctx, requesterID)
		if err != nil {
			return err
		}

		decision, err := s.gateCheck(ctx, st, user)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return types.NewAppError(types.ErrCodeQuotaPetsExceeded, decision.Reason, nil)
		}

		qrToken, err := s.mintQRToken(ctx, st)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		pet = &types.Pet{
			ID:            "pet_" + uuid.New().String(),
			UserID:        user.ID,
			Name:          input.Name,
			Breed:         input.Breed,
			Photo:         input.Photo,
			Status:        types.PetPending,
			RequestedBy:   requesterID,
			LastActiveAt:  now,
			QRToken:       qrToken,
			GeofenceState: types.GeofenceUnknown,
			CreatedAt:     now,
		}
		return st.Pets.CreatePending(ctx, pet)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pet requested",
		slog.String("pet_id", pet.ID),
		slog.String("user_id", requesterID),
	)
	return pet, nil
}

// Approve transitions a pending pet to active. Approval enforces the active
// quota independently of the gate: the owner may have downgraded since the
// request, in which case the pet stays pending and the approver gets a quota
// error.
func (s *Service) Approve(ctx context.Context, petID string, adminID string) (*types.Pet, error) {
	pet, err := s.petOwnerScope(ctx, petID)
	if err != nil {
		return nil, err
	}

	err = s.runner.InTx(ctx, pet.UserID, func(tx db.DBTX) error {
		st := s.stores(tx)

		// Re-read under the lock; the pet may have been rejected meanwhile.
		current, err := st.Pets.GetByID(ctx, petID)
		if err != nil {
			return err
		}
		if current.Status == types.PetActive {
			pet = current
			return nil // already approved, idempotent
		}

		owner, err := st.Users.GetByID(ctx, current.UserID)
		if err != nil {
			return err
		}

		if !plans.Unlimited(owner.Role, owner.Plan) {
			quota := plans.QuotaFor(owner.Plan)
			active, err := st.Pets.CountByStatus(ctx, owner.ID, types.PetActive)
			if err != nil {
				return err
			}
			if active >= quota {
				return types.NewAppError(types.ErrCodeQuotaPetsExceeded,
					"owner has no free active slot; pet stays pending", nil)
			}
		}

		now := s.clock.Now()
		if err := st.Pets.SetActive(ctx, petID, adminID, now); err != nil {
			return err
		}
		current.Status = types.PetActive
		current.ApprovedBy = adminID
		current.LastActiveAt = now
		pet = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pet approved",
		slog.String("pet_id", petID),
		slog.String("admin_id", adminID),
	)
	return pet, nil
}

// Reject removes a pending pet request entirely. There is no rejected
// status; rejecting an already-rejected (deleted) pet reports deleted=false
// without error, so retried rejections are harmless.
func (s *Service) Reject(ctx context.Context, petID string) (bool, error) {
	pet, err := s.petOwnerScope(ctx, petID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPet {
			return false, nil
		}
		return false, err
	}

	var deleted bool
	err = s.runner.InTx(ctx, pet.UserID, func(tx db.DBTX) error {
		st := s.stores(tx)
		deleted, err = st.Pets.Delete(ctx, petID)
		return err
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.InfoContext(ctx, "pet request rejected", slog.String("pet_id", petID))
	}
	return deleted, nil
}

// petOwnerScope resolves the pet's owner so the caller can key the advisory
// lock on the right account.
func (s *Service) petOwnerScope(ctx context.Context, petID string) (*types.Pet, error) {
	var pet *types.Pet
	err := s.runner.InTx(ctx, petID, func(tx db.DBTX) error {
		var err error
		pet, err = s.stores(tx).Pets.GetByID(ctx, petID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

// mintQRToken mints a QR token, retrying on the vanishingly rare collision.
func (s *Service) mintQRToken(ctx context.Context, st Stores) (string, error) {
	for i := 0; i < qrTokenAttempts; i++ {
		tok := s.tokens.NewToken()
		exists, err := st.Pets.QRTokenExists(ctx, tok)
		if err != nil {
			return "", err
		}
		if !exists {
			return tok, nil
		}
	}
	return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to mint unique qr token", nil)
}
