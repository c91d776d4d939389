package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pawtrack/internal/types"
)

// PetRepository provides data access for the pets table. Pets move through
// pending -> active -> inactive according to the owner's plan quota; the
// status transitions themselves are decided by the quota package, this layer
// only executes them.
type PetRepository struct {
	db DBTX
}

// NewPetRepository creates a new PetRepository backed by the given database
// connection (pool or transaction).
func NewPetRepository(db DBTX) *PetRepository {
	return &PetRepository{db: db}
}

// petColumns defines the standard set of columns selected for pet queries.
const petColumns = `p.id, p.user_id, p.name, p.breed, p.photo,
	p.status, p.requested_by, p.approved_by, p.last_active_at,
	p.qr_token, p.tracker_code,
	p.last_lat, p.last_lng, p.last_seen_at, p.geofence_state,
	p.created_at`

// scanPet scans a single pet row into a types.Pet struct. The columns must
// match the order defined in petColumns.
func scanPet(row pgx.Row) (*types.Pet, error) {
	var pet types.Pet
	var (
		userID      *string
		breed       *string
		photo       *string
		requestedBy *string
		approvedBy  *string
		qrToken     *string
		trackerCode *string
	)

	err := row.Scan(
		&pet.ID,
		&userID,
		&pet.Name,
		&breed,
		&photo,
		&pet.Status,
		&requestedBy,
		&approvedBy,
		&pet.LastActiveAt,
		&qrToken,
		&trackerCode,
		&pet.LastLat,
		&pet.LastLng,
		&pet.LastSeenAt,
		&pet.GeofenceState,
		&pet.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Hydrate optional fields from nullable columns.
	if userID != nil {
		pet.UserID = *userID
	}
	if breed != nil {
		pet.Breed = *breed
	}
	if photo != nil {
		pet.Photo = *photo
	}
	if requestedBy != nil {
		pet.RequestedBy = *requestedBy
	}
	if approvedBy != nil {
		pet.ApprovedBy = *approvedBy
	}
	if qrToken != nil {
		pet.QRToken = *qrToken
	}
	if trackerCode != nil {
		pet.TrackerCode = *trackerCode
	}

	return &pet, nil
}

// CreatePending inserts a new pet in pending status. The caller must set the
// ID (prefixed UUID, "pet_..."), UserID, RequestedBy, QRToken and
// LastActiveAt before calling.
func (r *PetRepository) CreatePending(ctx context.Context, pet *types.Pet) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO pets (
			id, user_id, name, breed, photo,
			status, requested_by, last_active_at,
			qr_token, geofence_state, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, COALESCE($11, NOW())
		)`,
		pet.ID,
		pet.UserID,
		pet.Name,
		nilIfEmpty(pet.Breed),
		nilIfEmpty(pet.Photo),
		types.PetPending,
		nilIfEmpty(pet.RequestedBy),
		pet.LastActiveAt,
		nilIfEmpty(pet.QRToken),
		types.GeofenceUnknown,
		nilIfZeroTime(pet.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create pet", err)
	}
	return nil
}

// GetByID retrieves a pet by its ID. Returns ErrCodeNotFoundPet if not found.
func (r *PetRepository) GetByID(ctx context.Context, id string) (*types.Pet, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+petColumns+` FROM pets p WHERE p.id = $1`,
		id,
	)

	pet, err := scanPet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve pet", err)
	}
	return pet, nil
}

// ListByUser retrieves all pets belonging to a user, most recently activated
// first.
func (r *PetRepository) ListByUser(ctx context.Context, userID string) ([]*types.Pet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+petColumns+`
		 FROM pets p
		 WHERE p.user_id = $1
		 ORDER BY p.last_active_at DESC, p.id DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pets", err)
	}
	defer rows.Close()

	var results []*types.Pet
	for rows.Next() {
		pet, scanErr := scanPet(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pet row", scanErr)
		}
		results = append(results, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pet rows", err)
	}

	return results, nil
}

// CountByStatus counts a user's pets in any of the given statuses. The
// admission gate counts active+pending together so an approved backlog can
// never push an account past its quota.
func (r *PetRepository) CountByStatus(ctx context.Context, userID string, statuses ...types.PetStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM pets WHERE user_id = $1 AND status = ANY($2)`,
		userID, statuses,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count pets", err)
	}
	return count, nil
}

// SetActive transitions a pet to active, recording who approved it and
// refreshing last_active_at so the pet counts as most recently activated.
// Returns ErrCodeNotFoundPet if the pet does not exist.
func (r *PetRepository) SetActive(ctx context.Context, id string, approvedBy string, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET
			status = $1,
			approved_by = $2,
			last_active_at = $3
		 WHERE id = $4`,
		types.PetActive, nilIfEmpty(approvedBy), now, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to activate pet", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
	}
	return nil
}

// Delete removes a pet row entirely. Rejected requests are deleted rather
// than kept in a terminal status, so rejecting twice is a no-op for the
// second caller.
func (r *PetRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM pets WHERE id = $1`, id)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete pet", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReactivateUpTo flips at most need inactive pets back to active for the
// given user, most recently activated first (id DESC breaks ties), and
// refreshes last_active_at on each. Returns the number reactivated.
func (r *PetRepository) ReactivateUpTo(ctx context.Context, userID string, need int, now time.Time) (int64, error) {
	if need <= 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET
			status = $1,
			last_active_at = $2
		 WHERE id IN (
			SELECT id FROM pets
			WHERE user_id = $3 AND status = $4
			ORDER BY last_active_at DESC, id DESC
			LIMIT $5
		 )`,
		types.PetActive, now, userID, types.PetInactive, need,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to reactivate pets", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateExcess deactivates the user's active pets beyond the quota,
// keeping the quota most recently activated ones. Returns the number
// deactivated. last_active_at is left untouched so a later upgrade restores
// the same ordering.
func (r *PetRepository) DeactivateExcess(ctx context.Context, userID string, quota int) (int64, error) {
	if quota < 0 {
		quota = 0
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET
			status = $1
		 WHERE id IN (
			SELECT id FROM pets
			WHERE user_id = $2 AND status = $3
			ORDER BY last_active_at DESC, id DESC
			OFFSET $4
		 )`,
		types.PetInactive, userID, types.PetActive, quota,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate excess pets", err)
	}
	return tag.RowsAffected(), nil
}

// ListPending returns all pending pet requests joined with the requester's
// contact details, oldest first, for the admin review queue.
func (r *PetRepository) ListPending(ctx context.Context) ([]*types.PendingPet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+petColumns+`, u.email, u.name
		 FROM pets p
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.status = $1
		 ORDER BY p.created_at ASC, p.id ASC`,
		types.PetPending,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending pets", err)
	}
	defer rows.Close()

	var results []*types.PendingPet
	for rows.Next() {
		var pp types.PendingPet
		var (
			userID      *string
			breed       *string
			photo       *string
			requestedBy *string
			approvedBy  *string
			qrToken     *string
			trackerCode *string
			ownerEmail  *string
			ownerName   *string
		)
		err := rows.Scan(
			&pp.Pet.ID,
			&userID,
			&pp.Pet.Name,
			&breed,
			&photo,
			&pp.Pet.Status,
			&requestedBy,
			&approvedBy,
			&pp.Pet.LastActiveAt,
			&qrToken,
			&trackerCode,
			&pp.Pet.LastLat,
			&pp.Pet.LastLng,
			&pp.Pet.LastSeenAt,
			&pp.Pet.GeofenceState,
			&pp.Pet.CreatedAt,
			&ownerEmail,
			&ownerName,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pending pet row", err)
		}
		if userID != nil {
			pp.Pet.UserID = *userID
		}
		if breed != nil {
			pp.Pet.Breed = *breed
		}
		if photo != nil {
			pp.Pet.Photo = *photo
		}
		if requestedBy != nil {
			pp.Pet.RequestedBy = *requestedBy
		}
		if qrToken != nil {
			pp.Pet.QRToken = *qrToken
		}
		if trackerCode != nil {
			pp.Pet.TrackerCode = *trackerCode
		}
		if ownerEmail != nil {
			pp.OwnerEmail = *ownerEmail
		}
		if ownerName != nil {
			pp.OwnerName = *ownerName
		}
		results = append(results, &pp)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pending pet rows", err)
	}

	return results, nil
}

// GetCardByQRToken returns the public card projection for the pet carrying
// the given QR token. Only active pets resolve; a pending or deactivated pet
// behaves as if the token did not exist.
func (r *PetRepository) GetCardByQRToken(ctx context.Context, token string) (*types.PublicPetCard, error) {
	var card types.PublicPetCard
	var (
		photo      *string
		ownerName  *string
		ownerPhone *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT p.id, p.name, p.photo, u.name, u.phone
		 FROM pets p
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.qr_token = $1 AND p.status = $2`,
		token, types.PetActive,
	).Scan(&card.PetID, &card.PetName, &photo, &ownerName, &ownerPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve pet card", err)
	}
	if photo != nil {
		card.Photo = *photo
	}
	if ownerName != nil {
		card.OwnerName = *ownerName
	}
	if ownerPhone != nil {
		card.OwnerPhone = *ownerPhone
	}
	return &card, nil
}

// CountOrphans counts pets whose owner row no longer exists.
func (r *PetRepository) CountOrphans(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM pets p
		 WHERE p.user_id IS NULL
		    OR NOT EXISTS (SELECT 1 FROM users u WHERE u.id = p.user_id)`,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count orphan pets", err)
	}
	return count, nil
}

// AttachOrphans reassigns all orphaned pets to the given user as inactive.
// The next reconciliation decides whether they fit inside the new owner's
// quota. Returns the number of pets attached.
func (r *PetRepository) AttachOrphans(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET
			user_id = $1,
			status = $2
		 WHERE user_id IS NULL
		    OR NOT EXISTS (SELECT 1 FROM users u WHERE u.id = pets.user_id)`,
		userID, types.PetInactive,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to attach orphan pets", err)
	}
	return tag.RowsAffected(), nil
}

// SetTracker binds a tracker device code to a pet. Returns
// ErrCodeNotFoundPet if the pet does not exist.
func (r *PetRepository) SetTracker(ctx context.Context, petID string, code string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET tracker_code = $1 WHERE id = $2`,
		nilIfEmpty(code), petID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set tracker code", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
	}
	return nil
}

// ResolveTracker returns the ID of the pet bound to the given tracker code.
// Returns ErrCodeNotFoundPet when no pet carries the code.
func (r *PetRepository) ResolveTracker(ctx context.Context, code string) (string, error) {
	var petID string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM pets WHERE tracker_code = $1`,
		code,
	).Scan(&petID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundPet, "no pet bound to tracker", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve tracker", err)
	}
	return petID, nil
}

// GetWithOwner retrieves a pet together with its owner, used by geofence
// evaluation which needs the owner's home coordinates and phone. The owner
// is nil for orphaned pets.
func (r *PetRepository) GetWithOwner(ctx context.Context, petID string) (*types.Pet, *types.User, error) {
	pet, err := r.GetByID(ctx, petID)
	if err != nil {
		return nil, nil, err
	}
	if pet.UserID == "" {
		return pet, nil, nil
	}

	owner, err := NewUserRepository(r.db).GetByID(ctx, pet.UserID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return pet, nil, nil
		}
		return nil, nil, err
	}
	return pet, owner, nil
}

// UpdateLocation records a tracker fix and the geofence state computed from
// it. Returns ErrCodeNotFoundPet if the pet does not exist.
func (r *PetRepository) UpdateLocation(ctx context.Context, petID string, lat, lng float64, seenAt time.Time, state types.GeofenceState) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pets SET
			last_lat = $1,
			last_lng = $2,
			last_seen_at = $3,
			geofence_state = $4
		 WHERE id = $5`,
		lat, lng, seenAt, state, petID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update pet location", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPet, "pet not found", nil)
	}
	return nil
}

// QRTokenExists reports whether any pet already carries the given QR token.
// Used by the token source to retry on the (vanishingly rare) collision.
func (r *PetRepository) QRTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pets WHERE qr_token = $1)`,
		token,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check qr token", err)
	}
	return exists, nil
}
