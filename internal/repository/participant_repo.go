package repository

import (
	"context"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const participantColumns = `id, email, display_name, avatar_url, about, phone, password_hash, email_verified, created_at, updated_at`

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

type UpdateProfileInput struct {
	DisplayName *string
	AvatarURL   *string
	About       *string
	Phone       *string
}

func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	query := `
		INSERT INTO participants (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, participant.ID, participant.Email, participant.DisplayName, participant.PasswordHash).
		Scan(&participant.CreatedAt, &participant.UpdatedAt)
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return scanParticipant(r.db.QueryRow(ctx, query, id))
}

func (r *ParticipantRepository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE email = $1`
	return scanParticipant(r.db.QueryRow(ctx, query, email))
}

func (r *ParticipantRepository) UpdateProfile(
	ctx context.Context,
	id string,
	input UpdateProfileInput,
) (*models.Participant, error) {
	query := `
		UPDATE participants
		SET display_name = COALESCE($2, display_name),
		    avatar_url = COALESCE($3, avatar_url),
		    about = COALESCE($4, about),
		    phone = COALESCE($5, phone),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + participantColumns

	return scanParticipant(r.db.QueryRow(ctx, query, id, input.DisplayName, input.AvatarURL, input.About, input.Phone))
}

func (r *ParticipantRepository) MarkVerified(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE participants
		SET email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var participant models.Participant
	err := row.Scan(
		&participant.ID,
		&participant.Email,
		&participant.DisplayName,
		&participant.AvatarURL,
		&participant.About,
		&participant.Phone,
		&participant.PasswordHash,
		&participant.EmailVerified,
		&participant.CreatedAt,
		&participant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}
