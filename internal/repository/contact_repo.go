package repository

import (
	"context"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
)

type ContactRepository struct {
	db DBTX
}

func NewContactRepository(db DBTX) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Add(ctx context.Context, ownerID string, contactID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contacts (owner_id, contact_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id, contact_id) DO NOTHING
	`, ownerID, contactID)
	return err
}

func (r *ContactRepository) ListForOwner(ctx context.Context, ownerID string) ([]models.Contact, error) {
	query := `
		SELECT c.owner_id, c.created_at,
		       p.id, p.email, p.display_name, p.avatar_url, p.about, p.phone, p.email_verified, p.created_at, p.updated_at
		FROM contacts c
		JOIN participants p ON p.id = c.contact_id
		WHERE c.owner_id = $1
		ORDER BY LOWER(p.display_name), p.email
	`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0)
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(
			&contact.OwnerID,
			&contact.CreatedAt,
			&contact.Contact.ID,
			&contact.Contact.Email,
			&contact.Contact.DisplayName,
			&contact.Contact.AvatarURL,
			&contact.Contact.About,
			&contact.Contact.Phone,
			&contact.Contact.EmailVerified,
			&contact.Contact.CreatedAt,
			&contact.Contact.UpdatedAt,
		); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return contacts, nil
}
