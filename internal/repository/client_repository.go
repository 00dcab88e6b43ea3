package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/canchallena/panel/internal/model"
)

// ClientFilter narrows client searches.
type ClientFilter struct {
	// Query matches name, phone, sender id, RUT or email.
	Query   string
	Channel model.ClientChannel
}

type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*model.Client, error)
	GetBySenderID(ctx context.Context, senderID string) (*model.Client, error)
	ListBySenderIDs(ctx context.Context, senderIDs []string) ([]model.Client, error)
	FindByPhone(ctx context.Context, phone string) (*model.Client, error)
	// Search returns the page of matching clients, most recently updated first.
	Search(ctx context.Context, f ClientFilter, limit, offset int) ([]model.Client, int64, error)
	Create(ctx context.Context, client *model.Client) error
}

type GormClientRepository struct {
	db *gorm.DB
}

func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

func (r *GormClientRepository) GetByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormClientRepository) GetBySenderID(ctx context.Context, senderID string) (*model.Client, error) {
	var c model.Client
	if err := r.db.WithContext(ctx).First(&c, "sender_id = ?", senderID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormClientRepository) ListBySenderIDs(ctx context.Context, senderIDs []string) ([]model.Client, error) {
	if len(senderIDs) == 0 {
		return []model.Client{}, nil
	}
	var clients []model.Client
	if err := r.db.WithContext(ctx).Where("sender_id IN ?", senderIDs).Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	// Keep only digits; ignore formatting characters.
	b := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		c := phone[i]
		if c >= '0' && c <= '9' {
			b = append(b, c)
		}
	}
	return string(b)
}

func (r *GormClientRepository) FindByPhone(ctx context.Context, phone string) (*model.Client, error) {
	n := normalizePhone(phone)
	if n == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var c model.Client
	// Try the raw value first, then digits only and the "+digits" form the bot stores.
	err := r.db.WithContext(ctx).
		Where("telefono IN ?", []string{strings.TrimSpace(phone), n, "+" + n}).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// sanitizeSearch drops characters that act as wildcards or separators in
// filter expressions.
func sanitizeSearch(q string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '%', '_', '\\', '(', ')', ',', '.', '"', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(q))
}

func (r *GormClientRepository) Search(
	ctx context.Context,
	f ClientFilter,
	limit, offset int,
) ([]model.Client, int64, error) {
	var (
		clients []model.Client
		total   int64
	)

	q := r.db.WithContext(ctx).Model(&model.Client{})
	if f.Channel != "" {
		q = q.Where("canal = ?", f.Channel)
	}
	if s := sanitizeSearch(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where(
			"LOWER(nombre) LIKE ? OR LOWER(telefono) LIKE ? OR LOWER(sender_id) LIKE ? OR LOWER(rut) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like, like,
		)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("updated_at DESC").Find(&clients).Error; err != nil {
		return nil, 0, err
	}

	return clients, total, nil
}

func (r *GormClientRepository) Create(ctx context.Context, client *model.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}
