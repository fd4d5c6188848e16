package registry

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// productRow is the MySQL row for a tracked product
type productRow struct {
	ID            string       `gorm:"primaryKey;size:191"`
	URL           string       `gorm:"type:text"`
	Title         string       `gorm:"size:512"`
	TargetPrice   float64
	LastPrice     *float64
	OwnerEmail    string       `gorm:"size:320;index"`
	LastCheckedAt *time.Time
	PriceHistory  []PricePoint `gorm:"serializer:json;type:text"`
	CreatedAt     time.Time    `gorm:"index"`
	UpdatedAt     time.Time
}

func (productRow) TableName() string {
	return "tracked_products"
}

func rowFromProduct(p *TrackedProduct) *productRow {
	return &productRow{
		ID:            p.ID,
		URL:           p.URL,
		Title:         p.Title,
		TargetPrice:   p.TargetPrice,
		LastPrice:     p.LastPrice,
		OwnerEmail:    p.OwnerEmail,
		LastCheckedAt: p.LastCheckedAt,
		PriceHistory:  p.PriceHistory,
	}
}

func (r *productRow) product() TrackedProduct {
	history := r.PriceHistory
	if history == nil {
		history = []PricePoint{}
	}
	return TrackedProduct{
		ID:            r.ID,
		URL:           r.URL,
		Title:         r.Title,
		TargetPrice:   r.TargetPrice,
		LastPrice:     r.LastPrice,
		OwnerEmail:    r.OwnerEmail,
		LastCheckedAt: r.LastCheckedAt,
		PriceHistory:  history,
	}
}

// GormStore persists products in MySQL through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens dsn and migrates the products table
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewGormStoreWithDB(db)
}

// NewGormStoreWithDB wraps an open gorm handle
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&productRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Get loads a product
func (s *GormStore) Get(ctx context.Context, id string) (*TrackedProduct, bool, error) {
	var row productRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p := row.product()
	return &p, true, nil
}

// Put inserts or updates a product, leaving created_at untouched on update
func (s *GormStore) Put(ctx context.Context, p *TrackedProduct) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rowFromProduct(p)).Error
}

// Delete removes a product
func (s *GormStore) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&productRow{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns products in insertion order
func (s *GormStore) List(ctx context.Context) ([]TrackedProduct, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// ListByOwner returns the owner's products in insertion order
func (s *GormStore) ListByOwner(ctx context.Context, email string) ([]TrackedProduct, error) {
	var rows []productRow
	err := s.db.WithContext(ctx).
		Where("owner_email = ?", email).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// Count returns the number of products
func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&productRow{}).Count(&n).Error
	return int(n), err
}

// Close closes the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toProducts(rows []productRow) []TrackedProduct {
	out := make([]TrackedProduct, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].product())
	}
	return out
}
