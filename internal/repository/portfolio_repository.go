package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/model"
)

// PortfolioRepo stores the tagged images staff upload to their portfolio.
// Tags are kept as a JSON array in a text column.
type PortfolioRepo struct {
	db *sql.DB
}

func NewPortfolioRepo(db *sql.DB) *PortfolioRepo {
	return &PortfolioRepo{db: db}
}

// Add records an uploaded image.
func (r *PortfolioRepo) Add(ctx context.Context, img *model.PortfolioImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.Tags == nil {
		img.Tags = []string{}
	}
	img.CreatedAt = time.Now().UTC()
	tags, err := json.Marshal(img.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO staff_portfolios (id, staff_id, vendor_id, url, tags, created_at) VALUES (?,?,?,?,?,?)",
		img.ID, img.StaffID, img.VendorID, img.URL, string(tags), img.CreatedAt)
	return err
}

// ListByStaff returns a staff member's images, newest first.
func (r *PortfolioRepo) ListByStaff(ctx context.Context, staffID string) ([]model.PortfolioImage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, staff_id, vendor_id, url, tags, created_at FROM staff_portfolios WHERE staff_id=? ORDER BY created_at DESC, id",
		staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PortfolioImage{}
	for rows.Next() {
		var (
			img  model.PortfolioImage
			tags string
		)
		if err := rows.Scan(&img.ID, &img.StaffID, &img.VendorID, &img.URL, &tags, &img.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &img.Tags); err != nil {
			img.Tags = []string{}
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
