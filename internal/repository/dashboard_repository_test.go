package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/database/dbtest"
	"github.com/iliyamo/vendor-portal/internal/model"
)

func seedBookings(t *testing.T, db *sql.DB) {
	t.Helper()
	now := time.Now().UTC()
	for _, row := range []struct {
		id, vendor string
		at         time.Time
	}{
		{"b2", "v1", now.Add(48 * time.Hour)},
		{"b1", "v1", now.Add(24 * time.Hour)},
		{"b3", "v2", now},
	} {
		_, err := db.Exec(`INSERT INTO bookings (id, vendor_id, customer_name, event_date, status, amount_cents, created_at)
			VALUES (?,?,?,?,?,?,?)`, row.id, row.vendor, "Kim", row.at, "pending", 1000, now)
		require.NoError(t, err)
	}
}

func TestDashboardBookings(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	seedBookings(t, db)
	repo := NewDashboardRepo(db)

	list, err := repo.ListBookings(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b1", list[0].ID)

	require.NoError(t, repo.UpdateBookingStatus(ctx, "v1", "b1", "confirmed"))
	assert.ErrorIs(t, repo.UpdateBookingStatus(ctx, "v1", "b3", "confirmed"), ErrNotFound, "other vendor's booking")

	list, err = repo.ListBookings(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", list[0].Status)
}

func TestDashboardTasks(t *testing.T) {
	ctx := context.Background()
	repo := NewDashboardRepo(dbtest.New(t))

	due := time.Now().Add(time.Hour)
	t1 := &model.Task{VendorID: "v1", AssigneeID: "st1", Title: "Confirm florist", DueAt: &due}
	require.NoError(t, repo.CreateTask(ctx, t1))
	require.NoError(t, repo.CreateTask(ctx, &model.Task{VendorID: "v1", Title: "Invoice"}))

	all, err := repo.ListTasks(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := repo.ListTasksByAssignee(ctx, "st1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "todo", mine[0].Status)
	require.NotNil(t, mine[0].DueAt)

	require.NoError(t, repo.UpdateTaskStatus(ctx, "v1", t1.ID, "done"))
	mine, err = repo.ListTasksByAssignee(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, "done", mine[0].Status)
}

func TestDashboardEmptyListsAreNotNil(t *testing.T) {
	ctx := context.Background()
	repo := NewDashboardRepo(dbtest.New(t))

	services, err := repo.ListServices(ctx, "v1")
	require.NoError(t, err)
	assert.NotNil(t, services)
	reviews, err := repo.ListReviews(ctx, "v1")
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	avail, err := repo.ListAvailability(ctx, "v1")
	require.NoError(t, err)
	assert.NotNil(t, avail)
	payments, err := repo.ListPayments(ctx, "v1")
	require.NoError(t, err)
	assert.NotNil(t, payments)
}

func TestPortfolioAddAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewPortfolioRepo(dbtest.New(t))

	img := &model.PortfolioImage{StaffID: "st1", VendorID: "v1", URL: "http://x/a.png", Tags: []string{"bride", "outdoor"}}
	require.NoError(t, repo.Add(ctx, img))
	require.NoError(t, repo.Add(ctx, &model.PortfolioImage{StaffID: "st2", VendorID: "v1", URL: "http://x/b.png"}))

	list, err := repo.ListByStaff(ctx, "st1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"bride", "outdoor"}, list[0].Tags)
}
