package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/dashboard"
	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/realtime"
	"github.com/iliyamo/vendor-portal/internal/repository"
	"github.com/iliyamo/vendor-portal/internal/session"
	"github.com/iliyamo/vendor-portal/internal/storage"
)

// maxUploadForm bounds the multipart form of one portfolio batch.
const maxUploadForm = 64 << 20

// StaffHandler serves the staff area.  Routes run behind StaffGuard.
type StaffHandler struct {
	Svc       *dashboard.Service
	Uploader  *storage.Uploader
	Portfolio *repository.PortfolioRepo
}

func NewStaffHandler(svc *dashboard.Service, up *storage.Uploader, portfolio *repository.PortfolioRepo) *StaffHandler {
	return &StaffHandler{Svc: svc, Uploader: up, Portfolio: portfolio}
}

func staffScope(r *session.Resolver) dashboard.Scope {
	s := r.Snapshot().Staff
	return dashboard.Scope{VendorID: s.VendorID, StaffID: s.ID}
}

// Dashboard answers the staff row, the assigned tasks and the portfolio.
func (h *StaffHandler) Dashboard(c echo.Context) error {
	r := middleware.Resolver(c)
	ctx := c.Request().Context()
	scope := staffScope(r)
	if err := h.Svc.Watch(r, scope); err != nil {
		slog.WarnContext(ctx, "watch changes failed", "error", err)
	}
	tasks, err := h.Svc.Load(ctx, r.Cache(), datacache.Tasks, scope)
	if err != nil && tasks.Data == nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed"})
	}
	images, err := h.Portfolio.ListByStaff(ctx, scope.StaffID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"staff_profile": r.Snapshot().Staff,
		"tasks":         tasks,
		"portfolio":     images,
	})
}

// Tasks lists the tasks assigned to the staff member.
func (h *StaffHandler) Tasks(c echo.Context) error {
	r := middleware.Resolver(c)
	ctx := c.Request().Context()
	scope := staffScope(r)
	if err := h.Svc.Watch(r, scope); err != nil {
		slog.WarnContext(ctx, "watch changes failed", "error", err)
	}
	v, err := h.Svc.Load(ctx, r.Cache(), datacache.Tasks, scope)
	if err != nil && v.Data == nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed"})
	}
	return c.JSON(http.StatusOK, v)
}

// ListPortfolio lists the staff member's images, newest first.
func (h *StaffHandler) ListPortfolio(c echo.Context) error {
	r := middleware.Resolver(c)
	images, err := h.Portfolio.ListByStaff(c.Request().Context(), staffScope(r).StaffID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": images})
}

// UploadPortfolio stores the "files" of a multipart form with the given
// "tags" (repeated or comma separated).  It answers 201 when at least one
// file was stored and 422 when none was; each file has its own result.
func (h *StaffHandler) UploadPortfolio(c echo.Context) error {
	req := c.Request()
	if err := req.ParseMultipartForm(maxUploadForm); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid multipart form"})
	}
	form := req.MultipartForm
	headers := form.File["files"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "files required"})
	}

	var tags []string
	for _, v := range form.Value["tags"] {
		tags = append(tags, strings.Split(v, ",")...)
	}
	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, storage.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open:     opener(fh),
		})
	}

	r := middleware.Resolver(c)
	staff := r.Snapshot().Staff
	results := h.Uploader.UploadBatch(req.Context(), staff, uploads, tags)

	stored := 0
	for _, res := range results {
		if res.OK() {
			stored++
			h.Svc.Announce(req.Context(), dashboard.TablePortfolios, staff.VendorID, res.Image.ID, realtime.OpInsert)
		}
	}
	status := http.StatusCreated
	if stored == 0 {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, echo.Map{"stored": stored, "results": results})
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}
