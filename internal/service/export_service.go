package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/export"
	"github.com/lektorek-app/lektorek-api/pkg/storage"
)

type exportBookingRepository interface {
	ListWithStudent(ctx context.Context, teacherID, from, to string) ([]models.BookingWithStudent, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	DownloadPath string
	ResultTTL    time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ExportID  string    `json:"export_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders CRM exports (booking lists as CSV, weekly schedules
// as PDF), stores them on disk and hands out signed download URLs.
type ExportService struct {
	bookings exportBookingRepository
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(bookings exportBookingRepository, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		bookings: bookings,
		storage:  files,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// BookingsCSV exports the teacher's bookings in a date range as CSV.
func (s *ExportService) BookingsCSV(ctx context.Context, actor models.ActorContext, from, to string) (*ExportResult, error) {
	if !actor.Role.IsTeacher() && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	if from == "" || to == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to dates are required")
	}

	list, err := s.bookings.List(ctx, models.BookingFilter{TeacherID: actor.UserID, DateFrom: from, DateTo: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect bookings")
	}

	data := export.Dataset{
		Headers: []string{"date", "time_slot", "mode", "status", "amount", "notes"},
	}
	for _, b := range list {
		data.Rows = append(data.Rows, map[string]string{
			"date":      b.BookingDate,
			"time_slot": b.TimeSlot,
			"mode":      string(b.LessonMode),
			"status":    string(b.Status),
			"amount":    fmt.Sprintf("%.2f", b.Amount),
			"notes":     b.Notes,
		})
	}

	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return s.store(fmt.Sprintf("bookings_%s_%s.csv", from, to), payload)
}

// SchedulePDF exports the teacher's week of active lessons as a PDF.
func (s *ExportService) SchedulePDF(ctx context.Context, actor models.ActorContext, from, to string) (*ExportResult, error) {
	if !actor.Role.IsTeacher() && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	if from == "" || to == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to dates are required")
	}

	list, err := s.bookings.ListWithStudent(ctx, actor.UserID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect schedule")
	}

	data := export.Dataset{
		Headers: []string{"date", "time_slot", "student", "mode", "notes"},
	}
	for _, b := range list {
		data.Rows = append(data.Rows, map[string]string{
			"date":      b.BookingDate,
			"time_slot": b.TimeSlot,
			"student":   b.StudentName,
			"mode":      string(b.LessonMode),
			"notes":     b.Notes,
		})
	}

	payload, err := s.pdf.Render(data, "Weekly schedule", fmt.Sprintf("%s to %s", from, to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return s.store(fmt.Sprintf("schedule_%s_%s.pdf", from, to), payload)
}

// Download resolves a signed token to the stored file contents.
func (s *ExportService) Download(token string) (filename string, payload []byte, err error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	payload, err = s.storage.Read(relPath)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return relPath, payload, nil
}

// CleanupExpired removes export files older than the result TTL.
func (s *ExportService) CleanupExpired() {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
}

func (s *ExportService) store(filename string, payload []byte) (*ExportResult, error) {
	exportID := uuid.NewString()
	stored := exportID + "_" + filename
	if _, err := s.storage.Save(stored, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	url := token
	if s.cfg.DownloadPath != "" {
		url = s.cfg.DownloadPath + "?token=" + token
	}
	return &ExportResult{ExportID: exportID, Filename: stored, URL: url, ExpiresAt: expiresAt}, nil
}
