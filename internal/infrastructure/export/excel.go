package export

import (
	"fmt"
	"io"

	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	// RequestsSheet lists one request per row
	RequestsSheet = "Requests"
	// SummarySheet holds status totals and the per-category breakdown
	SummarySheet = "Summary"

	dateLayout = "2006-01-02 15:04"
)

var requestHeader = []interface{}{
	"ID", "Title", "Requester", "Category", "Priority", "Status",
	"Current Step", "Total Steps", "Due Date", "Created At", "Updated At",
}

var summaryHeader = []interface{}{"Category", "Total", "Pending", "In Progress", "Approved", "Rejected"}

// ExcelExporter renders requests as an XLSX workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) FileExtension() string {
	return ".xlsx"
}

// ExportRequests writes the Requests and Summary sheets to w
func (e *ExcelExporter) ExportRequests(w io.Writer, requests []*entity.ApprovalRequest, stats *entity.RequestStats, categories []*entity.CategoryStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), RequestsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.fillRequests(f, bold, requests); err != nil {
		return err
	}
	if err := e.fillSummary(f, bold, stats, categories); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Requests exported",
		zap.Int("request_count", len(requests)),
		zap.Int("category_count", len(categories)))
	return nil
}

func (e *ExcelExporter) fillRequests(f *excelize.File, headerStyle int, requests []*entity.ApprovalRequest) error {
	if err := writeRow(f, RequestsSheet, 1, requestHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(RequestsSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range requests {
		due := ""
		if r.DueDate != nil {
			due = r.DueDate.Format(dateLayout)
		}
		row := []interface{}{
			r.ID, r.Title, r.RequesterID, r.Category, r.Priority, r.Status,
			r.CurrentStep, r.TotalSteps, due,
			r.CreatedAt.Format(dateLayout), r.UpdatedAt.Format(dateLayout),
		}
		if err := writeRow(f, RequestsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(RequestsSheet, "B", "B", 32); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	return nil
}

func (e *ExcelExporter) fillSummary(f *excelize.File, headerStyle int, stats *entity.RequestStats, categories []*entity.CategoryStats) error {
	if err := writeRow(f, SummarySheet, 1, summaryHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	row := 2
	for _, c := range categories {
		name := c.Category
		if name == "" {
			name = "(none)"
		}
		if err := writeRow(f, SummarySheet, row, statsRow(name, &c.RequestStats)); err != nil {
			return err
		}
		row++
	}

	if stats == nil {
		stats = &entity.RequestStats{}
	}
	if err := writeRow(f, SummarySheet, row, statsRow("All", stats)); err != nil {
		return err
	}
	return f.SetRowStyle(SummarySheet, row, row, headerStyle)
}

func statsRow(label string, s *entity.RequestStats) []interface{} {
	return []interface{}{label, s.Total, s.Pending, s.InProgress, s.Approved, s.Rejected}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
