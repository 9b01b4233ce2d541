package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

const sheet = "Knowledge"

// TaskSource looks up tasks by id.
type TaskSource interface {
	Get(id string) (tasks.Snapshot, error)
}

// Service produces XLSX workbooks from extraction tables.
type Service struct {
	tasks  TaskSource
	logger *slog.Logger
}

func NewService(src TaskSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: src, logger: logger}
}

// ExportTaskXLSX renders the result of a completed task. It fails with common.ErrNotFound
// for unknown tasks and common.ErrInvalidInput for tasks without a result yet.
func (s *Service) ExportTaskXLSX(_ context.Context, taskID string) ([]byte, string, error) {
	snap, err := s.tasks.Get(taskID)
	if err != nil {
		return nil, "", err
	}
	if snap.Status != constants.TaskStatusCompleted || snap.Result == nil {
		return nil, "", common.NewAppError("TASK_NOT_COMPLETED", fmt.Sprintf("task %s is %s", taskID, snap.Status), common.ErrInvalidInput)
	}
	buf, err := s.TableXLSX(table.Table{Columns: constants.Columns, Records: snap.Result.Data})
	if err != nil {
		return nil, "", err
	}
	return buf, XLSXName(snap.Tag), nil
}

// TableXLSX renders t as a single-sheet workbook, one header row plus one row per record.
func (s *Service) TableXLSX(t table.Table) ([]byte, error) {
	start := time.Now()
	f, err := newWorkbook(t)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "rows", t.Len(), "bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// WriteXLSXFile renders t into path.
func (s *Service) WriteXLSXFile(path string, t table.Table) error {
	f, err := newWorkbook(t)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save %s: %w", path, err)
	}
	s.logger.Info("export.xlsx.saved", "path", path, "rows", t.Len())
	return nil
}

func newWorkbook(t table.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range constants.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, rec := range t.Records {
		for c, v := range rec.Fields() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheet, cell, truncate(v, excelize.TotalCellChars)); err != nil {
				return nil, fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 24) // entity, property
	_ = f.SetColWidth(sheet, "C", "C", 60) // value
	_ = f.SetColWidth(sheet, "D", "E", 16) // tags
	_ = f.SetColWidth(sheet, "F", "F", 10) // level
	return f, nil
}
