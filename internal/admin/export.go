package admin

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"resumedesk/internal/database"
	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
)

const (
	exportSheet     = "Resumes"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var moderationHeaders = []string{"Blocked", "Deleted", "Deleted at", "Deleted by", "Admin notified"}

// ExportHeader 返回导出表头：用户标识、字段表展示名（按字段表顺序）、运营标记。
func ExportHeader(r *fields.Registry) []string {
	header := []string{"User ID"}
	for _, f := range r.Fields() {
		header = append(header, f.Label)
	}
	return append(header, moderationHeaders...)
}

// ExportRow 渲染一条记录对应的一行。
func ExportRow(r *fields.Registry, rec *database.Resume) []string {
	row := []string{strconv.FormatInt(rec.UserID, 10)}
	for _, key := range r.Keys() {
		row = append(row, rec.Intake.Text(key))
	}
	deletedAt := ""
	if rec.DeletedAt != nil {
		deletedAt = rec.DeletedAt.Format(resume.DateLayout)
	}
	deletedBy := ""
	if rec.DeletedBy != nil {
		deletedBy = strconv.FormatInt(*rec.DeletedBy, 10)
	}
	return append(row,
		yesNo(rec.IsBlocked),
		yesNo(rec.IsDeleted),
		deletedAt,
		deletedBy,
		yesNo(rec.IsAdminNotified),
	)
}

// BuildWorkbook 生成单表 xlsx，一条记录一行。
func BuildWorkbook(r *fields.Registry, records []database.Resume) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName(book.GetSheetName(0), exportSheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := book.NewStreamWriter(exportSheet)
	if err != nil {
		book.Close()
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	if err := writeRow(sw, 1, ExportHeader(r)); err != nil {
		book.Close()
		return nil, err
	}
	for i := range records {
		if err := writeRow(sw, i+2, ExportRow(r, &records[i])); err != nil {
			book.Close()
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		book.Close()
		return nil, fmt.Errorf("flush sheet: %w", err)
	}
	return book, nil
}

func writeRow(sw *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return fields.AnswerYes
	}
	return fields.AnswerNo
}
