// Package export renders reports as spreadsheet-friendly CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/reporting"
)

// BOM is written first so spreadsheet tools detect UTF-8.
const BOM = "\uFEFF"

const dash = "-"

var (
	summaryHeader  = []string{"الاسم الكامل", "الفئة", "الرقم الوطني", "الحالة", "المكتب"}
	detailedHeader = []string{"نوع السجل", "الاسم الكامل", "الرقم الوطني", "صلة القرابة", "يتبع للشهيد", "الحالة", "المنحة"}
)

// Write renders the rows of report matching view to w.
func Write(w io.Writer, view reporting.View, report reporting.Report) error {
	if view == reporting.ViewDetailed {
		return WriteDetailedCSV(w, report.Detail)
	}
	return WriteSummaryCSV(w, report.Rows)
}

// Serialize renders the rows of report matching view.
func Serialize(view reporting.View, report reporting.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, view, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSummaryCSV writes the five-column summary table.
func WriteSummaryCSV(w io.Writer, rows []reporting.SummaryRow) error {
	writer, err := start(w, summaryHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.FullName,
			records.CategoryLabel(row.Kind),
			row.NationalID,
			row.Status.Label(),
			row.Office,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDetailedCSV writes case rows each followed by their dependents.
func WriteDetailedCSV(w io.Writer, rows []reporting.DetailRow) error {
	writer, err := start(w, detailedHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			records.CategoryLabel(row.Kind),
			row.FullName,
			row.NationalID,
			orDash(row.Relationship),
			orDash(row.CaseName),
			row.Status.Label(),
			row.Grant.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FileName is the download name for an export made on behalf of office at t.
func FileName(office string, t time.Time) string {
	office = strings.TrimSpace(office)
	if office == "" {
		office = "جميع_المكاتب"
	}
	office = strings.NewReplacer("/", "_", "\\", "_", "\"", "", "\n", " ").Replace(office)
	return "تقرير_" + office + "_" + t.Format(records.DateLayout) + ".csv"
}

func start(w io.Writer, header []string) (*csv.Writer, error) {
	if _, err := io.WriteString(w, BOM); err != nil {
		return nil, err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	return writer, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return dash
	}
	return s
}
