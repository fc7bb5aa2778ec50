/*
Package report renders daily attendance reports.

PURPOSE:
  Builds one row per employee and work date from the engine's DayTimeline
  and writes them to an .xlsx workbook. Deviation minutes are copied from
  the detector's AnomalyResults; this package never recomputes them.

SHEETS:
  Attendance: one row per employee (status, punches, hours, anomalies)
  Anomalies:  one row per anomaly (kind, expected, actual, deviation)

SEE ALSO:
  - attendance/timeline.go: DayTimeline read model
*/
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

var ErrReportGenerateFail = errors.New("failed to generate report workbook")

// Timelines is satisfied by *attendance.Engine.
type Timelines interface {
	Timeline(ctx context.Context, employeeID schedule.EmployeeID, day time.Time) (attendance.DayTimeline, error)
}

// Roster lists employees with their display names.
type Roster interface {
	ListEmployeeRecords(ctx context.Context) ([]attendance.Employee, error)
}

// Row is one employee's day.
type Row struct {
	EmployeeID    schedule.EmployeeID
	Name          string
	WorkDate      time.Time
	Shift         string
	Status        attendance.Status
	CheckIn       *time.Time
	CheckOut      *time.Time
	AutoClosed    bool
	ExpectedHours decimal.Decimal
	WorkedHours   decimal.Decimal
	Anomalies     []attendance.AnomalyResult
	// Error is set when the employee's schedule could not be resolved.
	Error string
}

// TotalDeviation sums the detector's deviation minutes.
func (r Row) TotalDeviation() int {
	total := 0
	for _, a := range r.Anomalies {
		if a.DeviationMinutes != nil {
			total += *a.DeviationMinutes
		}
	}
	return total
}

type Builder struct {
	timelines Timelines
	roster    Roster
	logger    *zap.Logger
}

func NewBuilder(timelines Timelines, roster Roster, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{timelines: timelines, roster: roster, logger: logger}
}

// Daily returns one row per employee. Configuration problems become rows
// with Error set so that a single bad record does not hide the rest.
func (b *Builder) Daily(ctx context.Context, day time.Time) ([]Row, error) {
	employees, err := b.roster.ListEmployeeRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}

	rows := make([]Row, 0, len(employees))
	for _, emp := range employees {
		tl, err := b.timelines.Timeline(ctx, emp.ID, day)
		if err != nil {
			if !schedule.IsConfigurationError(err) {
				return nil, fmt.Errorf("timeline for %s: %w", emp.ID, err)
			}
			b.logger.Warn("employee skipped in report",
				zap.String("employee_id", string(emp.ID)),
				zap.Error(err),
			)
			rows = append(rows, Row{EmployeeID: emp.ID, Name: emp.Name, WorkDate: day, Error: err.Error()})
			continue
		}
		rows = append(rows, rowFrom(emp, tl))
	}
	return rows, nil
}

func rowFrom(emp attendance.Employee, tl attendance.DayTimeline) Row {
	row := Row{
		EmployeeID:    emp.ID,
		Name:          emp.Name,
		WorkDate:      tl.WorkDate,
		Status:        tl.Status,
		ExpectedHours: tl.ExpectedHours,
		WorkedHours:   tl.WorkedHours,
		Anomalies:     tl.Anomalies,
	}

	var shiftRef schedule.ShiftID
	for i := range tl.Events {
		ev := tl.Events[i]
		switch ev.Type {
		case attendance.CheckIn:
			row.CheckIn = &tl.Events[i].Timestamp
			shiftRef = ev.ShiftRef
		case attendance.CheckOut:
			row.CheckOut = &tl.Events[i].Timestamp
			row.AutoClosed = ev.Synthetic
		}
	}

	var names []string
	for _, w := range tl.Windows {
		if shiftRef == "" || w.ShiftID == shiftRef {
			names = append(names, fmt.Sprintf("%s %s", w.Name, w.Window))
		}
	}
	row.Shift = strings.Join(names, ", ")
	return row
}

// =============================================================================
// XLSX
// =============================================================================

const (
	attendanceSheet = "Attendance"
	anomalySheet    = "Anomalies"
)

// DailyXLSX renders Daily as a workbook and suggests a file name.
func (b *Builder) DailyXLSX(ctx context.Context, day time.Time) (*bytes.Buffer, string, error) {
	rows, err := b.Daily(ctx, day)
	if err != nil {
		return nil, "", err
	}
	buf, err := Render(rows, day)
	if err != nil {
		b.logger.Error("failed to write workbook", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}
	return buf, fmt.Sprintf("attendance_%s.xlsx", schedule.FormatDate(day)), nil
}

// Render writes rows to a new workbook.
func Render(rows []Row, day time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(attendanceSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	if _, err := f.NewSheet(anomalySheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// Title
	f.SetCellValue(attendanceSheet, "A1", "Attendance "+schedule.FormatDate(day))
	f.MergeCell(attendanceSheet, "A1", "K1")
	f.SetCellStyle(attendanceSheet, "A1", "A1", headerStyle)

	headers := []string{"Employee", "Name", "Shift", "Status", "Check-in", "Check-out",
		"Expected h", "Worked h", "Anomalies", "Deviation min", "Note"}
	writeHeader(f, attendanceSheet, 2, headers, headerStyle)
	f.SetColWidth(attendanceSheet, "A", "B", 16)
	f.SetColWidth(attendanceSheet, "C", "C", 24)
	f.SetColWidth(attendanceSheet, "I", "I", 30)

	anomalyHeaders := []string{"Employee", "Work date", "Kind", "Shift", "Expected", "Actual", "Deviation min"}
	writeHeader(f, anomalySheet, 1, anomalyHeaders, headerStyle)
	f.SetColWidth(anomalySheet, "A", "G", 18)

	row, anomalyRow := 3, 2
	for _, r := range rows {
		expected, _ := r.ExpectedHours.Float64()
		worked, _ := r.WorkedHours.Float64()

		var kinds []string
		for _, a := range r.Anomalies {
			kinds = append(kinds, string(a.Kind))

			f.SetCellValue(anomalySheet, cell("A", anomalyRow), string(r.EmployeeID))
			f.SetCellValue(anomalySheet, cell("B", anomalyRow), schedule.FormatDate(a.WorkDate))
			f.SetCellValue(anomalySheet, cell("C", anomalyRow), string(a.Kind))
			f.SetCellValue(anomalySheet, cell("D", anomalyRow), string(a.ShiftID))
			f.SetCellValue(anomalySheet, cell("E", anomalyRow), clock(a.ExpectedTime))
			f.SetCellValue(anomalySheet, cell("F", anomalyRow), clock(a.ActualTime))
			if a.DeviationMinutes != nil {
				f.SetCellValue(anomalySheet, cell("G", anomalyRow), *a.DeviationMinutes)
			}
			anomalyRow++
		}

		note := r.Error
		if r.AutoClosed {
			note = "auto-closed"
		}

		f.SetCellValue(attendanceSheet, cell("A", row), string(r.EmployeeID))
		f.SetCellValue(attendanceSheet, cell("B", row), r.Name)
		f.SetCellValue(attendanceSheet, cell("C", row), r.Shift)
		f.SetCellValue(attendanceSheet, cell("D", row), string(r.Status))
		f.SetCellValue(attendanceSheet, cell("E", row), clock(r.CheckIn))
		f.SetCellValue(attendanceSheet, cell("F", row), clock(r.CheckOut))
		f.SetCellValue(attendanceSheet, cell("G", row), expected)
		f.SetCellValue(attendanceSheet, cell("H", row), worked)
		f.SetCellValue(attendanceSheet, cell("I", row), strings.Join(kinds, ", "))
		f.SetCellValue(attendanceSheet, cell("J", row), r.TotalDeviation())
		f.SetCellValue(attendanceSheet, cell("K", row), note)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string, style int) {
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, c, h)
		f.SetCellStyle(sheet, c, c, style)
	}
}

// clock formats a punch as "2006-01-02 15:04" so overnight check-outs show
// their own date.
func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
