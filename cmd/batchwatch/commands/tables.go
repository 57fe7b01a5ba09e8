package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/due"
	"github.com/teranos/batchwatch/pulse"
	"github.com/teranos/batchwatch/report"
	"github.com/teranos/batchwatch/status"
)

func renderTable(w io.Writer, data pterm.TableData) error {
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithWriter(w).
		WithData(data).
		Render()
}

// rowsTable lays out report rows as they appear in the mail
func rowsTable(rows []status.Row) pterm.TableData {
	data := pterm.TableData{{"Job", "Description", "Start", "End", "Run Time", "Status"}}
	for _, row := range rows {
		if row.Placeholder || !row.HasTiming() {
			data = append(data, []string{row.JobName, row.Description, "", "", "", row.Text})
			continue
		}
		end := report.EndInProgress
		if row.End != nil {
			end = report.FormatTimestamp(*row.End)
		}
		text := row.Text
		if row.Stale {
			text += " (stale)"
		}
		data = append(data, []string{
			row.JobName,
			row.Description,
			report.FormatTimestamp(row.Start),
			end,
			status.FormatElapsed(row.Elapsed),
			text,
		})
	}
	return data
}

func printRows(w io.Writer, res *report.Result) error {
	fmt.Fprintf(w, "%s\nSince: %s\n\n", res.Subject, report.FormatTimestamp(res.Window.Start))
	return renderTable(w, rowsTable(res.Rows))
}

func dueTable(jobs []due.Job) pterm.TableData {
	data := pterm.TableData{{"Day", "Time", "Job ID", "Job", "Stream", "Occurrence"}}
	for _, j := range jobs {
		occurrence := ""
		if j.Occurrences > 1 {
			occurrence = fmt.Sprintf("%d/%d", j.Occurrence, j.Occurrences)
		}
		data = append(data, []string{
			j.Day.String(),
			j.Time.String(),
			strconv.FormatInt(j.JobID, 10),
			j.JobName,
			j.Stream,
			occurrence,
		})
	}
	return data
}

func scheduleTable(entries []batch.ScheduleEntry) pterm.TableData {
	data := pterm.TableData{{"Day", "Time", "Job ID", "Job", "Stream", "Run Cycle"}}
	for _, e := range entries {
		data = append(data, []string{
			e.Day.String(),
			e.Time.String(),
			strconv.FormatInt(e.JobID, 10),
			e.JobName,
			e.Stream,
			e.RunCycle,
		})
	}
	return data
}

func executionsTable(executions []*pulse.Execution) pterm.TableData {
	data := pterm.TableData{{"Started", "Trigger", "Status", "Duration", "Verdict", "Rows", "Error"}}
	for _, e := range executions {
		duration, verdict, rows, errMsg := "", "", "", ""
		if e.DurationMs != nil {
			duration = strconv.FormatInt(*e.DurationMs, 10) + "ms"
		}
		if e.Verdict != nil {
			verdict = *e.Verdict
		}
		if e.RowCount != nil {
			rows = strconv.Itoa(*e.RowCount)
			if e.Unavailable != nil && *e.Unavailable > 0 {
				rows += fmt.Sprintf(" (%d unavailable)", *e.Unavailable)
			}
		}
		if e.ErrorMessage != nil {
			errMsg = *e.ErrorMessage
		}
		data = append(data, []string{
			report.FormatTimestamp(e.StartedAt.Local()),
			e.Trigger,
			e.Status,
			duration,
			verdict,
			rows,
			errMsg,
		})
	}
	return data
}
