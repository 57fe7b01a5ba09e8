package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"html/template"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/status"
)

// TimestampLayout is MM/dd/yyyy hh:mm:ss AM/PM.
const TimestampLayout = "01/02/2006 03:04:05 PM"

// EndInProgress is the end cell of a running job.
const EndInProgress = "In Progress"

//go:embed templates/report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

type pageView struct {
	Title string
	Logo  template.URL
	Since string
	Rows  []rowView
}

type rowView struct {
	Description string
	Placeholder bool
	Timed       bool
	Running     bool
	Start       string
	End         string
	Elapsed     string
	Text        string
	Style       template.CSS
}

// Renderer turns a report result into the HTML mail body.
type Renderer struct {
	Title string
	Logo  string // data URI, see LoadLogo
}

// Render writes the HTML body for res.
func (r Renderer) Render(res *Result) ([]byte, error) {
	title := r.Title
	if title == "" {
		title = "ICM Daily Jobs Status Report"
	}
	view := pageView{
		Title: title,
		Logo:  template.URL(r.Logo),
		Since: FormatTimestamp(res.Window.Start),
		Rows:  make([]rowView, 0, len(res.Rows)),
	}
	loc := res.Window.End.Location()
	for _, row := range res.Rows {
		view.Rows = append(view.Rows, viewOf(row, loc))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return nil, errors.Wrap(err, "failed to render report")
	}
	return buf.Bytes(), nil
}

// viewOf formats row with its timestamps shown in loc, the report zone.
func viewOf(row status.Row, loc *time.Location) rowView {
	v := rowView{
		Description: row.Description,
		Placeholder: row.Placeholder,
		Text:        row.Text,
		Style:       template.CSS(row.Decoration.Style()),
	}
	if row.Placeholder || !row.HasTiming() {
		return v
	}
	v.Timed = true
	v.Start = FormatTimestamp(row.Start.In(loc))
	v.Elapsed = status.FormatElapsed(row.Elapsed)
	if row.End == nil {
		v.Running = true
		v.End = EndInProgress
	} else {
		v.End = FormatTimestamp(row.End.In(loc))
	}
	return v
}

// FormatTimestamp renders t as MM/dd/yyyy hh:mm:ss AM/PM.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// LoadLogo reads an image file and returns it as a data URI for the report
// header. The content type is sniffed rather than taken from the extension.
func LoadLogo(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read logo %s", path)
	}
	mtype := mimetype.Detect(data)
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") && !mtype.Is("image/gif") && !mtype.Is("image/svg+xml") {
		return "", errors.WithHint(
			errors.Newf("logo %s is %s, not an image", path, mtype.String()),
			"use a JPEG, PNG, GIF or SVG file")
	}
	return "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
