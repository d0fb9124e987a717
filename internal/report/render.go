package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	emptyListPlaceholder = "(none)"
	noDataPlaceholder    = "(no data)"
)

// RenderText renders the report in the plain-text layout.
func RenderText(d Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Time range: %s - %s\n\n",
		d.WindowStart.Format(timeLayout), d.WindowEnd.Format(timeLayout))
	fmt.Fprintf(&b, "Banned IPs: %d\n", len(d.UniqueBanned))
	fmt.Fprintf(&b, "Unbanned IPs: %d\n", len(d.UniqueUnbanned))
	fmt.Fprintf(&b, "Failed attempts (Found): %d\n\n", d.TotalFailedAttempts)

	writeList(&b, "Banned IP list:", d.UniqueBanned)
	writeList(&b, "Unbanned IP list:", d.UniqueUnbanned)

	b.WriteString("Top offenders by failed attempts:\n")
	if len(d.TopOffenders) == 0 {
		fmt.Fprintf(&b, "  - %s\n", noDataPlaceholder)
	} else {
		for _, o := range d.TopOffenders {
			fmt.Fprintf(&b, "  - %s (%d)\n", o.Address, o.Count)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, header string, items []string) {
	b.WriteString(header)
	b.WriteByte('\n')
	if len(items) == 0 {
		fmt.Fprintf(b, "  - %s\n", emptyListPlaceholder)
	} else {
		for _, item := range items {
			fmt.Fprintf(b, "  - %s\n", item)
		}
	}
	b.WriteByte('\n')
}

// htmlTemplate substitutes report fields without executing anything;
// addresses are opaque tokens from the log and are HTML-escaped.
var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<h1>{{.SubjectPrefix}} Intrusion-prevention report</h1>
<p>Time range: {{.Start}} &ndash; {{.End}}</p>
<table>
<tr><td>Banned IPs</td><td>{{.BanCount}}</td></tr>
<tr><td>Unbanned IPs</td><td>{{.UnbanCount}}</td></tr>
<tr><td>Failed attempts</td><td>{{.FailCount}}</td></tr>
</table>
<h2>Banned IP list</h2>
<p>{{.BannedList}}</p>
<h2>Unbanned IP list</h2>
<p>{{.UnbannedList}}</p>
<h2>Top offenders</h2>
{{if .TopOffenders}}<ul>
{{range .TopOffenders}}<li>{{.Address}} ({{.Count}})</li>
{{end}}</ul>{{else}}<p>{{.NoData}}</p>{{end}}
</body>
</html>
`))

type htmlData struct {
	SubjectPrefix string
	Start         string
	End           string
	BanCount      int
	UnbanCount    int
	FailCount     int
	BannedList    string
	UnbannedList  string
	TopOffenders  []Offender
	NoData        string
}

// RenderHTML renders the report in the HTML layout.
func RenderHTML(d Data, subjectPrefix string) (string, error) {
	var b strings.Builder
	err := htmlTemplate.Execute(&b, htmlData{
		SubjectPrefix: subjectPrefix,
		Start:         d.WindowStart.Format(timeLayout),
		End:           d.WindowEnd.Format(timeLayout),
		BanCount:      len(d.UniqueBanned),
		UnbanCount:    len(d.UniqueUnbanned),
		FailCount:     d.TotalFailedAttempts,
		BannedList:    joinOrPlaceholder(d.UniqueBanned),
		UnbannedList:  joinOrPlaceholder(d.UniqueUnbanned),
		TopOffenders:  d.TopOffenders,
		NoData:        noDataPlaceholder,
	})
	if err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return b.String(), nil
}

func joinOrPlaceholder(items []string) string {
	if len(items) == 0 {
		return emptyListPlaceholder
	}
	return strings.Join(items, "  ")
}

// Subject builds the delivery subject line for a report generated at
// the given instant.
func Subject(prefix string, at time.Time) string {
	return fmt.Sprintf("%s Intrusion report %s", prefix, at.Format(timeLayout))
}
