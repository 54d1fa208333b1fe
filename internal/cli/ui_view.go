package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/progress"
	"nsg-job-manager/internal/version"
)

const jobsChromeRows = 12

func (m uiModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	switch m.mode {
	case uiModeLogin, uiModeForm:
		return m.viewForm()
	case uiModeDetails:
		return m.viewDetails()
	case uiModeUpdate:
		return m.viewUpdate()
	default:
		return m.viewJobs()
	}
}

// visibleRows shrinks as zoom grows, like larger text in a fixed window.
func (m uiModel) visibleRows() int {
	height := m.height
	if height <= 0 {
		height = 30
	}
	base := clampInt(height-jobsChromeRows, 3, 500)
	zoom := m.coord.Preferences().Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return clampInt(int(float64(base)/zoom), 1, 500)
}

func (m uiModel) renderHeader(subtitle string) string {
	title := m.theme.Title.Render("nsg-job-manager")
	if user := m.coord.DisplayUser(); user != "" {
		title += m.theme.Muted.Render("  signed in as " + user)
	}
	if m.busy() {
		title += "  " + m.spin.View()
	}
	return title + "\n" + m.theme.Muted.Render(wrapOrTrim(subtitle, m.width))
}

func (m uiModel) busy() bool {
	return m.connecting || m.coord.Jobs().Loading || model.IsUpdateBusy(m.coord.UpdateState().State)
}

type jobColumn struct {
	title string
	width int
	value func(model.JobSummary) string
}

func (m uiModel) jobColumns(width int) []jobColumn {
	cols := []jobColumn{
		{title: "Job ID", width: 22, value: func(j model.JobSummary) string { return j.JobID }},
		{title: "Tool", width: 18, value: func(j model.JobSummary) string { return orDash(model.StringValue(j.Tool)) }},
		{title: "Stage", width: 14, value: func(j model.JobSummary) string { return orDash(model.StringValue(j.JobStage)) }},
		{title: "Submitted", width: 17, value: func(j model.JobSummary) string { return displayTime(j.DateSubmitted) }},
		{title: "Completed", width: 17, value: func(j model.JobSummary) string { return displayTime(j.DateCompleted) }},
	}
	used := 2
	for i, c := range cols {
		if used+c.width+1 > width && i >= 3 {
			return cols[:i]
		}
		used += c.width + 1
	}
	return cols
}

func (m uiModel) viewJobs() string {
	header := m.renderHeader("up/down: move | enter: details | /: search | f: filter | s: sort | o: order | x: clear | c: dismiss | r: refresh | d: download | n: submit | p: settings | u: update | L: sign out | q: quit")

	snap := m.coord.Jobs()
	criteria := []string{
		"filter: " + m.criteria.StatusFilter,
		fmt.Sprintf("sort: %s %s", m.criteria.SortField, m.criteria.SortDirection),
	}
	if m.mode == uiModeSearch || strings.TrimSpace(m.criteria.SearchQuery) != "" {
		criteria = append(criteria, "search: "+m.criteria.SearchQuery)
	}
	criteria = append(criteria, fmt.Sprintf("%d of %d jobs", len(m.rows), len(snap.Jobs)))
	criteriaLine := m.theme.Info.Render(wrapOrTrim(strings.Join(criteria, " | "), m.width))

	parts := []string{header, criteriaLine}
	if m.mode == uiModeSearch {
		parts = append(parts, m.search.View())
	}
	parts = append(parts, m.renderJobTable(max(m.width, 40)))
	if dl := m.renderDownload(); dl != "" {
		parts = append(parts, dl)
	}
	parts = append(parts, m.renderStatusLine(m.width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m uiModel) renderJobTable(width int) string {
	inner := max(width-4, 20)
	cols := m.jobColumns(inner)

	head := make([]string, 0, len(cols))
	for _, c := range cols {
		head = append(head, padRunes(c.title, c.width))
	}
	lines := []string{"  " + m.theme.Header.Render(strings.Join(head, " "))}

	snap := m.coord.Jobs()
	if len(m.rows) == 0 {
		switch {
		case snap.Loading && len(snap.Jobs) == 0:
			lines = append(lines, m.theme.Muted.Render("Loading jobs..."))
		case len(snap.Jobs) == 0:
			lines = append(lines, m.theme.Muted.Render("No jobs yet. Press n to submit one."))
		default:
			lines = append(lines, m.theme.Muted.Render("No jobs match the current search and filter. Press x to clear."))
		}
		return m.theme.Panel.Width(width).Render(strings.Join(lines, "\n"))
	}

	maxRows := m.visibleRows()
	start, end := listWindow(len(m.rows), m.cursor, maxRows)
	if start > 0 {
		lines = append(lines, m.theme.Muted.Render("  ..."))
	}
	for i := start; i < end; i++ {
		job := m.rows[i]
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			cells = append(cells, padRunes(c.value(job), c.width))
		}
		mark := "  "
		if job.Failed {
			mark = "! "
		}
		line := truncateRunes(mark+strings.Join(cells, " "), inner)
		switch {
		case i == m.cursor:
			line = m.theme.Sel.Width(inner).Render(line)
		case job.Failed:
			line = m.theme.Failed.Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(m.rows) {
		lines = append(lines, m.theme.Muted.Render("  ..."))
	}
	return m.theme.Panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (m uiModel) renderDownload() string {
	s := m.coord.DownloadState()
	if !s.Active() {
		return ""
	}
	name := defaultIfEmpty(s.Filename, "preparing")
	pct, ok := s.Percent()
	if !ok {
		return fmt.Sprintf("%s %s  %s", m.spin.View(), truncateRunes(name, 30), progress.FormatBytesIEC(s.Downloaded))
	}
	line := fmt.Sprintf("%s  %s %5.1f%%  %s/%s", truncateRunes(name, 30), m.bar.ViewAs(pct/100), pct,
		progress.FormatBytesIEC(s.Downloaded), progress.FormatBytesIEC(s.Total))
	if eta := progress.EstimateETA(s.Total, s.Downloaded, s.BytesPerSecond); eta != "" {
		line += "  eta " + eta
	}
	return line
}

func (m uiModel) renderStatusLine(width int) string {
	if toast, ok := m.coord.LatestToast(time.Now()); ok {
		style := m.theme.Info
		switch toast.Kind {
		case model.ToastSuccess:
			style = m.theme.OK
		case model.ToastError:
			style = m.theme.Error
		}
		return style.Width(width).Render(truncateRunes(toast.Message, max(width-2, 10)))
	}

	msg := strings.TrimSpace(m.statusMessage)
	snap := m.coord.Jobs()
	if msg == "" {
		switch {
		case snap.Stale && snap.Err != "":
			msg = "error: showing cached jobs; " + snap.Err
		case !snap.LastUpdated.IsZero():
			msg = "updated " + snap.LastUpdated.Local().Format("15:04:05")
			if p := m.coord.Preferences(); p.AutoRefresh {
				msg += fmt.Sprintf(" | auto-refresh every %ds", p.RefreshIntervalSeconds)
			}
		}
	}
	style := m.theme.Muted
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = m.theme.Error
	}
	return style.Width(width).Render(truncateRunes(msg, max(width-2, 10)))
}

func (m uiModel) viewDetails() string {
	header := m.renderHeader("esc: back | d: download results | r: reload")
	d := m.coord.Details()

	lines := []string{"Job Details", ""}
	switch {
	case d.Loading && d.Details == nil:
		lines = append(lines, m.spin.View()+" loading...")
	case d.Err != "":
		lines = append(lines, m.theme.Error.Render("error: "+d.Err))
	case d.Details != nil:
		det := d.Details
		lines = append(lines,
			kv("job id", det.JobID),
			kv("stage", defaultIfEmpty(det.JobStage, "-")),
			kv("failed", yesNo(det.Failed)),
			kv("submitted", displayTime(det.DateSubmitted)),
			kv("url", det.SelfURI),
			kv("results", orDash(model.StringValue(det.ResultsURI))),
		)
		for _, row := range m.rows {
			if row.URL == d.URL {
				lines = append(lines,
					kv("tool", orDash(model.StringValue(row.Tool))),
					kv("completed", displayTime(row.DateCompleted)),
				)
				break
			}
		}
		if d.Loading {
			lines = append(lines, "", m.spin.View()+" reloading...")
		}
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], max(m.width-6, 12))
	}
	parts := []string{header, m.theme.Panel.Width(max(m.width, 40)).Render(strings.Join(lines, "\n"))}
	if dl := m.renderDownload(); dl != "" {
		parts = append(parts, dl)
	}
	parts = append(parts, m.renderStatusLine(m.width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m uiModel) viewUpdate() string {
	header := m.renderHeader("c: check again | i/enter: install | esc: back")
	st := m.coord.UpdateState()

	lines := []string{"Application Update", "", kv("current", version.Value), kv("state", string(st.State))}
	switch st.State {
	case model.UpdateChecking:
		lines = append(lines, "", m.spin.View()+" checking for updates...")
	case model.UpdateNoUpdate:
		lines = append(lines, "", m.theme.OK.Render("You are on the latest version."))
	case model.UpdateRelaunching:
		lines = append(lines, "", "Restarting into the new version...")
	}
	if st.Info != nil {
		lines = append(lines, "", kv("available", st.Info.Version))
		if st.Info.Date != "" {
			lines = append(lines, kv("published", st.Info.Date))
		}
		if body := strings.TrimSpace(st.Info.Body); body != "" {
			notes := strings.Split(body, "\n")
			if len(notes) > 8 {
				notes = append(notes[:8], "...")
			}
			lines = append(lines, "")
			lines = append(lines, notes...)
		}
	}
	if st.State == model.UpdateInstalling {
		if pct, ok := st.Percent(); ok {
			lines = append(lines, "", fmt.Sprintf("%s %5.1f%%", m.bar.ViewAs(pct/100), pct))
		} else {
			lines = append(lines, "", m.spin.View()+" downloading "+progress.FormatBytesIEC(st.Done))
		}
	}
	if st.Err != "" {
		lines = append(lines, "", m.theme.Error.Render("error: "+st.Err))
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], max(m.width-6, 12))
	}
	panel := m.theme.Panel.Width(max(m.width, 40)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, panel, m.renderStatusLine(m.width))
}

func (m uiModel) viewForm() string {
	if m.form == nil {
		return ""
	}
	header := m.theme.Title.Render(m.form.Title)
	hints := m.theme.Muted.Render("tab/shift+tab or up/down: move | left/right/space: choose | y/n: set yes/no | enter: next/save | ctrl+s: save | esc: cancel")
	if m.form.Kind == uiFormLogin {
		hints = m.theme.Muted.Render("tab/shift+tab or up/down: move | enter: next/sign in | ctrl+s: sign in | ctrl+c: quit")
	}

	lines := make([]string, 0, len(m.form.Fields)+6)
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		switch f.Kind {
		case uiFieldBool:
			v, _ := parseBool(display)
			display = yesNo(v)
		case uiFieldSecret:
			display = strings.Repeat("*", len([]rune(f.Value)))
		}
		if display == "" {
			display = m.theme.Muted.Render("(empty)")
		}
		if f.Kind == uiFieldSelect {
			display = "[" + display + "]"
		}
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), max(m.width-6, 20)))
	}

	curr := m.form.currentField()
	inputLabel := fmt.Sprintf("\n%s\n", curr.Label)
	inputHelp := ""
	if strings.TrimSpace(curr.Help) != "" {
		inputHelp = m.theme.Muted.Render(curr.Help) + "\n"
	}
	status := ""
	if m.form.Saving {
		label := "Saving..."
		if m.form.Kind == uiFormLogin {
			label = "Connecting..."
		}
		status = "\n" + m.spin.View() + " " + m.theme.Muted.Render(label)
	}
	if strings.TrimSpace(m.form.Error) != "" {
		status = "\n" + m.theme.Error.Render(m.form.Error)
	}

	panel := m.theme.Panel.Width(max(m.width, 40)).Render(strings.Join(lines, "\n") + inputLabel + inputHelp + m.form.Input.View() + status)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel, m.renderStatusLine(m.width))
}
