package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	xprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"nsg-job-manager/internal/coordinator"
	"nsg-job-manager/internal/jobstore"
	"nsg-job-manager/internal/model"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
	"nsg-job-manager/internal/updater"
)

type uiMode int

const (
	uiModeLogin uiMode = iota
	uiModeJobs
	uiModeSearch
	uiModeDetails
	uiModeForm
	uiModeUpdate
)

type uiModel struct {
	ctx   context.Context
	coord *coordinator.Coordinator
	theme uiTheme

	mode   uiMode
	width  int
	height int

	form     *uiForm
	search   textinput.Model
	criteria model.ViewCriteria
	rows     []model.JobSummary
	cursor   int

	bar  xprogress.Model
	spin spinner.Model

	connecting    bool
	statusMessage string
}

type coordEventMsg struct{ ev coordinator.Event }

type connectDoneMsg struct {
	message string
	err     error
}

type refreshDoneMsg struct{ err error }

type submitDoneMsg struct {
	jobID string
	err   error
}

type detailsDoneMsg struct{ err error }

type downloadDoneMsg struct {
	path string
	err  error
}

type updateCheckDoneMsg struct {
	info *model.UpdateInfo
	err  error
}

type installDoneMsg struct{ err error }

type settingsSavedMsg struct{ err error }

func runUI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	prefsPath := fs.String("prefs", "", "preferences file (defaults to the user config directory)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("ui requires an interactive terminal (TTY)")
	}

	a, err := openApp(appOptions{PrefsPath: *prefsPath, Interactive: true, Lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newUIModel(ctx, a.coord)
	p := tea.NewProgram(m, tea.WithAltScreen())
	a.backend.BeforeRelaunch = func() {
		_ = p.ReleaseTerminal()
		_ = a.lock.Release()
	}
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("ui requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

func newUIModel(ctx context.Context, coord *coordinator.Coordinator) uiModel {
	p := coord.Preferences()
	theme := newUITheme(p.Theme)

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search job id, tool, stage, dates"
	search.CharLimit = 256

	m := uiModel{
		ctx:      ctx,
		coord:    coord,
		theme:    theme,
		mode:     uiModeLogin,
		search:   search,
		criteria: model.DefaultViewCriteria(),
		bar:      xprogress.New(xprogress.WithGradient(theme.BarFrom, theme.BarTo), xprogress.WithoutPercentage()),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}

	saved, _ := coord.SavedCredentials()
	m.form = newLoginForm(saved, 80)
	if coord.Connected() {
		m.mode = uiModeJobs
		m.form = nil
		m.syncRows()
	} else if saved.Validate() == nil {
		m.connecting = true
		m.form.Saving = true
	}
	return m
}

func (m uiModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.coord), m.spin.Tick}
	if m.connecting && m.form != nil {
		if creds, _, err := m.form.toCredentials(); err == nil {
			cmds = append(cmds, connectCmd(m.ctx, m.coord, creds, false))
		}
	}
	return tea.Batch(cmds...)
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form.resize(m.width)
		m.bar.Width = clampInt(m.width-40, 10, 60)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case coordEventMsg:
		m = m.applyEvent(msg.ev)
		return m, waitForEvent(m.coord)
	case connectDoneMsg:
		m.connecting = false
		if msg.err != nil {
			m.mode = uiModeLogin
			if m.form == nil {
				saved, _ := m.coord.SavedCredentials()
				m.form = newLoginForm(saved, m.width)
			}
			m.form.Saving = false
			m.form.Error = msg.err.Error()
			return m, nil
		}
		m.mode = uiModeJobs
		m.form = nil
		m.statusMessage = msg.message
		m.syncRows()
		return m, nil
	case refreshDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, jobstore.ErrSuperseded) && !errors.Is(msg.err, jobstore.ErrSessionEnded) {
			m.statusMessage = "error: " + msg.err.Error()
		}
		m.syncRows()
		return m, nil
	case submitDoneMsg:
		if msg.err != nil {
			if m.form != nil {
				m.form.Saving = false
				m.form.Error = msg.err.Error()
			}
			return m, nil
		}
		m.mode = uiModeJobs
		m.form = nil
		m.statusMessage = "Job submitted: " + msg.jobID
		m.syncRows()
		return m, nil
	case detailsDoneMsg:
		return m, nil
	case downloadDoneMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
		} else {
			m.statusMessage = "saved " + msg.path
		}
		return m, nil
	case updateCheckDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, updater.ErrBusy) {
			m.statusMessage = "error: " + msg.err.Error()
		}
		return m, nil
	case installDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, updater.ErrBusy) {
			m.statusMessage = "error: " + msg.err.Error()
		}
		return m, nil
	case settingsSavedMsg:
		if msg.err != nil {
			if m.form != nil {
				m.form.Saving = false
				m.form.Error = msg.err.Error()
			}
			return m, nil
		}
		m.mode = uiModeJobs
		m.form = nil
		m.statusMessage = "settings saved"
		m = m.applyTheme()
		m.syncRows()
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case uiModeLogin, uiModeForm:
		return m.updateForm(keyMsg)
	case uiModeSearch:
		return m.updateSearch(keyMsg)
	case uiModeDetails:
		return m.updateDetails(keyMsg)
	case uiModeUpdate:
		return m.updateUpdatePanel(keyMsg)
	default:
		return m.updateJobs(keyMsg)
	}
}

func (m uiModel) applyEvent(ev coordinator.Event) uiModel {
	switch ev.Kind {
	case coordinator.JobsChanged:
		m.syncRows()
	case coordinator.SettingsChanged:
		m = m.applyTheme()
		m.syncRows()
	case coordinator.SessionChanged:
		if !m.coord.Connected() && m.mode != uiModeLogin && !m.connecting {
			saved, _ := m.coord.SavedCredentials()
			m.mode = uiModeLogin
			m.form = newLoginForm(saved, m.width)
		}
	}
	return m
}

func (m uiModel) applyTheme() uiModel {
	m.theme = newUITheme(m.coord.Preferences().Theme)
	width := m.bar.Width
	m.bar = xprogress.New(xprogress.WithGradient(m.theme.BarFrom, m.theme.BarTo), xprogress.WithoutPercentage())
	if width > 0 {
		m.bar.Width = width
	}
	return m
}

// syncRows re-projects the cached jobs, keeping the cursor on the same job
// when it is still visible.
func (m *uiModel) syncRows() {
	selected := ""
	if m.cursor >= 0 && m.cursor < len(m.rows) {
		selected = m.rows[m.cursor].URL
	}
	m.rows = m.coord.View(m.criteria)
	m.cursor = clampInt(m.cursor, 0, max(len(m.rows)-1, 0))
	if selected == "" {
		return
	}
	for i, r := range m.rows {
		if r.URL == selected {
			m.cursor = i
			return
		}
	}
}

func (m uiModel) selectedJob() (model.JobSummary, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return model.JobSummary{}, false
	}
	return m.rows[m.cursor], true
}

func (m uiModel) updateJobs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(m.rows) - 1
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < last {
			m.cursor++
		}
		return m, nil
	case "pgup":
		m.cursor = clampInt(m.cursor-m.visibleRows(), 0, max(last, 0))
		return m, nil
	case "pgdown":
		m.cursor = clampInt(m.cursor+m.visibleRows(), 0, max(last, 0))
		return m, nil
	case "home", "g":
		m.cursor = 0
		return m, nil
	case "end", "G":
		m.cursor = max(last, 0)
		return m, nil
	case "r":
		m.statusMessage = "refreshing..."
		return m, refreshCmd(m.ctx, m.coord)
	case "/":
		m.mode = uiModeSearch
		m.search.SetValue(m.criteria.SearchQuery)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case "f":
		m.criteria.StatusFilter = nextStatusFilter(m.criteria.StatusFilter, m.coord.StageOptions())
		m.syncRows()
		return m, nil
	case "s":
		m.criteria.SortField = nextSortField(m.criteria.SortField)
		m.syncRows()
		return m, nil
	case "o":
		if m.criteria.SortDirection == model.SortAsc {
			m.criteria.SortDirection = model.SortDesc
		} else {
			m.criteria.SortDirection = model.SortAsc
		}
		m.syncRows()
		return m, nil
	case "x":
		m.criteria = model.DefaultViewCriteria()
		m.search.SetValue("")
		m.syncRows()
		m.statusMessage = "filters cleared"
		return m, nil
	case "c":
		if !m.coord.DismissLatestToast(time.Now()) {
			m.statusMessage = ""
		}
		return m, nil
	case "enter":
		job, ok := m.selectedJob()
		if !ok {
			return m, nil
		}
		m.mode = uiModeDetails
		return m, openDetailsCmd(m.ctx, m.coord, job.URL)
	case "d":
		job, ok := m.selectedJob()
		if !ok {
			m.statusMessage = "select a job to download"
			return m, nil
		}
		return m, m.startDownload(job.URL)
	case "n":
		m.mode = uiModeForm
		m.form = newSubmitForm(m.width)
		m.statusMessage = ""
		return m, nil
	case "p":
		m.mode = uiModeForm
		m.form = newSettingsForm(m.coord.Preferences(), m.width)
		m.statusMessage = ""
		return m, nil
	case "u":
		m.mode = uiModeUpdate
		if model.IsUpdateBusy(m.coord.UpdateState().State) {
			return m, nil
		}
		return m, checkUpdateCmd(m.ctx, m.coord)
	case "+", "=":
		return m.zoomDone(m.coord.ZoomIn())
	case "-":
		return m.zoomDone(m.coord.ZoomOut())
	case "0":
		return m.zoomDone(m.coord.ResetZoom())
	case "L":
		m.coord.Disconnect()
		saved, _ := m.coord.SavedCredentials()
		m.mode = uiModeLogin
		m.form = newLoginForm(saved, m.width)
		m.rows = nil
		m.cursor = 0
		return m, nil
	}
	return m, nil
}

func (m uiModel) zoomDone(p prefs.Preferences, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	m.statusMessage = fmt.Sprintf("zoom %.1fx", p.Zoom)
	return m, nil
}

func (m uiModel) startDownload(jobURL string) tea.Cmd {
	if m.coord.DownloadState().Active() {
		m.coord.Notify("A download is already in progress", model.ToastInfo)
		return nil
	}
	return downloadCmd(m.ctx, m.coord, jobURL)
}

func (m uiModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.criteria.SearchQuery = ""
		m.mode = uiModeJobs
		m.syncRows()
		return m, nil
	case "enter", "down", "tab":
		m.search.Blur()
		m.mode = uiModeJobs
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.criteria.SearchQuery = m.search.Value()
	m.syncRows()
	return m, cmd
}

func (m uiModel) updateDetails(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q", "backspace":
		m.coord.CloseDetails()
		m.mode = uiModeJobs
		return m, nil
	case "r":
		if url := m.coord.Details().URL; url != "" {
			return m, openDetailsCmd(m.ctx, m.coord, url)
		}
	case "d":
		if url := m.coord.Details().URL; url != "" {
			return m, m.startDownload(url)
		}
	}
	return m, nil
}

func (m uiModel) updateUpdatePanel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.coord.UpdateState().State
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q":
		m.mode = uiModeJobs
		return m, nil
	case "c":
		if model.IsUpdateBusy(state) {
			return m, nil
		}
		return m, checkUpdateCmd(m.ctx, m.coord)
	case "i", "enter":
		if state != model.UpdateAvailable {
			return m, nil
		}
		return m, installUpdateCmd(m.ctx, m.coord)
	}
	return m, nil
}

func (m uiModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = uiModeJobs
		return m, nil
	}
	if m.form.Saving {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	key := strings.ToLower(msg.String())
	kind := m.form.currentField().Kind
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.form.Kind == uiFormLogin {
			m.form.Error = ""
			return m, nil
		}
		m.mode = uiModeJobs
		m.form = nil
		m.statusMessage = "cancelled"
		return m, nil
	case "up", "shift+tab":
		m.form.move(-1)
		return m, nil
	case "down", "tab":
		m.form.move(1)
		return m, nil
	case " ", "space":
		if kind == uiFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == uiFieldSelect {
			m.form.stepSelectOption(1)
			return m, nil
		}
	case "left":
		if kind == uiFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == uiFieldSelect {
			m.form.stepSelectOption(-1)
			return m, nil
		}
	case "right":
		if kind == uiFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == uiFieldSelect {
			m.form.stepSelectOption(1)
			return m, nil
		}
	case "y":
		if kind == uiFieldBool {
			m.form.setBoolField(true)
			return m, nil
		}
	case "n":
		if kind == uiFieldBool {
			m.form.setBoolField(false)
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		return m.submitForm()
	}

	if kind == uiFieldBool {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m uiModel) submitForm() (tea.Model, tea.Cmd) {
	switch m.form.Kind {
	case uiFormLogin:
		creds, remember, err := m.form.toCredentials()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		m.connecting = true
		return m, connectCmd(m.ctx, m.coord, creds, remember)
	case uiFormSubmit:
		vals, err := m.form.values()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		return m, submitCmd(m.ctx, m.coord, vals["file"], vals["tool"])
	case uiFormSettings:
		changes, err := m.form.toSettingsChanges(m.coord.Preferences())
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		return m, saveSettingsCmd(m.coord, changes)
	}
	return m, nil
}

func nextStatusFilter(current string, stages []string) string {
	options := append([]string{model.StatusFilterAll, model.StatusFilterFailed}, stages...)
	for i, opt := range options {
		if opt == current {
			return options[(i+1)%len(options)]
		}
	}
	return model.StatusFilterAll
}

func nextSortField(current model.SortField) model.SortField {
	for i, f := range model.SortFields {
		if f == current {
			return model.SortFields[(i+1)%len(model.SortFields)]
		}
	}
	return model.SortFields[0]
}

func waitForEvent(c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return coordEventMsg{ev: <-c.Events()}
	}
}

func connectCmd(ctx context.Context, c *coordinator.Coordinator, creds nsg.Credentials, remember bool) tea.Cmd {
	return func() tea.Msg {
		msg, err := c.Connect(ctx, creds, remember)
		return connectDoneMsg{message: msg, err: err}
	}
}

func refreshCmd(ctx context.Context, c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: c.Refresh(ctx)}
	}
}

func submitCmd(ctx context.Context, c *coordinator.Coordinator, file, tool string) tea.Cmd {
	return func() tea.Msg {
		id, err := c.Submit(ctx, file, tool)
		return submitDoneMsg{jobID: id, err: err}
	}
}

func openDetailsCmd(ctx context.Context, c *coordinator.Coordinator, jobURL string) tea.Cmd {
	return func() tea.Msg {
		_, err := c.OpenDetails(ctx, jobURL)
		return detailsDoneMsg{err: err}
	}
}

func downloadCmd(ctx context.Context, c *coordinator.Coordinator, jobURL string) tea.Cmd {
	return func() tea.Msg {
		path, err := c.Download(ctx, jobURL)
		return downloadDoneMsg{path: path, err: err}
	}
}

func checkUpdateCmd(ctx context.Context, c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		info, err := c.CheckForUpdate(ctx)
		return updateCheckDoneMsg{info: info, err: err}
	}
}

func installUpdateCmd(ctx context.Context, c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		return installDoneMsg{err: c.InstallUpdate(ctx)}
	}
}

func saveSettingsCmd(c *coordinator.Coordinator, changes settingsChanges) tea.Cmd {
	return func() tea.Msg {
		return settingsSavedMsg{err: applySettings(c, changes)}
	}
}
