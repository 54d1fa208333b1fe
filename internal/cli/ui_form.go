package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/prefs"
)

type uiFormKind int

const (
	uiFormLogin uiFormKind = iota
	uiFormSubmit
	uiFormSettings
)

type uiFieldKind int

const (
	uiFieldString uiFieldKind = iota
	uiFieldSecret
	uiFieldInt
	uiFieldBool
	uiFieldSelect
)

type uiFormField struct {
	Key      string
	Label    string
	Help     string
	Kind     uiFieldKind
	Value    string
	Options  []string
	Required bool
}

type uiForm struct {
	Kind   uiFormKind
	Title  string
	Fields []uiFormField
	Index  int
	Input  textinput.Model
	Error  string
	Saving bool
}

// submitTools lists common NSG tool identifiers; any other value can be
// typed into the tool field.
var submitTools = []string{
	"NEURON_EXPANSE",
	"PY_EXPANSE",
	"BLUEPYOPT_EXPANSE",
	"NEST_EXPANSE",
	"BRIAN2_EXPANSE",
	"MATLAB_EXPANSE",
}

func newLoginForm(saved nsg.Credentials, width int) *uiForm {
	f := &uiForm{
		Kind:  uiFormLogin,
		Title: "Sign in to NSG",
		Fields: []uiFormField{
			{Key: "username", Label: "Username", Help: "Your NSG portal user name", Kind: uiFieldString, Required: true, Value: saved.Username},
			{Key: "password", Label: "Password", Kind: uiFieldSecret, Required: true, Value: saved.Password},
			{Key: "app_key", Label: "Application Key", Help: "Key of the application registered for REST access", Kind: uiFieldString, Required: true, Value: saved.AppKey},
			{Key: "base_url", Label: "Service URL", Help: "Leave empty for " + nsg.DefaultBaseURL, Kind: uiFieldString, Value: saved.BaseURL},
			{Key: "remember", Label: "Remember", Help: "Save credentials to the credentials file (owner-only permissions)", Kind: uiFieldBool, Value: "y"},
		},
	}
	f.initInput(width)
	return f
}

func newSubmitForm(width int) *uiForm {
	f := &uiForm{
		Kind:  uiFormSubmit,
		Title: "Submit Job",
		Fields: []uiFormField{
			{Key: "file", Label: "Input File", Help: "Path to the zipped model directory", Kind: uiFieldString, Required: true},
			{Key: "tool", Label: "Tool", Help: "Tool identifier; type to use one not listed", Kind: uiFieldSelect, Required: true, Value: submitTools[0], Options: submitTools},
		},
	}
	f.initInput(width)
	return f
}

func newSettingsForm(p prefs.Preferences, width int) *uiForm {
	f := &uiForm{
		Kind:  uiFormSettings,
		Title: "Settings",
		Fields: []uiFormField{
			{Key: "theme", Label: "Theme", Help: "system follows the terminal background", Kind: uiFieldSelect, Value: string(p.Theme), Options: []string{string(prefs.ThemeSystem), string(prefs.ThemeLight), string(prefs.ThemeDark)}},
			{Key: "auto_refresh", Label: "Auto Refresh", Help: "Refresh the job list periodically while signed in", Kind: uiFieldBool, Value: boolToYN(p.AutoRefresh)},
			{Key: "interval", Label: "Refresh Interval (s)", Help: fmt.Sprintf("Minimum %d seconds", prefs.MinRefreshIntervalSeconds), Kind: uiFieldInt, Value: strconv.Itoa(p.RefreshIntervalSeconds)},
			{Key: "download_dir", Label: "Download Directory", Help: "Existing directory for result archives", Kind: uiFieldString, Value: p.ResolvedDownloadDir()},
			{Key: "language", Label: "Sort Language", Help: "BCP 47 tag used to order text columns", Kind: uiFieldString, Value: p.CollateLanguage},
		},
	}
	f.initInput(width)
	return f
}

func (f *uiForm) initInput(width int) {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
}

func (f *uiForm) resize(width int) {
	if f == nil {
		return
	}
	f.Input.Width = clampInt(width-8, 20, 120)
}

func (f *uiForm) currentField() uiFormField {
	if len(f.Fields) == 0 {
		return uiFormField{}
	}
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *uiForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	v := f.Input.Value()
	if f.Fields[f.Index].Kind != uiFieldSecret {
		v = strings.TrimSpace(v)
	}
	f.Fields[f.Index].Value = v
}

func (f *uiForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.EchoMode = textinput.EchoNormal
	if f.Fields[f.Index].Kind == uiFieldSecret {
		f.Input.EchoMode = textinput.EchoPassword
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *uiForm) move(delta int) {
	f.commitInput()
	next := f.Index + delta
	if next >= 0 && next < len(f.Fields) {
		f.Index = next
	}
	f.loadFieldIntoInput()
}

func (f *uiForm) setBoolField(v bool) {
	if f == nil || len(f.Fields) == 0 || f.Fields[f.Index].Kind != uiFieldBool {
		return
	}
	f.Fields[f.Index].Value = boolToYN(v)
	f.loadFieldIntoInput()
}

func (f *uiForm) toggleBoolField() {
	if f == nil || len(f.Fields) == 0 || f.Fields[f.Index].Kind != uiFieldBool {
		return
	}
	v, _ := parseBool(f.Fields[f.Index].Value)
	f.setBoolField(!v)
}

func (f *uiForm) stepSelectOption(delta int) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != uiFieldSelect || len(curr.Options) == 0 {
		return
	}
	pos := -1
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, strings.TrimSpace(curr.Value)) {
			pos = i
			break
		}
	}
	if pos < 0 {
		pos = 0
	} else {
		pos = (pos + delta + len(curr.Options)) % len(curr.Options)
	}
	f.Fields[f.Index].Value = curr.Options[pos]
	f.loadFieldIntoInput()
}

// values validates every field and returns them by key.
func (f *uiForm) values() (map[string]string, error) {
	if f == nil {
		return nil, errors.New("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := field.Value
		if field.Kind != uiFieldSecret {
			v = strings.TrimSpace(v)
		}
		if field.Required && v == "" {
			return nil, fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		switch field.Kind {
		case uiFieldInt:
			if v == "" {
				v = "0"
			}
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				return nil, fmt.Errorf("%s must be an integer >= 0", strings.ToLower(field.Label))
			}
		case uiFieldBool:
			if _, ok := parseBool(v); !ok {
				return nil, fmt.Errorf("%s must be y or n", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}
	return vals, nil
}

func (f *uiForm) toCredentials() (nsg.Credentials, bool, error) {
	vals, err := f.values()
	if err != nil {
		return nsg.Credentials{}, false, err
	}
	remember, _ := parseBool(vals["remember"])
	creds := nsg.Credentials{
		Username: vals["username"],
		Password: vals["password"],
		AppKey:   vals["app_key"],
		BaseURL:  vals["base_url"],
	}
	return creds, remember, creds.Validate()
}

func (f *uiForm) toSettingsChanges(current prefs.Preferences) (settingsChanges, error) {
	vals, err := f.values()
	if err != nil {
		return settingsChanges{}, err
	}
	autoRefresh, _ := parseBool(vals["auto_refresh"])
	interval, _ := strconv.Atoi(vals["interval"])
	ch := settingsChanges{
		Theme:       vals["theme"],
		AutoRefresh: map[bool]string{true: "on", false: "off"}[autoRefresh],
		Interval:    interval,
	}
	if dir := vals["download_dir"]; dir != current.ResolvedDownloadDir() {
		ch.DownloadDir = dir
	}
	if lang := vals["language"]; lang != current.CollateLanguage {
		ch.Language = lang
	}
	return ch, nil
}
