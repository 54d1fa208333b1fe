package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"nsg-job-manager/internal/coordinator"
	"nsg-job-manager/internal/nsg"
	"nsg-job-manager/internal/version"
)

type connectResult struct {
	Message         string `json:"message"`
	User            string `json:"user"`
	Jobs            int    `json:"jobs"`
	CredentialsPath string `json:"credentials_path,omitempty"`
}

func runConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	username := fs.String("username", "", "NSG user name (defaults to saved credentials)")
	appKey := fs.String("app-key", "", "application key registered with the service")
	baseURL := fs.String("base-url", "", "service base URL (defaults to "+nsg.DefaultBaseURL+")")
	passwordStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	save := fs.Bool("save", true, "save credentials after a successful connection")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.coord.SavedCredentials()
	if err != nil && !errors.Is(err, nsg.ErrNoCredentials) {
		return err
	}
	if v := strings.TrimSpace(*username); v != "" {
		if v != creds.Username {
			creds.Password = ""
		}
		creds.Username = v
	}
	if v := strings.TrimSpace(*appKey); v != "" {
		creds.AppKey = v
	}
	if v := strings.TrimSpace(*baseURL); v != "" {
		creds.BaseURL = v
	}
	if *passwordStdin {
		line, err := readLine()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		creds.Password = line
	} else if env := os.Getenv("NSG_PASSWORD"); env != "" {
		creds.Password = env
	}
	if creds, err = completeCredentials(creds); err != nil {
		return err
	}

	msg, err := a.coord.Connect(context.Background(), creds, *save)
	if err != nil {
		return err
	}
	res := connectResult{
		Message: msg,
		User:    a.coord.DisplayUser(),
		Jobs:    len(a.coord.Jobs().Jobs),
	}
	if *save {
		res.CredentialsPath = a.coord.CredentialsLocation()
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Println(res.Message)
	fmt.Printf("jobs: %d\n", res.Jobs)
	if res.CredentialsPath != "" {
		fmt.Printf("credentials saved: %s\n", res.CredentialsPath)
	}
	return nil
}

func completeCredentials(creds nsg.Credentials) (nsg.Credentials, error) {
	var err error
	if strings.TrimSpace(creds.Username) == "" {
		if creds.Username, err = promptRequired("username"); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = promptRequired("password"); err != nil {
			return creds, err
		}
	}
	if strings.TrimSpace(creds.AppKey) == "" {
		if creds.AppKey, err = promptRequired("app key"); err != nil {
			return creds, err
		}
	}
	return creds, creds.Validate()
}

// connectSaved signs in with the saved credentials for one-shot commands.
func connectSaved(ctx context.Context, a *app) error {
	creds, err := a.coord.SavedCredentials()
	if errors.Is(err, nsg.ErrNoCredentials) {
		return errors.New("no saved credentials; run: nsg-job-manager connect")
	}
	if err != nil {
		return err
	}
	if env := os.Getenv("NSG_PASSWORD"); env != "" {
		creds.Password = env
	}
	if _, err := a.coord.Connect(ctx, creds, false); err != nil {
		return err
	}
	return nil
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	prefsPath := fs.String("prefs", "", "preferences file (defaults to the user config directory)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := coordinator.Doctor(coordinator.DoctorOptions{PrefsPath: *prefsPath})
	if err != nil {
		return err
	}
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Printf("[%s] %s: %s\n", mark, c.Name, c.Message)
		}
	}
	if !res.OK {
		return errors.New("doctor found problems")
	}
	return nil
}

func runVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]string{"version": version.Value})
	}
	fmt.Println(version.Value)
	return nil
}
