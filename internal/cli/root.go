package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		if stdinIsTTY() {
			return runUI(nil)
		}
		printRootUsage()
		return nil
	}

	var err error
	switch args[0] {
	case "ui":
		err = runUI(args[1:])
	case "connect":
		err = runConnect(args[1:])
	case "jobs":
		err = runJobs(args[1:])
	case "submit":
		err = runSubmit(args[1:])
	case "download":
		err = runDownload(args[1:])
	case "settings":
		err = runSettings(args[1:])
	case "self-update":
		err = runSelfUpdate(args[1:])
	case "doctor":
		err = runDoctor(args[1:])
	case "version":
		err = runVersion(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil {
		return err
	}

	maybePrintUpdateHint(args)
	return nil
}

func printRootUsage() {
	fmt.Println("nsg-job-manager: desktop client for the Neuroscience Gateway job service")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  nsg-job-manager connect --username <user> --app-key <key>")
	fmt.Println("  nsg-job-manager            (interactive UI)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  ui           interactive job manager (default on a terminal)")
	fmt.Println("  connect      test and save credentials")
	fmt.Println("  jobs list    list jobs with search, status filter and sort")
	fmt.Println("  jobs status  show one job by URL")
	fmt.Println("  submit       submit an input archive for a tool")
	fmt.Println("  download     download a job's results as a zip archive")
	fmt.Println("  settings     show/update preferences")
	fmt.Println("  self-update  check for or install a new release")
	fmt.Println("  doctor       check local configuration")
	fmt.Println("  version      print the client version")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Credentials: ~/.nsg/credentials.yaml (override with NSG_CREDENTIALS)")
	fmt.Println("  - SHOWCASE_MODE=1 anonymizes user names and job identifiers")
}
