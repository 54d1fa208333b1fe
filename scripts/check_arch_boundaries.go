package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const modulePrefix = "nsg-job-manager/internal/"

// allowed lists, per package, which internal packages it may import. The
// binaries reach everything through cli; the UI reaches the domain through
// the coordinator and leaf packages; domain packages never import upward.
var allowed = map[string][]string{
	"cmd":         {"cli"},
	"cli":         {"coordinator", "filestore", "jobstore", "jobview", "model", "nsg", "prefs", "progress", "updater", "version"},
	"coordinator": {"autorefresh", "filestore", "jobstore", "jobview", "model", "notify", "nsg", "prefs", "progress", "updater"},
	"nsg":         {"filestore", "model", "progress"},
	"updater":     {"model", "progress"},
	"jobstore":    {"model"},
	"jobview":     {"model"},
	"notify":      {"model"},
	"progress":    {"model"},
	"prefs":       {"filestore"},
	"autorefresh": {},
	"filestore":   {},
	"model":       {},
	"version":     {},
}

func main() {
	var violations []string
	for _, root := range []string{"cmd", "internal"} {
		found, err := checkTree(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "boundary walk of %s failed: %v\n", root, err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("architecture boundary check: OK")
}

func checkTree(root string) ([]string, error) {
	var violations []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		allowList, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: unknown source package %q", path, srcPkg))
			return nil
		}

		file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range file.Imports {
			tgtPkg, ok := targetPackage(strings.Trim(imp.Path.Value, `"`))
			if !ok || tgtPkg == srcPkg {
				continue
			}
			if !slices.Contains(allowList, tgtPkg) {
				violations = append(violations, fmt.Sprintf("%s: %s -> %s is forbidden", path, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	return violations, err
}

// sourcePackage maps internal/<pkg>/... to <pkg> and anything under cmd/ to
// "cmd".
func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "cmd":
		return "cmd"
	case len(parts) >= 2 && parts[0] == "internal":
		return parts[1]
	}
	return ""
}

func targetPackage(importPath string) (string, bool) {
	rest, ok := strings.CutPrefix(importPath, modulePrefix)
	if !ok || rest == "" {
		return "", false
	}
	pkg, _, _ := strings.Cut(rest, "/")
	return pkg, true
}
