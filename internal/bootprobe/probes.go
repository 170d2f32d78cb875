package bootprobe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Result captures what the restore workflow needs to know about the host
// before it starts.
type Result struct {
	Commands     []CommandStatus
	CloneExists  bool
	PatchApplied bool
	Install      InstallStatus
	OS           OSResult
}

// CommandStatus records whether a particular command is available on PATH.
type CommandStatus struct {
	Name      string
	Available bool
}

// InstallStatus reports where the interpreter resolves the patched package
// from. Installed is true only when that location is inside the clone
// directory, i.e. the patched tree and not a system-wide install.
type InstallStatus struct {
	Installed bool
	Path      string
	Detail    string
}

// OSResult summarises the host operating system and architecture.
type OSResult struct {
	GOOS         string
	GOARCH       string
	Distribution string
}

// Request names the things Run should look for.
type Request struct {
	CloneDir     string
	TargetFile   string
	BackupSuffix string
	Python       string
	Module       string
	Commands     []string
}

var moduleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Run executes all probes and returns a consolidated result.
func Run(ctx context.Context, c *Context, req Request) Result {
	result := Result{
		Commands:    commandStatuses(c, req.Commands...),
		CloneExists: c.HasDir(req.CloneDir),
		OS:          detectOS(),
	}
	if req.TargetFile != "" {
		suffix := req.BackupSuffix
		if suffix == "" {
			suffix = ".bak"
		}
		result.PatchApplied = c.HasFile(filepath.Join(req.CloneDir, req.TargetFile) + suffix)
	}
	result.Install = DetectInstall(ctx, c, req.Python, req.Module, req.CloneDir)
	return result
}

// DetectInstall asks python where module is imported from and reports
// whether that path lies inside cloneDir.
func DetectInstall(ctx context.Context, c *Context, python, module, cloneDir string) InstallStatus {
	if !moduleName.MatchString(module) {
		return InstallStatus{Detail: fmt.Sprintf("invalid module name %q", module)}
	}
	if python == "" {
		python = "python"
	}
	script := fmt.Sprintf("import os, %s; print(os.path.abspath(%s.__file__))", module, module)
	out, err := c.RunCommandOutput(ctx, python, "-c", script)
	if err != nil {
		return InstallStatus{Detail: fmt.Sprintf("%s not importable: %v", module, err)}
	}
	installed := strings.TrimSpace(out)
	return InstallStatus{
		Installed: within(c.Abs(cloneDir), installed),
		Path:      installed,
	}
}

// within reports whether path is dir itself or lies below it.
func within(dir, path string) bool {
	if path == "" || !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Missing lists the requested commands that are not on PATH.
func (r Result) Missing() []string {
	var missing []string
	for _, cmd := range r.Commands {
		if !cmd.Available {
			missing = append(missing, cmd.Name)
		}
	}
	return missing
}

func detectOS() OSResult {
	return OSResult{
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		Distribution: readOSRelease(),
	}
}

func commandStatuses(c *Context, commands ...string) []CommandStatus {
	statuses := make([]CommandStatus, 0, len(commands))
	for _, cmd := range commands {
		statuses = append(statuses, CommandStatus{
			Name:      cmd,
			Available: c.CommandExists(cmd),
		})
	}
	return statuses
}

func readOSRelease() string {
	for _, path := range []string{"/etc/os-release", "/usr/lib/os-release"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if value, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
				if value = strings.Trim(value, "\""); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

// FormatSummary renders a Result as a short bullet list. The OS line is
// always included.
func FormatSummary(result Result) string {
	lines := []string{FormatOSLine(result.OS)}
	if len(result.Commands) > 0 {
		parts := make([]string, 0, len(result.Commands))
		for _, cmd := range result.Commands {
			mark := "missing"
			if cmd.Available {
				mark = "ok"
			}
			parts = append(parts, fmt.Sprintf("%s (%s)", cmd.Name, mark))
		}
		lines = append(lines, "- Commands: "+strings.Join(parts, ", "))
	}
	lines = append(lines, fmt.Sprintf("- Clone present: %t", result.CloneExists))
	lines = append(lines, fmt.Sprintf("- Patch applied: %t", result.PatchApplied))
	switch {
	case result.Install.Installed:
		lines = append(lines, "- Patched package installed: "+result.Install.Path)
	case result.Install.Path != "":
		lines = append(lines, "- Package resolves elsewhere: "+result.Install.Path)
	default:
		lines = append(lines, "- Patched package installed: false")
	}
	return strings.Join(lines, "\n")
}

// FormatOSLine renders a single line describing the host OS.
func FormatOSLine(osResult OSResult) string {
	if osResult.Distribution != "" {
		return fmt.Sprintf("OS: %s/%s (%s)", osResult.GOOS, osResult.GOARCH, osResult.Distribution)
	}
	return fmt.Sprintf("OS: %s/%s", osResult.GOOS, osResult.GOARCH)
}
