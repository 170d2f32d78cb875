package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/asynkron/edpatch/internal/pyc"
)

var moduleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Extraction is what the protected module printed once imported.
type Extraction struct {
	// RawPath holds stdout as printed.
	RawPath string
	// Source is true when the output was plain source and needs no decompiling.
	Source bool
	// BytecodePath and Bytecode are set when the output was a marshalled code
	// object.
	BytecodePath string
	Bytecode     []byte
}

// Extractor imports a protected module through the loader with the patched
// extension installed, which makes the loader print the code it decrypted.
type Extractor struct {
	Runner Runner
	Python string
}

// Extract imports the module stored at path and saves what it prints next to
// it as <name>.py.
func (e Extractor) Extract(ctx context.Context, path string) (Extraction, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Extraction{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: %w", err)
	}
	if info.IsDir() {
		return Extraction{}, fmt.Errorf("extract: %s is a directory", abs)
	}

	dir := filepath.Dir(abs)
	stem := Stem(abs)
	if !moduleName.MatchString(stem) {
		return Extraction{}, fmt.Errorf("extract: %q is not an importable module name", stem)
	}

	out, err := e.Runner.Output(ctx, Command{
		Name: e.python(),
		Args: []string{"-c", "import sourcedefender; import " + stem},
		Dir:  dir,
	})
	if err != nil {
		// The loader may exit non-zero after printing; only an empty result is fatal.
		var se *StepError
		if !errors.As(err, &se) || se.ExitCode < 0 || len(strings.TrimSpace(string(out))) == 0 {
			return Extraction{}, withStep(StepExtract, err)
		}
	}

	result := Extraction{RawPath: filepath.Join(dir, stem+".py")}
	if err := os.WriteFile(result.RawPath, out, 0o644); err != nil {
		return Extraction{}, fmt.Errorf("extract: write %s: %w", result.RawPath, err)
	}

	if !pyc.IsBytesLiteral(string(out)) {
		result.Source = true
		return result, nil
	}

	code, err := pyc.DecodeBytesLiteral(string(out))
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: %w", err)
	}
	magicOut, err := e.Runner.Output(ctx, Command{Name: e.python(), Args: []string{"-c", pyc.MagicScript}, Dir: dir})
	if err != nil {
		return Extraction{}, withStep(StepExtract, err)
	}
	magic, err := pyc.ParseMagic(string(magicOut))
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: %w", err)
	}
	result.Bytecode, err = pyc.Assemble(magic, code)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: %w", err)
	}
	result.BytecodePath = filepath.Join(dir, stem+".pyc")
	if err := os.WriteFile(result.BytecodePath, result.Bytecode, 0o644); err != nil {
		return Extraction{}, fmt.Errorf("extract: write %s: %w", result.BytecodePath, err)
	}
	return result, nil
}

func (e Extractor) python() string {
	if e.Python == "" {
		return "python"
	}
	return e.Python
}

// Stem is the file name without its last extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
