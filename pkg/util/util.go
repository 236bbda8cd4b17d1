package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xplshn/sstc/pkg/config"
	"github.com/xplshn/sstc/pkg/token"
	"golang.org/x/term"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var (
	sourceFiles []SourceFileRecord
	// Stderr receives every diagnostic. Tests swap it for a buffer.
	Stderr io.Writer = os.Stderr
)

// SetSourceFiles stores the source code for all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// SourceError is a diagnostic anchored at a token of an input file.
type SourceError struct {
	Tok token.Token
	Msg string
}

func (e *SourceError) Error() string {
	filename, line, col := findFileAndLine(e.Tok)
	return fmt.Sprintf("%s:%d:%d: %s", filename, line, col, e.Msg)
}

// Errorf builds a SourceError located at tok.
func Errorf(tok token.Token, format string, args ...interface{}) error {
	return &SourceError{Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// findFileAndLine converts a global token to a file-specific location
func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "<input>", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

func colorEnabled() bool {
	f, ok := Stderr.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func paint(code, s string) string {
	if !colorEnabled() {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	col := tok.Column - 1
	if col < 0 {
		col = 0
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", col), paint("32", caret))
}

// Report prints err. Errors that carry a SourceError anywhere in their cause
// chain are printed with the offending source line.
func Report(err error) {
	if err == nil {
		return
	}
	var serr *SourceError
	if errors.As(err, &serr) {
		filename, line, col := findFileAndLine(serr.Tok)
		fmt.Fprintf(Stderr, "%s:%d:%d: %s %s\n", filename, line, col, paint("31", "error:"), serr.Msg)
		printErrorLine(Stderr, serr.Tok)
		return
	}
	fmt.Fprintf(Stderr, "sstc: %s %v\n", paint("31", "error:"), err)
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...interface{}) {
	Report(Errorf(tok, format, args...))
	os.Exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Stderr, "%s:%d:%d: %s ", filename, line, col, paint("33", "warning:"))
	fmt.Fprintf(Stderr, format, args...)
	fmt.Fprintf(Stderr, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(Stderr, tok)
}
