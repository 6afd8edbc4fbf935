package backend

import (
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/mirtext/mirtext/pkg/config"
)

// Backend consumes lowered MIR text.
type Backend interface {
	// Generate takes the MIR text of one module and produces the backend's
	// output as a byte buffer.
	Generate(text string, cfg *config.Config) (*bytes.Buffer, error)
}

var backends = map[string]func() Backend{
	"text": func() Backend { return textBackend{} },
	"m2b":  func() Backend { return &toolBackend{tool: "m2b"} },
}

// New returns the backend registered under name.
func New(name string) (Backend, error) {
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend '%s' (available: %s)", name, strings.Join(Names(), ", "))
	}
	return mk(), nil
}

func Names() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type textBackend struct{}

func (textBackend) Generate(text string, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	buf.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		buf.WriteByte('\n')
	}
	return &buf, nil
}

// toolBackend pipes the text through an external MIR tool found in PATH,
// such as m2b, which turns MIR text into its binary form.
type toolBackend struct {
	tool string
}

func (b *toolBackend) Generate(text string, cfg *config.Config) (*bytes.Buffer, error) {
	path, err := exec.LookPath(b.tool)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", b.tool, err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.Command(path)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- %s Failed ---\nGenerated IR:\n%s\n%s\nError: %w", b.tool, text, stderr.String(), err)
	}
	return &out, nil
}
