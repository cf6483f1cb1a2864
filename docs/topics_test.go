package docs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Fenced code blocks with these info strings are executed by TestCodeBlocks.
const (
	bashSetup    = "bash setup"    // starts a scenario in a fresh directory
	bashRun      = "bash run"      // its output is checked by the next console check
	bashCheck    = "bash check"    // must succeed
	consoleCheck = "console check" // expected output of the last bash run
)

func parse(t *testing.T, file string) ([]byte, ast.Node) {
	t.Helper()
	src, err := os.ReadFile(file)
	require.NoError(t, err)
	return src, goldmark.DefaultParser().Parse(text.NewReader(src))
}

func lines(src []byte, n ast.Node) string {
	var b strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// TestReadme checks that readme.md lists exactly the embedded topics.
func TestReadme(t *testing.T) {
	src, root := parse(t, "readme.md")
	var listed []string
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if item, ok := n.(*ast.ListItem); ok && entering && item.FirstChild() != nil {
			if name, _, ok := strings.Cut(lines(src, item.FirstChild()), ":"); ok {
				listed = append(listed, strings.TrimSpace(name))
			}
		}
		return ast.WalkContinue, nil
	})

	topics, err := List()
	require.NoError(t, err)
	assert.ElementsMatch(t, topics, listed)
	for _, name := range listed {
		_, err := Topic(name)
		assert.NoError(t, err, name)
	}
}

func TestTopics(t *testing.T) {
	all, err := Topics("*")
	require.NoError(t, err)
	topics, err := List()
	require.NoError(t, err)
	for _, name := range topics {
		content, err := Topic(name)
		require.NoError(t, err)
		assert.Contains(t, all, content)
	}

	_, err = Topics("readme", "nope")
	assert.ErrorContains(t, err, `"nope"`)
}

type block struct {
	kind    string
	content string
	line    int
}

func codeBlocks(t *testing.T, file string) []block {
	t.Helper()
	src, root := parse(t, file)
	var blocks []block
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		code, ok := n.(*ast.FencedCodeBlock)
		if !ok || !entering || code.Info == nil {
			return ast.WalkContinue, nil
		}
		switch kind := string(code.Info.Segment.Value(src)); kind {
		case bashSetup, bashRun, bashCheck, consoleCheck:
			blocks = append(blocks, block{
				kind:    kind,
				content: lines(src, code),
				line:    bytes.Count(src[:code.Info.Segment.Start], []byte("\n")) + 1,
			})
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

// TestCodeBlocks runs the scenarios written in the documentation with a
// freshly built stmt.
func TestCodeBlocks(t *testing.T) {
	if testing.Short() {
		t.Skip("builds stmt")
	}
	files, err := filepath.Glob("*.md")
	require.NoError(t, err)
	files = append(files, filepath.Join("..", "README.md"))

	bin := t.TempDir()
	build := exec.Command("go", "build", "-o", filepath.Join(bin, "stmt"), "../stmt/")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building stmt: %s", out)
	env := append(os.Environ(),
		fmt.Sprintf("PATH=%s%c%s", bin, os.PathListSeparator, os.Getenv("PATH")),
		"STMT_LOG_LEVEL=warn",
	)

	for _, file := range files {
		blocks := codeBlocks(t, file)
		if len(blocks) == 0 {
			continue
		}
		t.Run(filepath.Base(file), func(t *testing.T) {
			dir, output := t.TempDir(), ""
			for _, b := range blocks {
				at := fmt.Sprintf("%s:%d", file, b.line)
				if b.kind == consoleCheck {
					assert.Equal(t, strings.TrimSpace(b.content), strings.TrimSpace(output), at)
					continue
				}
				if b.kind == bashSetup {
					dir = t.TempDir()
				}
				cmd := exec.Command("bash", "-c", "set -e; "+b.content)
				cmd.Dir, cmd.Env = dir, env
				out, err := cmd.CombinedOutput()
				switch {
				case b.kind == bashRun:
					output = string(out)
					require.NoError(t, err, "%s: %s", at, out)
				case err != nil && b.kind == bashCheck:
					t.Errorf("%s: check failed: %v\n%s", at, err, out)
				case err != nil:
					t.Fatalf("%s: setup failed: %v\n%s", at, err, out)
				}
			}
		})
	}
}
