package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"factotum/internal/tool"
)

// NewNotes builds the notes agent: plain markdown files under
// <workspace>/notes. Titles are slugified into file names; paths are pinned
// inside the workspace to prevent traversal.
func NewNotes(workspace string) *Agent {
	n := &noteStore{dir: filepath.Join(workspace, "notes")}

	save := tool.New("note_save",
		"Save a note under a title. Overwrites an existing note with the same title.",
		tool.NewSchema(
			tool.Field{Name: "title", Type: tool.TypeString, Description: "Short note title", Required: true},
			tool.Field{Name: "content", Type: tool.TypeString, Description: "Note body", Required: true},
		),
		n.save,
	)

	read := tool.New("note_read",
		"Read a previously saved note by title.",
		tool.NewSchema(
			tool.Field{Name: "title", Type: tool.TypeString, Description: "Title of the note to read", Required: true},
		),
		n.read,
	)

	list := tool.New("note_list",
		"List the titles of all saved notes.",
		tool.NewSchema(),
		n.list,
	)

	return New("notes",
		"Persistent free-form notes in the workspace.",
		"Use the note tools when the user asks you to remember, save, or look up written information.",
		save, read, list,
	)
}

type noteStore struct {
	dir string
}

type noteSaveArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type noteTitleArgs struct {
	Title string `json:"title"`
}

func (n *noteStore) save(ctx context.Context, args noteSaveArgs) (string, error) {
	path, err := n.notePath(args.Title)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return fmt.Sprintf("Saved note %q (%d bytes)", args.Title, len(args.Content)), nil
}

func (n *noteStore) read(ctx context.Context, args noteTitleArgs) (string, error) {
	path, err := n.notePath(args.Title)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no note titled %q", args.Title)
		}
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(data), nil
}

func (n *noteStore) list(ctx context.Context, args struct{}) (string, error) {
	entries, err := os.ReadDir(n.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "No notes saved yet.", nil
		}
		return "", fmt.Errorf("list notes: %w", err)
	}
	var titles []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		titles = append(titles, "- "+strings.TrimSuffix(e.Name(), ".md"))
	}
	if len(titles) == 0 {
		return "No notes saved yet.", nil
	}
	return strings.Join(titles, "\n"), nil
}

// notePath slugifies a title into a file name and verifies the result stays
// inside the notes directory.
func (n *noteStore) notePath(title string) (string, error) {
	slug := slugify(title)
	if slug == "" {
		return "", fmt.Errorf("title %q has no usable characters", title)
	}
	path := filepath.Join(n.dir, slug+".md")
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve note path: %w", err)
	}
	dirAbs, err := filepath.Abs(n.dir)
	if err != nil {
		return "", fmt.Errorf("resolve notes directory: %w", err)
	}
	if !strings.HasPrefix(abs, dirAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("note title %q escapes the notes directory", title)
	}
	return abs, nil
}

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
