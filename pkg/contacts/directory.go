// Package contacts turns a contact's display name into a messaging address.
package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

// ErrContactNotFound is returned when a name has no known address.
var ErrContactNotFound = errors.New("contact not found")

var (
	nonDialable  = regexp.MustCompile(`[^\d+]`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s().-]{7,}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// CleanNumber strips everything except digits and '+'.
func CleanNumber(number string) string {
	return nonDialable.ReplaceAllString(number, "")
}

// IsAddress reports whether s already looks like a phone number or an email
// address and needs no lookup.
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	return phonePattern.MatchString(s) || emailPattern.MatchString(s)
}

// Directory is an in-memory name to number table. It is read-only after
// loading and safe to share between sessions.
type Directory struct {
	numbers map[string]string
	folded  map[string]string // lower-cased name -> canonical name
	names   []string
}

func NewDirectory(entries map[string]string) *Directory {
	d := &Directory{
		numbers: make(map[string]string, len(entries)),
		folded:  make(map[string]string, len(entries)),
	}
	for name, number := range entries {
		name = strings.TrimSpace(name)
		number = CleanNumber(number)
		if name == "" || number == "" {
			continue
		}
		d.numbers[name] = number
		d.folded[strings.ToLower(name)] = name
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)
	return d
}

// ReadDirectory decodes the helper's JSON output: {"Full Name": "number"}.
func ReadDirectory(r io.Reader) (*Directory, error) {
	var entries map[string]string
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode contact directory: %w", err)
	}
	return NewDirectory(entries), nil
}

func LoadDirectoryFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact directory: %w", err)
	}
	defer f.Close()
	return ReadDirectory(f)
}

// LoadDirectoryCommand runs the contacts helper and parses what it prints.
func LoadDirectoryCommand(ctx context.Context, run utils.CommandRunner, command []string) (*Directory, error) {
	if len(command) == 0 {
		return nil, errors.New("contacts helper command is empty")
	}
	if run == nil {
		run = utils.RunCommand
	}
	out, err := run(ctx, command[0], command[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to run contacts helper: %w", err)
	}
	d, err := ReadDirectory(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	logger.InfoCF("contacts", "Loaded contact directory", map[string]any{
		"helper":   command[0],
		"contacts": d.Len(),
	})
	return d, nil
}

func (d *Directory) Len() int { return len(d.names) }

// Names returns every contact name, sorted.
func (d *Directory) Names() []string {
	return append([]string(nil), d.names...)
}

// Filter returns the sorted names containing query, ignoring case. An empty
// query matches everything.
func (d *Directory) Filter(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return d.Names()
	}
	var out []string
	for _, name := range d.names {
		if strings.Contains(strings.ToLower(name), query) {
			out = append(out, name)
		}
	}
	return out
}

// Lookup finds the number for name, first exactly and then ignoring case.
func (d *Directory) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if n, ok := d.numbers[name]; ok {
		return n, true
	}
	if canonical, ok := d.folded[strings.ToLower(name)]; ok {
		return d.numbers[canonical], true
	}
	return "", false
}
