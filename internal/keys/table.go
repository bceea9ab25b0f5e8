package keys

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderPattern matches the digit slot of a numeric template
var placeholderPattern = regexp.MustCompile(`\{[a-z]*\}`)

// Template is a key identifier, possibly with one digit placeholder.
type Template string

// Numeric reports whether the template expects a digit.
func (t Template) Numeric() bool {
	return placeholderPattern.MatchString(string(t))
}

// Key returns the key identifier of a non-numeric template.
func (t Template) Key() string {
	return string(t)
}

// Digit substitutes d into the placeholder.
func (t Template) Digit(d rune) string {
	return placeholderPattern.ReplaceAllLiteralString(string(t), string(d))
}

// Table maps command names to templates. The zero value is an empty table.
type Table struct {
	entries map[string]Template
}

// defaultEntries is the stock remote layout
var defaultEntries = map[string]Template{
	"power":         "NRC_POWER-ONOFF",
	"vol_up":        "NRC_VOLUP-ONOFF",
	"vol_down":      "NRC_VOLDOWN-ONOFF",
	"mute":          "NRC_MUTE-ONOFF",
	"num":           "NRC_D{}-ONOFF",
	"tv":            "NRC_TV-ONOFF",
	"toggle_3D":     "NRC_3D-ONOFF",
	"toggle_SDCard": "NRC_SD_CARD-ONOFF",
	"red":           "NRC_RED-ONOFF",
	"green":         "NRC_GREEN-ONOFF",
	"yellow":        "NRC_YELLOW-ONOFF",
	"blue":          "NRC_BLUE-ONOFF",
	"vtools":        "NRC_VTOOLS-ONOFF",
	"cancel":        "NRC_CANCEL-ONOFF",
	"option":        "NRC_SUBMENU-ONOFF",
	"return":        "NRC_RETURN-ONOFF",
	"enter":         "NRC_ENTER-ONOFF",
	"right":         "NRC_RIGHT-ONOFF",
	"left":          "NRC_LEFT-ONOFF",
	"up":            "NRC_UP-ONOFF",
	"down":          "NRC_DOWN-ONOFF",
	"display":       "NRC_DISP_MODE-ONOFF",
	"menu":          "NRC_MENU-ONOFF",
	"connect":       "NRC_INTERNET-ONOFF",
	"link":          "NRC_VIERA_LINK-ONOFF",
	"guide":         "NRC_EPG-ONOFF",
	"text":          "NRC_TEXT-ONOFF",
	"subtitles":     "NRC_STTL-ONOFF",
	"info":          "NRC_INFO-ONOFF",
	"index":         "NRC_INDEX-ONOFF",
	"hold":          "NRC_HOLD-ONOFF",
	"ch_up":         "NRC_CH_UP-ONOFF",
	"ch_down":       "NRC_CH_DOWN-ONOFF",
	"input":         "NRC_CHG_INPUT-ONOFF",
	"last_view":     "NRC_R_TUNE-ONOFF",
}

var defaultTable = &Table{entries: defaultEntries}

// Default returns the built-in command table.
func Default() *Table {
	return defaultTable
}

// New builds a table from name/template pairs. Names and templates must be
// non-empty and a template may hold at most one placeholder.
func New(entries map[string]string) (*Table, error) {
	t := &Table{entries: make(map[string]Template, len(entries))}
	for name, tmpl := range entries {
		if err := validate(name, tmpl); err != nil {
			return nil, err
		}
		t.entries[name] = Template(tmpl)
	}
	return t, nil
}

func validate(name, tmpl string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("command name must not be empty")
	}
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("command %q: key template must not be empty", name)
	}
	if n := len(placeholderPattern.FindAllStringIndex(tmpl, -1)); n > 1 {
		return fmt.Errorf("command %q: template %q has %d placeholders, want at most 1", name, tmpl, n)
	}
	return nil
}

// With returns a new table holding t's entries overlaid with overrides.
func (t *Table) With(overrides map[string]string) (*Table, error) {
	merged := make(map[string]Template, t.Len()+len(overrides))
	if t != nil {
		for name, tmpl := range t.entries {
			merged[name] = tmpl
		}
	}
	for name, tmpl := range overrides {
		if err := validate(name, tmpl); err != nil {
			return nil, err
		}
		merged[name] = Template(tmpl)
	}
	return &Table{entries: merged}, nil
}

// Lookup returns the template bound to name.
func (t *Table) Lookup(name string) (Template, bool) {
	if t == nil {
		return "", false
	}
	tmpl, ok := t.entries[name]
	return tmpl, ok
}

// Names returns the command names in sorted order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of commands.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the table as plain strings.
func (t *Table) Entries() map[string]string {
	out := make(map[string]string, t.Len())
	if t == nil {
		return out
	}
	for name, tmpl := range t.entries {
		out[name] = string(tmpl)
	}
	return out
}
