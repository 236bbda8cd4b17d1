package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	Version     string
	FlagSet     *FlagSet
	Action      func(args []string) error
	// Stdout and Stderr default to the process streams.
	Stdout, Stderr io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	var help, version bool
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")
	if a.Version != "" {
		a.FlagSet.Bool(&version, "version", "", false, "Print the version and exit")
	}

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.writeUsage(a.Stderr)
		return err
	}
	switch {
	case help:
		a.writeHelp(a.Stdout)
		return nil
	case version:
		fmt.Fprintf(a.Stdout, "%s %s\n", a.Name, a.Version)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

const indentUnit = "    "

func indent(level int) string { return strings.Repeat(indentUnit, level) }

// helpLayout holds the column widths shared by every entry of a page so that
// options and group entries line up.
type helpLayout struct {
	termWidth  int
	leftWidth  int
	usageWidth int
}

func (a *App) optionFlags() []*Flag {
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if !a.isGroupFlag(flag.Name) {
			out = append(out, flag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, e := range group.Flags {
			if name == e.Prefix+e.Name || name == e.Prefix+"no-"+e.Name {
				return true
			}
		}
	}
	return false
}

func flagLabel(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !flag.isBool() && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func (a *App) layout() helpLayout {
	l := helpLayout{termWidth: terminalWidth()}
	grow := func(left, usage string) {
		if len(left) > l.leftWidth {
			l.leftWidth = len(left)
		}
		if len(usage) > l.usageWidth {
			l.usageWidth = len(usage)
		}
	}
	for _, flag := range a.optionFlags() {
		grow(flagLabel(flag), flag.Usage)
	}
	for _, group := range a.FlagSet.flagGroups {
		grow(fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.GroupType), "")
		for _, e := range group.Flags {
			grow(e.Name, e.Usage)
		}
	}
	return l
}

// writeEntry prints one aligned row, wrapping the usage text to the terminal.
func (l helpLayout) writeEntry(sb *strings.Builder, left, usage, right string) {
	prefix := indent(2)
	room := l.termWidth - len(prefix) - l.leftWidth - 1
	if right != "" {
		room -= len(right) + 2
	}
	if room < 10 {
		room = 10
	}
	lines := wrapText(usage, room)
	if len(lines) == 0 {
		lines = []string{""}
	}
	usageWidth := l.usageWidth
	if usageWidth > room {
		usageWidth = room
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", prefix, l.leftWidth, left, usageWidth, lines[0], right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", prefix, l.leftWidth, left, lines[0])
	}
	pad := strings.Repeat(" ", l.leftWidth+1)
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "%s%s%s\n", prefix, pad, line)
	}
}

func (a *App) writeOptions(sb *strings.Builder, l helpLayout) {
	flags := a.optionFlags()
	if len(flags) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%sOptions\n", indent(1))
	for _, flag := range flags {
		right := ""
		if !flag.isBool() && flag.DefValue != "" {
			right = "|" + flag.DefValue + "|"
		}
		l.writeEntry(sb, flagLabel(flag), flag.Usage, right)
	}
}

func (a *App) writeUsage(w io.Writer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	a.writeOptions(&sb, a.layout())
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	io.WriteString(w, sb.String())
}

func (a *App) writeHelp(w io.Writer) {
	var sb strings.Builder
	l := a.layout()

	sb.WriteString("\n")
	authors := strings.Join(a.Authors, ", ") + " and contributors"
	if a.Since != 0 && a.Since != time.Now().Year() {
		fmt.Fprintf(&sb, "%sCopyright (c) %d-%d: %s\n", indent(1), a.Since, time.Now().Year(), authors)
	} else {
		fmt.Fprintf(&sb, "%sCopyright (c) %d: %s\n", indent(1), time.Now().Year(), authors)
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent(1), indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, l.termWidth-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	a.writeOptions(&sb, l)

	groups := make([]FlagGroup, len(a.FlagSet.flagGroups))
	copy(groups, a.FlagSet.flagGroups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		writeGroup(&sb, group, l)
	}
	io.WriteString(w, sb.String())
}

func writeGroup(sb *strings.Builder, group FlagGroup, l helpLayout) {
	prefix := group.Flags[0].Prefix
	kind := group.GroupType
	if kind == "" {
		kind = "flag"
	}
	fmt.Fprintf(sb, "\n%s%s\n", indent(1), group.Name)
	l.writeEntry(sb, fmt.Sprintf("-%s<%s>", prefix, kind), "Enable a specific "+kind, "")
	l.writeEntry(sb, fmt.Sprintf("-%sno-<%s>", prefix, kind), "Disable a specific "+kind, "")
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		state := "|-|"
		if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
			state = "|x|"
		}
		l.writeEntry(sb, e.Name, e.Usage, state)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		if len(words) == 0 {
			return nil
		}
		return []string{text}
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
