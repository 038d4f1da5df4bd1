package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var runInteractiveCommand = runSelf

type menuItem struct {
	Title       string
	Description string
	Args        []string
	Exit        bool
}

type menuKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

func (k menuKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Quit}
}

func (k menuKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var menuKeys = menuKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type menuModel struct {
	items    []menuItem
	cursor   int
	selected []string
	exit     bool
	help     help.Model
}

func newMenuModel() menuModel {
	return menuModel{
		items: []menuItem{
			{Title: "Review duplicates", Description: "Scan the current directory and pick copies to remove", Args: []string{"review", "."}},
			{Title: "Scan (hash)", Description: "List byte-identical files under the current directory", Args: []string{"scan", "."}},
			{Title: "Scan images", Description: "List visually similar images under the current directory", Args: []string{"scan", ".", "--mode", "image_visual"}},
			{Title: "Delete (dry run)", Description: "Preview quarantining every hash duplicate", Args: []string{"delete", ".", "--dry-run"}},
			{Title: "Pending undo", Description: "Show what undo would restore", Args: []string{"undo", "--dry-run"}},
			{Title: "Exit", Description: "Close interactive mode", Exit: true},
		},
		help: help.New(),
	}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, menuKeys.Quit):
		m.exit = true
		return m, tea.Quit
	case key.Matches(k, menuKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, menuKeys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(k, menuKeys.Select):
		item := m.items[m.cursor]
		m.exit = item.Exit
		if !item.Exit {
			m.selected = append([]string(nil), item.Args...)
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	lines := []string{
		reviewTitleStyle.Render("Duplo Interactive"),
		"",
	}
	for i, item := range m.items {
		if i == m.cursor {
			lines = append(lines, reviewCursorStyle.Render("> "+item.Title))
		} else {
			lines = append(lines, "  "+item.Title)
		}
		lines = append(lines, reviewInfoStyle.Render("   "+item.Description))
	}
	lines = append(lines, "", m.help.ShortHelpView(menuKeys.ShortHelp()))
	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func runInteractiveMenu() error {
	for {
		p := tea.NewProgram(newMenuModel())
		result, err := p.Run()
		if err != nil {
			return err
		}

		m, ok := result.(menuModel)
		if !ok || m.exit {
			return nil
		}
		if len(m.selected) == 0 {
			continue
		}

		fmt.Println()
		if err := runInteractiveCommand(m.selected...); err != nil {
			return fmt.Errorf("interactive command failed: %w", err)
		}
		fmt.Println()
	}
}

// runSelf re-executes the current binary so each menu entry runs exactly as
// it would from the shell.
func runSelf(args ...string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	c := exec.Command(exe, args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func fileMode(f *os.File) os.FileMode {
	st, err := f.Stat()
	if err != nil {
		return 0
	}
	return st.Mode()
}

func isCharDevice(mode os.FileMode) bool {
	return mode&os.ModeCharDevice != 0
}

func isDumbTerm(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	return term == "" || term == "dumb"
}

func shouldUseInteractive(stdinMode, stdoutMode os.FileMode, term string) bool {
	return isCharDevice(stdinMode) && isCharDevice(stdoutMode) && !isDumbTerm(term)
}
