package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"duplo/internal/app/common"
	"duplo/internal/app/scan"
	"duplo/internal/domain/model"
)

var reviewMode string

var reviewCmd = &cobra.Command{
	Use:   "review [dir]",
	Short: "Interactively review duplicates and remove the ones you mark",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := common.FromCommand(cmd)
		if err != nil {
			return err
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if err := common.ValidateScanRoot(root); err != nil {
			return err
		}
		mode, err := model.ParseComparisonType(reviewMode)
		if err != nil {
			return err
		}

		m := newReviewModel(cmd.Context(), app.Manager, root, mode)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewMode, "mode", string(model.CompareHash), "Comparison mode: hash, image_visual, code, document, music, empty_file")
}

// reviewBackend is the part of the manager the review screen drives.
type reviewBackend interface {
	ScanAsync(ctx context.Context, path string, mode model.ComparisonType) <-chan scan.Outcome
	PerformDeletion(ctx context.Context, pairs []model.DuplicatePair, performBackup, useSafeDelete bool) model.DeletionReport
	Undo(ctx context.Context) model.UndoReport
}

var (
	reviewTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("39")).Padding(0, 1)
	reviewCursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	reviewMarkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	reviewInfoStyle   = lipgloss.NewStyle().Faint(true)
	reviewWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

type reviewKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	MarkAll key.Binding
	Backup  key.Binding
	Safe    key.Binding
	Delete  key.Binding
	Undo    key.Binding
	Rescan  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var reviewKeys = reviewKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Toggle:  key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "mark/unmark")),
	MarkAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mark all/none")),
	Backup:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "toggle backup")),
	Safe:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle quarantine")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete marked")),
	Undo:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo last delete")),
	Rescan:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "quit")),
}

func (k reviewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Delete, k.Undo, k.Help, k.Quit}
}

func (k reviewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.MarkAll},
		{k.Backup, k.Safe, k.Delete, k.Undo},
		{k.Rescan, k.Help, k.Quit},
	}
}

type scanDoneMsg struct{ outcome scan.Outcome }

type deleteDoneMsg struct{ report model.DeletionReport }

type undoDoneMsg struct{ report model.UndoReport }

type reviewModel struct {
	ctx     context.Context
	backend reviewBackend
	root    string
	mode    model.ComparisonType

	pairs      []model.DuplicatePair
	warnings   int
	cursor     int
	backup     bool
	safe       bool
	busy       string
	confirming bool
	status     string
	failed     bool
	showHelp   bool
	height     int

	keys    reviewKeyMap
	help    help.Model
	spinner spinner.Model
}

func newReviewModel(ctx context.Context, backend reviewBackend, root string, mode model.ComparisonType) reviewModel {
	return reviewModel{
		ctx:     ctx,
		backend: backend,
		root:    root,
		mode:    mode,
		safe:    true,
		busy:    "scanning",
		keys:    reviewKeys,
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(reviewCursorStyle)),
	}
}

func (m reviewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startScan())
}

func (m reviewModel) startScan() tea.Cmd {
	ch := m.backend.ScanAsync(m.ctx, m.root, m.mode)
	return func() tea.Msg {
		return scanDoneMsg{outcome: <-ch}
	}
}

func (m reviewModel) startDelete() tea.Cmd {
	pairs := append([]model.DuplicatePair(nil), m.pairs...)
	backup, safe := m.backup, m.safe
	return func() tea.Msg {
		return deleteDoneMsg{report: m.backend.PerformDeletion(m.ctx, pairs, backup, safe)}
	}
}

func (m reviewModel) startUndo() tea.Cmd {
	return func() tea.Msg {
		return undoDoneMsg{report: m.backend.Undo(m.ctx)}
	}
}

func (m reviewModel) marked() int {
	return len(common.MarkedPairs(m.pairs))
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		m.busy = ""
		if msg.outcome.Err != nil {
			m.pairs = nil
			m.status, m.failed = msg.outcome.Err.Error(), true
			return m, nil
		}
		m.pairs = msg.outcome.Report.Pairs
		m.warnings = len(msg.outcome.Report.Warnings)
		m.cursor = 0
		m.status, m.failed = fmt.Sprintf("%d pair(s) found", len(m.pairs)), false
		return m, nil

	case deleteDoneMsg:
		m.status = msg.report.Message
		m.failed = msg.report.Status == model.StatusFailure
		if msg.report.Status == model.StatusSuccess && msg.report.SuccessCount == 0 {
			m.busy = ""
			return m, nil
		}
		m.busy = "rescanning"
		return m, tea.Batch(m.spinner.Tick, m.startScan())

	case undoDoneMsg:
		if msg.report.OK {
			m.status, m.failed = fmt.Sprintf("restored %d file(s)", len(msg.report.Reverted)), false
		} else {
			reason := "undo failed"
			if len(msg.report.Failed) > 0 {
				reason = msg.report.Failed[0].Reason
			}
			m.status, m.failed = fmt.Sprintf("%s (%d restored, %d failed)", reason, len(msg.report.Reverted), len(msg.report.Failed)), true
		}
		m.busy = "rescanning"
		return m, tea.Batch(m.spinner.Tick, m.startScan())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m reviewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if msg.String() == "y" {
			m.busy = "deleting"
			return m, tea.Batch(m.spinner.Tick, m.startDelete())
		}
		m.status, m.failed = "deletion canceled", false
		return m, nil
	}

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.busy != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.pairs)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < len(m.pairs) {
			m.pairs[m.cursor].Marked = !m.pairs[m.cursor].Marked
		}
	case key.Matches(msg, m.keys.MarkAll):
		if m.marked() > 0 {
			for i := range m.pairs {
				m.pairs[i].Marked = false
			}
		} else {
			common.MarkAll(m.pairs)
		}
	case key.Matches(msg, m.keys.Backup):
		m.backup = !m.backup
	case key.Matches(msg, m.keys.Safe):
		m.safe = !m.safe
	case key.Matches(msg, m.keys.Delete):
		if m.marked() == 0 {
			m.status, m.failed = "nothing marked for deletion", false
			return m, nil
		}
		m.confirming = true
	case key.Matches(msg, m.keys.Undo):
		m.busy = "undoing"
		return m, tea.Batch(m.spinner.Tick, m.startUndo())
	case key.Matches(msg, m.keys.Rescan):
		m.busy = "scanning"
		return m, tea.Batch(m.spinner.Tick, m.startScan())
	}
	return m, nil
}

func (m reviewModel) View() string {
	var b strings.Builder
	b.WriteString(reviewTitleStyle.Render(fmt.Sprintf("duplo review: %s (%s)", m.root, m.mode)))
	b.WriteString("\n")
	b.WriteString(reviewInfoStyle.Render(fmt.Sprintf("marked %d/%d  backup %s  quarantine %s", m.marked(), len(m.pairs), onOff(m.backup), onOff(m.safe))))
	b.WriteString("\n\n")

	if m.busy != "" {
		b.WriteString(m.spinner.View() + " " + m.busy + "...\n")
	} else if len(m.pairs) == 0 {
		b.WriteString("No duplicates found.\n")
	} else {
		start, end := m.window()
		for i := start; i < end; i++ {
			p := m.pairs[i]
			box := "[ ] "
			if p.Marked {
				box = reviewMarkedStyle.Render("[x] ")
			}
			line := pairLine(p)
			if i == m.cursor {
				b.WriteString(reviewCursorStyle.Render("> ") + box + reviewCursorStyle.Render(line))
			} else {
				b.WriteString("  " + box + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.confirming:
		verb := "delete"
		if m.safe {
			verb = "quarantine"
		}
		b.WriteString(reviewWarnStyle.Render(fmt.Sprintf("%s %d file(s)? y to confirm, any other key cancels", verb, m.marked())))
		b.WriteString("\n")
	case m.status != "":
		style := reviewInfoStyle
		if m.failed {
			style = reviewWarnStyle
		}
		b.WriteString(style.Render(m.status))
		if m.warnings > 0 {
			b.WriteString(reviewInfoStyle.Render(fmt.Sprintf(" (%d unreadable file(s) skipped)", m.warnings)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

// window returns the slice of pairs that fits the terminal, keeping the
// cursor visible.
func (m reviewModel) window() (int, int) {
	rows := m.height - 8
	if rows < 5 {
		rows = len(m.pairs)
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.pairs) {
		end = len(m.pairs)
	}
	return start, end
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
