package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stronghold.gg/cms/internal/core/domain"
)

// DashboardFlags holds command-line flags for the dashboard command.
type DashboardFlags struct {
	RefreshRate time.Duration
}

// NewDashboardCommand creates the dashboard command.
func NewDashboardCommand(container *CLIContainer) *cobra.Command {
	flags := &DashboardFlags{}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive terminal view of installed extensions",
		Long: `Launch an interactive terminal dashboard showing every discovered plugin
and theme with its state. Plugins can be enabled and disabled and themes
activated directly from the dashboard.

Examples:
  stronghold dashboard
  stronghold dashboard --refresh 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(container, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.RefreshRate, "refresh", time.Second, "Refresh rate for live updates")
	return cmd
}

// runDashboard starts the terminal dashboard.
func runDashboard(container *CLIContainer, flags *DashboardFlags) error {
	model := newDashboardModel(container, flags)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}

// extensionRow is one extension in the dashboard table.
type extensionRow struct {
	ID      string
	Kind    domain.Kind
	Name    string
	Version string
	State   string
	Active  bool
}

// dashboardModel holds the state for the Bubble Tea dashboard.
type dashboardModel struct {
	container    *CLIContainer
	flags        *DashboardFlags
	rows         []extensionRow
	selectedRow  int
	lastUpdate   time.Time
	windowWidth  int
	windowHeight int
	err          error
}

func newDashboardModel(container *CLIContainer, flags *DashboardFlags) dashboardModel {
	return dashboardModel{
		container:  container,
		flags:      flags,
		lastUpdate: time.Now(),
	}
}

// Init implements the Bubble Tea init method.
func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.loadRowsCmd())
}

// Update implements the Bubble Tea update method.
func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			return m, nil

		case "down", "j":
			if m.selectedRow < len(m.rows)-1 {
				m.selectedRow++
			}
			return m, nil

		case "enter", " ":
			return m, m.toggleSelectedCmd()

		case "r":
			m.container.Extensions.Reload()
			return m, m.loadRowsCmd()
		}

	case tickMsg:
		return m, tea.Batch(m.tickCmd(), m.loadRowsCmd())

	case rowsLoadedMsg:
		m.rows = msg.rows
		m.lastUpdate = time.Now()
		if m.selectedRow >= len(m.rows) && len(m.rows) > 0 {
			m.selectedRow = len(m.rows) - 1
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method.
func (m dashboardModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err)
	}

	header := m.renderHeader()
	table := m.renderTable()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, table, footer)
}

func (m dashboardModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("🏰 Stronghold Extensions")

	info := fmt.Sprintf("Extensions: %d | Last update: %s",
		len(m.rows), m.lastUpdate.Format("15:04:05"))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", info), "")
}

func (m dashboardModel) renderTable() string {
	if len(m.rows) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("\n  No extensions installed.\n")
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render(fmt.Sprintf("%-20s │ %-6s │ %-24s │ %-8s │ %s",
			"ID", "KIND", "NAME", "VERSION", "STATE"))

	rows := []string{header}
	for i, row := range m.rows {
		rowStyle := lipgloss.NewStyle()
		if i == m.selectedRow {
			rowStyle = rowStyle.Background(lipgloss.Color("240"))
		}
		if row.Active {
			rowStyle = rowStyle.Foreground(lipgloss.Color("46"))
		}

		rows = append(rows, rowStyle.Render(fmt.Sprintf("%-20s │ %-6s │ %-24s │ %-8s │ %s",
			truncateString(row.ID, 20),
			row.Kind,
			truncateString(row.Name, 24),
			row.Version,
			row.State,
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m dashboardModel) renderFooter() string {
	controls := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("Controls: [↑↓] Navigate | [Enter] Toggle/Activate | [r] Rescan | [q] Quit")

	return lipgloss.JoinVertical(lipgloss.Left, "", controls)
}

// tickMsg is sent every refresh interval.
type tickMsg time.Time

func (m dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.flags.RefreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// rowsLoadedMsg carries a freshly loaded extension table.
type rowsLoadedMsg struct {
	rows []extensionRow
}

// errMsg is sent when an operation fails.
type errMsg struct {
	err error
}

// loadRowsCmd loads the current extension states.
func (m dashboardModel) loadRowsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		plugins, err := m.container.Extensions.ListPlugins(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		themes, err := m.container.Themes.ListThemes(ctx)
		if err != nil {
			return errMsg{err: err}
		}

		rows := make([]extensionRow, 0, len(plugins)+len(themes))
		for _, p := range plugins {
			state := "disabled"
			if p.Enabled {
				state = "enabled"
			}
			rows = append(rows, extensionRow{
				ID:      p.Descriptor.ID,
				Kind:    domain.KindPlugin,
				Name:    p.Descriptor.DisplayName(),
				Version: p.Descriptor.Version,
				State:   state,
				Active:  p.Enabled,
			})
		}
		for _, t := range themes {
			state := ""
			if t.Active {
				state = "active"
			}
			rows = append(rows, extensionRow{
				ID:      t.Descriptor.ID,
				Kind:    domain.KindTheme,
				Name:    t.Descriptor.DisplayName(),
				Version: t.Descriptor.Version,
				State:   state,
				Active:  t.Active,
			})
		}
		return rowsLoadedMsg{rows: rows}
	}
}

// toggleSelectedCmd enables/disables the selected plugin or activates the
// selected theme, then reloads the table.
func (m dashboardModel) toggleSelectedCmd() tea.Cmd {
	if m.selectedRow >= len(m.rows) {
		return nil
	}
	row := m.rows[m.selectedRow]

	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch {
		case row.Kind == domain.KindPlugin && row.State == "enabled":
			err = m.container.Extensions.DisablePlugin(ctx, row.ID)
		case row.Kind == domain.KindPlugin:
			err = m.container.Extensions.EnablePlugin(ctx, row.ID)
		case row.Active:
			err = m.container.Themes.Deactivate(ctx)
		default:
			err = m.container.Themes.Activate(ctx, row.ID)
		}
		if err != nil {
			return errMsg{err: err}
		}
		return m.loadRowsCmd()()
	}
}

// truncateString truncates a string to the specified length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
