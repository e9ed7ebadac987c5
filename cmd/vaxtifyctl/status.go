package main

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/vaxtify/vaxtifyd/internal/ipcbus/client"
)

type statusModel struct {
	busName string
	width   int
	status  client.Status
	err     error
	loaded  bool
	spinner spinner.Model
}

type statusMsg struct {
	status client.Status
	err    error
}

func newStatusModel(busName string) statusModel {
	width, _, err := term.GetSize(0)
	if err != nil || width <= 0 {
		width = 80
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return statusModel{busName: busName, width: width, spinner: sp}
}

func (m statusModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.spinner.Tick)
}

func (m statusModel) poll() tea.Cmd {
	return func() tea.Msg {
		c, err := client.Dial(m.busName)
		if err != nil {
			return statusMsg{err: err}
		}
		defer c.Close()
		s, err := c.Status()
		return statusMsg{status: s, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		if v.String() == "q" || v.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = v.Width
	case statusMsg:
		m.status, m.err = v.status, v.err
		m.loaded = true
		return m, tick()
	case tickMsg:
		return m, m.poll()
	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(v)
		return m, cmd
	}
	return m, nil
}

func (m statusModel) View() string {
	if !m.loaded && m.err == nil {
		return fmt.Sprintf("%s connecting to vaxtifyd...\n", m.spinner.View())
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("vaxtifyctl: %v", m.err)) + "\n" + helpStyle.Render("press q to quit")
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"BLOCKED CATEGORIES", "ACTIVE PERMITS", "REMAINING", "TABS ALIVE"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	names := make([]string, 0, len(m.status.PermitRemaining))
	for name := range m.status.PermitRemaining {
		names = append(names, name)
	}
	sort.Strings(names)

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	rows := maxInt(len(m.status.BlockedCategories), len(names))
	if rows == 0 {
		rows = 1
	}
	for i := 0; i < rows; i++ {
		var category, permit, remaining string
		if i < len(m.status.BlockedCategories) {
			category = red(m.status.BlockedCategories[i])
		}
		if i < len(names) {
			permit = names[i]
			remaining = green(m.status.PermitRemaining[permit].Round(time.Second).String())
		}
		tabs := ""
		if i == 0 {
			tabs = fmt.Sprintf("%d", m.status.TabsAlive)
		}
		table.Append([]string{category, permit, remaining, tabs})
	}

	table.Render()
	return titleStyle.Render("vaxtify status") + "\n" + buf.String() + helpStyle.Render("press q to quit")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
