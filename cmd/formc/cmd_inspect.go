// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/registry"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Browse a compiled Artefact's node registry as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(definitionPath)
			if err != nil {
				return err
			}
			artefact, err := compile.Compile(def, registry.NewFunctions(), registry.NewComponents(), slog.Default())
			if err != nil {
				return err
			}
			m := newInspectModel(artefact)
			p := tea.NewProgram(m)
			_, err = p.Run()
			return err
		},
	}
}

// inspectRow is one line of the flattened tree view.
type inspectRow struct {
	node  *ast.Node
	depth int
}

type inspectModel struct {
	rows     []inspectRow
	cursor   int
	styled   bool
	selected lipgloss.Style
	dim      lipgloss.Style
	vp       viewport.Model
	ready    bool
}

func newInspectModel(artefact *compile.Artefact) inspectModel {
	var rows []inspectRow
	var walk func(j *compile.Journey, depth int)
	walk = func(j *compile.Journey, depth int) {
		rows = append(rows, inspectRow{node: j.Node, depth: depth})
		for _, step := range j.Steps {
			rows = append(rows, inspectRow{node: step.Node, depth: depth + 1})
		}
		children := append([]*compile.Journey{}, j.Children...)
		sort.Slice(children, func(i, k int) bool { return children[i].Node.ID < children[k].Node.ID })
		for _, c := range children {
			walk(c, depth+1)
		}
	}
	walk(artefact.Root, 0)

	return inspectModel{
		rows:     rows,
		styled:   isatty.IsTerminal(os.Stdout.Fd()),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (m inspectModel) Init() tea.Cmd { return nil }

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 2
		}
		m.vp.SetContent(m.renderRows())
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		}
		if m.ready {
			m.vp.SetContent(m.renderRows())
		}
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m inspectModel) renderRows() string {
	var out string
	for i, row := range m.rows {
		label := fmt.Sprintf("%s%s %s", indent(row.depth), row.node.Kind, row.node.ID)
		if row.node.Subtype != "" {
			label += " (" + row.node.Subtype + ")"
		}
		if i == m.cursor && m.styled {
			label = m.selected.Render("> " + label)
		} else if m.styled {
			label = m.dim.Render("  " + label)
		} else if i == m.cursor {
			label = "> " + label
		} else {
			label = "  " + label
		}
		out += label + "\n"
	}
	return out
}

func (m inspectModel) View() string {
	if !m.ready {
		return m.renderRows()
	}
	return m.vp.View() + "\n(up/down to navigate, q to quit)\n"
}

func indent(depth int) string {
	s := ""
	for i := 0; i < depth; i++ {
		s += "  "
	}
	return s
}
