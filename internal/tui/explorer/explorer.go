package explorer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeDatabase NodeKind = iota
	NodeSchema
	NodeTable
	NodeColumn
)

// TreeNode is a single node in the server tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched

	Database string // owning database
	Schema   string // parent schema (tables, columns)
	Table    string // parent table (columns)
	DataType string // column data type
	RowCount int64  // table row estimate, -1 when unknown
}

// ExpandRequestMsg asks the app to load the children of a node. Schema and
// Table are empty for the levels above them.
type ExpandRequestMsg struct {
	Kind     NodeKind
	Database string
	Schema   string
	Table    string
}

// OpenTableMsg asks the app to open a table in the results grid.
type OpenTableMsg struct {
	Database string
	Schema   string
	Table    string
}

type flatItem struct {
	node  *TreeNode
	depth int
}

// Model is the explorer (server tree) component.
type Model struct {
	roots   []*TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
}

// New creates a new explorer model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the explorer has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// Reset empties the tree.
func (m *Model) Reset() {
	m.roots = nil
	m.items = nil
	m.cursor = 0
}

// SetDatabases replaces the top level of the tree.
func (m *Model) SetDatabases(names []string) {
	m.roots = nil
	for _, name := range names {
		m.roots = append(m.roots, &TreeNode{
			Kind:     NodeDatabase,
			Name:     name,
			Database: name,
		})
	}
	m.loading = false
	m.cursor = 0
	m.flatten()
}

// SetSchemas fills the children of a database node.
func (m *Model) SetSchemas(db string, schemas []string) {
	node := m.find(ExpandRequestMsg{Kind: NodeDatabase, Database: db})
	if node == nil {
		return
	}
	node.Children = nil
	for _, s := range schemas {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeSchema,
			Name:     s,
			Database: db,
			Schema:   s,
		})
	}
	node.Loaded = true
	m.flatten()
}

// SetTables fills the children of a schema node.
func (m *Model) SetTables(db, schema string, tables []string) {
	node := m.find(ExpandRequestMsg{Kind: NodeSchema, Database: db, Schema: schema})
	if node == nil {
		return
	}
	node.Children = nil
	for _, t := range tables {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeTable,
			Name:     t,
			Database: db,
			Schema:   schema,
			RowCount: -1,
		})
	}
	node.Loaded = true
	m.flatten()
}

// SetColumns fills the children of a table node.
func (m *Model) SetColumns(db, schema, table string, columns []database.Column, rowEstimate int64) {
	node := m.find(ExpandRequestMsg{Kind: NodeTable, Database: db, Schema: schema, Table: table})
	if node == nil {
		return
	}
	node.Children = nil
	for _, col := range columns {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeColumn,
			Name:     col.Name,
			Database: db,
			Schema:   schema,
			Table:    table,
			DataType: col.DataType,
		})
	}
	node.RowCount = rowEstimate
	node.Loaded = true
	m.flatten()
}

// Collapse folds the node addressed by req, used when loading it failed.
func (m *Model) Collapse(req ExpandRequestMsg) {
	if node := m.find(req); node != nil {
		node.Expanded = false
		m.flatten()
	}
}

func (m *Model) find(req ExpandRequestMsg) *TreeNode {
	var db *TreeNode
	for _, n := range m.roots {
		if n.Name == req.Database {
			db = n
			break
		}
	}
	if db == nil || req.Kind == NodeDatabase {
		return db
	}
	schema := child(db, req.Schema)
	if schema == nil || req.Kind == NodeSchema {
		return schema
	}
	return child(schema, req.Table)
}

func child(n *TreeNode, name string) *TreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Selected returns the node under the cursor.
func (m Model) Selected() (*TreeNode, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil, false
	}
	return m.items[m.cursor].node, true
}

// SelectedTable returns the table under the cursor, or the table owning the
// column under the cursor.
func (m Model) SelectedTable() (db, schema, table string, ok bool) {
	node, ok := m.Selected()
	if !ok {
		return "", "", "", false
	}
	switch node.Kind {
	case NodeTable:
		return node.Database, node.Schema, node.Name, true
	case NodeColumn:
		return node.Database, node.Schema, node.Table, true
	}
	return "", "", "", false
}

func (m *Model) flatten() {
	m.items = nil
	for _, root := range m.roots {
		m.flattenNode(root, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, c := range node.Children {
			m.flattenNode(c, depth+1)
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter", "s":
			if db, schema, table, ok := m.SelectedTable(); ok {
				return m, func() tea.Msg {
					return OpenTableMsg{Database: db, Schema: schema, Table: table}
				}
			}
			return m, m.toggleExpand()
		case "right", "l", " ":
			return m, m.toggleExpand()
		case "left", "h":
			m.collapse()
		}
	}

	return m, nil
}

func (m *Model) toggleExpand() tea.Cmd {
	node, ok := m.Selected()
	if !ok || node.Kind == NodeColumn {
		return nil
	}

	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return nil
	}

	node.Expanded = true
	m.flatten()

	if node.Loaded {
		return nil
	}
	req := ExpandRequestMsg{Kind: node.Kind, Database: node.Database, Schema: node.Schema}
	if node.Kind == NodeTable {
		req.Table = node.Name
	}
	return func() tea.Msg { return req }
}

// collapse folds the selected node, or moves to its parent when it is
// already folded.
func (m *Model) collapse() {
	node, ok := m.Selected()
	if !ok {
		return
	}
	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return
	}
	depth := m.items[m.cursor].depth
	for i := m.cursor - 1; i >= 0; i-- {
		if m.items[i].depth < depth {
			m.cursor = i
			return
		}
	}
}

// View renders the explorer.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("Server")

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	}

	if len(m.roots) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  No connection")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := max(m.height-2, 1)

	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visibleHeight; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < scrollOffset+visibleHeight-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "  "
	if node.Kind != NodeColumn {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	name := node.Name
	muted := lipgloss.NewStyle().Foreground(theme.ColorMuted)
	switch {
	case node.Kind == NodeColumn && node.DataType != "":
		name = fmt.Sprintf("%s %s", node.Name, muted.Render(node.DataType))
	case node.Kind == NodeTable && node.RowCount >= 0:
		name = fmt.Sprintf("%s %s", node.Name, muted.Render(fmt.Sprintf("~%d", node.RowCount)))
	}

	line := indent + icon + name

	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		line = truncate(indent+icon+node.Name, m.width-4) + ".."
	}

	if selected {
		return lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render(line)
	}

	return line
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
