package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ledgeradmin/internal/view"
)

type inputKind int

const (
	inputNone inputKind = iota
	inputSearch
	inputPageSize
)

// listControls holds the view parameters and selection of a list screen
// and handles the keys every list shares.
type listControls struct {
	params  view.Params
	cursor  int
	editing inputKind
	input   textinput.Model
}

func newListControls(pageSize int) listControls {
	return listControls{
		params: view.NewParams(pageSize),
		input:  newInput(""),
	}
}

func (l *listControls) capturing() bool {
	return l.editing != inputNone
}

// handleKey applies a key to the parameters. totalPages is the page count
// and pageLen the number of items on the current page.
func (l *listControls) handleKey(msg tea.KeyMsg, totalPages, pageLen int) (bool, tea.Cmd) {
	if l.editing != inputNone {
		return true, l.updateInput(msg)
	}
	switch msg.String() {
	case "/":
		l.editing = inputSearch
		l.input.Prompt = "Search: "
		l.input.Placeholder = "type to filter"
		l.input.SetValue(l.params.Search)
		l.input.CursorEnd()
		return true, l.input.Focus()
	case "c":
		l.editing = inputPageSize
		l.input.Prompt = "Page size: "
		l.input.Placeholder = strconv.Itoa(l.params.PageSize)
		l.input.SetValue("")
		return true, l.input.Focus()
	case "s":
		l.params.SetPageSize(nextPreset(l.params.PageSize))
		l.cursor = 0
		return true, nil
	case "right", "l", "pgdown":
		l.params.NextPage(totalPages)
		l.cursor = 0
		return true, nil
	case "left", "h", "pgup":
		l.params.PrevPage()
		l.cursor = 0
		return true, nil
	case "down", "j":
		if l.cursor < pageLen-1 {
			l.cursor++
		}
		return true, nil
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
		return true, nil
	}
	return false, nil
}

func (l *listControls) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		if l.editing == inputSearch {
			l.params.SetSearch("")
			l.cursor = 0
		}
		l.stopEditing()
		return nil
	case tea.KeyEnter:
		if l.editing == inputPageSize {
			// Invalid sizes are dropped and the previous size stays.
			l.params.ApplyCustomPageSize(l.input.Value())
		}
		l.cursor = 0
		l.stopEditing()
		return nil
	}
	var cmd tea.Cmd
	l.input, cmd = l.input.Update(msg)
	if l.editing == inputSearch && l.input.Value() != l.params.Search {
		l.params.SetSearch(l.input.Value())
		l.cursor = 0
	}
	return cmd
}

func (l *listControls) stopEditing() {
	l.editing = inputNone
	l.input.Blur()
}

// clamp keeps the page and cursor inside a collection that shrank.
func (l *listControls) clamp(totalPages, pageLen int) {
	if totalPages == 0 {
		l.params.SetPage(0)
	} else if l.params.PageIndex >= totalPages {
		l.params.SetPage(totalPages - 1)
	}
	if l.cursor >= pageLen {
		l.cursor = maxInt(0, pageLen-1)
	}
}

func (l *listControls) status(total, totalPages int) string {
	page := 0
	if totalPages > 0 {
		page = l.params.PageIndex + 1
	}
	line := fmt.Sprintf("%d results  page %d/%d  %d per page", total, page, totalPages, l.params.PageSize)
	if l.params.Search != "" {
		line += fmt.Sprintf("  search %q", l.params.Search)
	}
	if l.params.Sort != "" {
		line += "  sort " + string(l.params.Sort)
	}
	return line
}

func (l *listControls) inputView() string {
	if l.editing == inputNone {
		return ""
	}
	return l.input.View()
}

const listHelp = "/: search  s: page size  c: custom size  left/right: page  up/down: select"

func nextPreset(current int) int {
	for _, n := range view.PageSizes {
		if n > current {
			return n
		}
	}
	return view.PageSizes[0]
}
