package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/service"
)

const (
	pageSizeStep = 5
	maxPageSize  = 100

	// rows used by header, error line and footer
	chromeRows = 6
)

// Media is the save/share collaborator. It is optional.
type Media interface {
	Save(ctx context.Context, img domain.ImageRecord) (*domain.SavedImage, error)
	Share(ctx context.Context, img domain.ImageRecord) (*service.ShareLink, error)
}

// App browses one cursor.
type App struct {
	ctx    context.Context
	cursor *pager.Cursor
	media  Media

	snap   pager.Snapshot
	row    int
	height int
	status string
}

func New(ctx context.Context, cursor *pager.Cursor, media Media) *App {
	return &App{
		ctx:    ctx,
		cursor: cursor,
		media:  media,
		snap:   cursor.Snapshot(),
		height: 24,
	}
}

type snapshotMsg struct {
	snap    pager.Snapshot
	fetched bool
}

type statusMsg string

type errMsg struct{ error }

func (a *App) Init() tea.Cmd {
	return a.cursorCmd(a.cursor.RequestNext)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.height = m.Height
	case tea.KeyMsg:
		return a.handleKey(m)
	case snapshotMsg:
		a.snap = m.snap
		if a.row >= len(a.snap.Items) {
			a.row = max(len(a.snap.Items)-1, 0)
		}
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		a.cursor.Close()
		return a, tea.Quit
	case "down", "j":
		if a.row < len(a.snap.Items)-1 {
			a.row++
		}
		if a.atEnd() && a.snap.HasMore && !a.snap.Loading && a.snap.State != pager.StateError {
			return a, a.cursorCmd(a.cursor.RequestNext)
		}
	case "up", "k":
		if a.row > 0 {
			a.row--
		}
	case "r":
		a.row = 0
		a.status = ""
		return a, a.cursorCmd(a.cursor.Reset)
	case "e":
		if a.snap.State == pager.StateError {
			return a, a.cursorCmd(a.cursor.Retry)
		}
	case "+", "=":
		return a, a.resizeCmd(a.snap.PageSize + pageSizeStep)
	case "-":
		return a, a.resizeCmd(a.snap.PageSize - pageSizeStep)
	case "s":
		if img, ok := a.selected(); ok && a.media != nil {
			a.status = "saving " + img.ID + "..."
			return a, a.saveCmd(img)
		}
	case "x":
		if img, ok := a.selected(); ok && a.media != nil {
			a.status = "sharing " + img.ID + "..."
			return a, a.shareCmd(img)
		}
	}
	return a, nil
}

// atEnd reports whether the selection is on the last loaded row.
func (a *App) atEnd() bool {
	return len(a.snap.Items) == 0 || a.row == len(a.snap.Items)-1
}

func (a *App) selected() (domain.ImageRecord, bool) {
	if a.row < 0 || a.row >= len(a.snap.Items) {
		return domain.ImageRecord{}, false
	}
	return a.snap.Items[a.row], true
}

// commands

func (a *App) cursorCmd(op func(context.Context) (bool, error)) tea.Cmd {
	a.snap.Loading = true
	return func() tea.Msg {
		fetched, _ := op(a.ctx)
		return snapshotMsg{snap: a.cursor.Snapshot(), fetched: fetched}
	}
}

func (a *App) resizeCmd(n int) tea.Cmd {
	n = min(max(n, 1), maxPageSize)
	a.row = 0
	return a.cursorCmd(func(ctx context.Context) (bool, error) {
		return a.cursor.SetPageSize(ctx, n)
	})
}

func (a *App) saveCmd(img domain.ImageRecord) tea.Cmd {
	return func() tea.Msg {
		saved, err := a.media.Save(a.ctx, img)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("saved %s (%dx%d %s) to %s", img.ID, saved.Width, saved.Height, saved.Format, saved.URL))
	}
}

func (a *App) shareCmd(img domain.ImageRecord) tea.Cmd {
	return func() tea.Msg {
		link, err := a.media.Share(a.ctx, img)
		if err != nil {
			return errMsg{err}
		}
		msg := "share link: " + link.URL
		if link.ExpiresAt != nil {
			msg += " (expires " + link.ExpiresAt.Format("2006-01-02 15:04") + ")"
		}
		return statusMsg(msg)
	}
}

// rendering

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Gallery · "+a.cursor.SourceID()) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("page %d  size %d  items %d  %s",
		a.snap.Page, a.snap.PageSize, len(a.snap.Items), a.stateLabel())) + "\n")

	if len(a.snap.Items) == 0 {
		b.WriteString("  (no images)\n")
	}
	start, end := a.window()
	for i := start; i < end; i++ {
		img := a.snap.Items[i]
		line := fmt.Sprintf("%4s  %-28s %5dx%-5d", img.ID, truncate(img.Author, 28), img.Width, img.Height)
		if i == a.row {
			b.WriteString(selectedStyle.Render("▶ "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if a.snap.Error != "" {
		b.WriteString(errorStyle.Render(a.snap.Error) + "  [e] Retry\n")
	}
	b.WriteString("[j/k] Move  [r] Refresh  [+/-] Page size  [s] Save  [x] Share  [q] Quit")
	if a.status != "" {
		b.WriteString("\n" + a.status)
	}
	return b.String()
}

func (a *App) stateLabel() string {
	if a.snap.Loading {
		return "loading..."
	}
	switch a.snap.State {
	case pager.StateExhausted:
		return "end of list"
	case pager.StateError:
		return "error"
	default:
		return ""
	}
}

// window returns the visible slice of rows, keeping the selection in view.
func (a *App) window() (int, int) {
	rows := max(a.height-chromeRows, 1)
	n := len(a.snap.Items)
	start := 0
	if a.row >= rows {
		start = a.row - rows + 1
	}
	return start, min(start+rows, n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
