package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/discog/internal/tasks"
)

const (
	updateBuffer = 64
	albumLogSize = 8
	maxBarWidth  = 60
)

// Job is a reconciliation run driven by the progress view.
type Job func(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]*tasks.Result, error)

// Model renders the progress of one [Job].
type Model struct {
	title     string
	job       Job
	ctx       context.Context
	cancel    context.CancelFunc
	updates   chan tasks.ProgressUpdate
	finished  chan struct{}
	out       outcome
	spinner   spinner.Model
	bar       progress.Model
	help      help.Model
	keys      keyMap
	current   tasks.ProgressUpdate
	albums    []string
	showLog   bool
	done      bool
	cancelled bool
	results   []*tasks.Result
	err       error
}

// NewModel creates a progress view for job. The job receives a context cancelled when the user quits.
func NewModel(ctx context.Context, title string, job Job) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		title:    title,
		job:      job,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan tasks.ProgressUpdate, updateBuffer),
		finished: make(chan struct{}),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title)),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		help:     help.New(),
		keys:     newKeyMap(),
		showLog:  true,
	}
}

// Init starts the spinner and waits on the job started by [Model.Start].
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForCompletion(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.cancelled = true
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.albums):
			m.showLog = !m.showLog
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case Msg:
		return m.handle(msg)
	}

	return m, nil
}

func (m *Model) handle(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.current = update
		if update.Phase == tasks.SyncAlbums {
			m.albums = append(m.albums, update.Message)
			if len(m.albums) > albumLogSize {
				m.albums = m.albums[len(m.albums)-albumLogSize:]
			}
		}

		cmds := []tea.Cmd{m.waitForProgress()}
		if update.Total > 0 {
			cmds = append(cmds, m.bar.SetPercent(float64(update.Step)/float64(update.Total)))
		}
		return m, tea.Batch(cmds...)

	case MsgRunComplete:
		out := msg.data.(outcome)
		m.done = true
		m.results = out.results
		m.err = out.err
		return m, tea.Quit
	}

	return m, nil
}

// Start runs the job in the background. The update channel is closed when it returns.
func (m *Model) Start() {
	go func() {
		r, err := m.job(m.ctx, m.updates)
		m.out = outcome{results: r, err: err}
		close(m.updates)
		close(m.finished)
	}()
}

// Wait blocks until the job has returned.
func (m *Model) Wait() ([]*tasks.Result, error) {
	<-m.finished
	return m.out.results, m.out.err
}

func (m *Model) waitForCompletion() tea.Cmd {
	return func() tea.Msg {
		results, err := m.Wait()
		return runCompleteMsg(results, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return progressClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

// View renders the running job. The final frame is empty so the caller can print results itself.
func (m *Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(Title(m.title))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), phaseLabel(m.current.Phase))
	if m.current.Message != "" && (m.showLog || m.current.Phase != tasks.SyncAlbums) {
		fmt.Fprintf(&b, "  %s\n", Muted(m.current.Message))
	}
	if m.current.Total > 1 {
		fmt.Fprintf(&b, "\n  %s\n", m.bar.View())
	}
	if m.showLog && len(m.albums) > 0 {
		b.WriteString("\n")
		for _, label := range m.albums {
			fmt.Fprintf(&b, "  • %s\n", label)
		}
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func phaseLabel(p tasks.Phase) string {
	switch p {
	case tasks.ResolvePlaylist:
		return "Resolving playlist"
	case tasks.LoadTracks:
		return "Reading playlist tracks"
	case tasks.FollowArtist:
		return "Updating followed artists"
	case tasks.FetchAlbums:
		return "Fetching albums"
	case tasks.SyncAlbums:
		return "Syncing albums"
	case tasks.Rollover:
		return "Rolling over"
	case tasks.Verify:
		return "Verifying"
	case tasks.Complete:
		return "Done"
	default:
		return "Starting"
	}
}

// RunProgress runs job behind a progress view written to w and returns what the job returned.
//
// Quitting the view cancels the job's context; RunProgress still waits for the job to return.
func RunProgress(ctx context.Context, w io.Writer, title string, job Job, opts ...tea.ProgramOption) ([]*tasks.Result, error) {
	m := NewModel(ctx, title, job)
	defer m.cancel()
	m.Start()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(w)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && !m.cancelled {
		m.cancel()
		m.Wait()
		return nil, fmt.Errorf("progress view failed: %w", err)
	}

	return m.Wait()
}
