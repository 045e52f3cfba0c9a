package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dineshadepu/wrestler/internal/orchestrator"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/styles"
	"github.com/dineshadepu/wrestler/internal/util"
)

// recentLines is how many finished runs the live view keeps on screen.
const recentLines = 5

type planStartedMsg struct{ name string }

type phaseStartedMsg struct{ name, phase string }

type planDoneMsg struct {
	name   string
	line   string
	failed bool
}

type sweepDoneMsg struct{}

// progressModel is the live view shown while runs execute on a terminal:
// a spinner, a progress bar, the runs in flight and the latest results.
type progressModel struct {
	spinner  spinner.Model
	bar      progress.Model
	width    int
	total    int
	done     int
	failed   int
	active   []string
	phases   map[string]string
	recent   []string
	finished bool
}

func newProgressModel(total, width int) progressModel {
	return progressModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(styles.Header),
		),
		bar: progress.New(
			progress.WithGradient(string(styles.PrimaryColor), string(styles.SuccessColor)),
			progress.WithoutPercentage(),
			progress.WithWidth(min(40, max(10, width/3))),
		),
		width:  width,
		total:  total,
		phases: make(map[string]string),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case planStartedMsg:
		m.active = append(m.active, msg.name)
		m.phases[msg.name] = "provisioning"
	case phaseStartedMsg:
		m.phases[msg.name] = msg.phase
	case planDoneMsg:
		m.done++
		if msg.failed {
			m.failed++
		}
		m.active = slices.DeleteFunc(m.active, func(name string) bool { return name == msg.name })
		delete(m.phases, msg.name)
		m.recent = append(m.recent, msg.line)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
	case sweepDoneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	for _, line := range m.recent {
		b.WriteString(util.TruncateANSI(line, m.width))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s %d/%d runs", m.spinner.View(), m.bar.ViewAs(m.fraction()), m.done, m.total)
	if m.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", m.failed)
	}
	for _, name := range m.active {
		b.WriteString("\n")
		b.WriteString(util.TruncateANSI(fmt.Sprintf("  %s: %s", name, m.phases[name]), m.width))
	}
	return b.String()
}

func (m progressModel) fraction() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

// runWithProgress executes plans while a bubbletea program renders the
// live view on p's terminal. Once every plan finished the view is cleared
// and the status line of each executed run is printed.
func runWithProgress(ctx context.Context, p *styles.Printer, orch *orchestrator.Orchestrator, plans []*plan.RunPlan) (orchestrator.Summary, error) {
	prog := tea.NewProgram(
		newProgressModel(len(plans), p.Width()),
		tea.WithOutput(p.Writer()),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	orch.SetCallbacks(orchestrator.Callbacks{
		OnPlanStart: func(rp *plan.RunPlan) {
			prog.Send(planStartedMsg{name: rp.Name})
		},
		OnPhaseStart: func(rp *plan.RunPlan, phase, _ string) {
			prog.Send(phaseStartedMsg{name: rp.Name, phase: phase})
		},
		OnPlanComplete: func(res orchestrator.PlanResult) {
			prog.Send(planDoneMsg{
				name:   res.Plan.Name,
				line:   statusLine(p, res),
				failed: res.Status == orchestrator.StatusFailed,
			})
		},
	})

	uiErr := make(chan error, 1)
	go func() {
		_, err := prog.Run()
		uiErr <- err
	}()

	summary := orch.RunAll(ctx, plans)
	prog.Send(sweepDoneMsg{})
	err := <-uiErr

	w := p.Writer()
	for _, res := range summary.Results {
		if res.Status == orchestrator.StatusSkipped {
			continue
		}
		fmt.Fprintln(w, statusLine(p, res))
	}
	if err != nil {
		return summary, fmt.Errorf("progress display failed: %w", err)
	}
	return summary, nil
}
