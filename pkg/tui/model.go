// Package tui is the interactive terminal front end for the daily flow.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/calendar"
	"github.com/codeGROOVE-dev/morningglow/pkg/client"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
	"github.com/codeGROOVE-dev/morningglow/pkg/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("223")).
			Bold(true).
			MarginTop(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("71")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	feedbackStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("180")).
			Padding(0, 1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)
)

// analyzedMsg carries the outcome of an analysis started from Capturing.
type analyzedMsg struct {
	result analysis.Result
	err    error
}

// Model is the Bubble Tea model.
type Model struct {
	ctx          context.Context
	machine      *session.Machine
	analyzer     session.Analyzer
	err          error
	nickname     string
	input        textinput.Model
	spinner      spinner.Model
	bar          progress.Model
	cursor       int
	confirmReset bool
	showShare    bool
	quitting     bool
}

// New creates a Model. The machine should already be loaded.
func New(ctx context.Context, machine *session.Machine, analyzer session.Analyzer, nickname string) Model {
	ti := textinput.New()
	ti.Placeholder = "~/Pictures/bed.jpg"
	ti.CharLimit = 1024
	ti.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	bar := progress.New(
		progress.WithGradient("#fdba74", "#22c55e"),
		progress.WithWidth(30),
	)

	return Model{
		ctx:      ctx,
		machine:  machine,
		analyzer: analyzer,
		nickname: nickname,
		input:    ti,
		spinner:  sp,
		bar:      bar,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		m.err = nil
		switch m.machine.State().Phase {
		case session.Home:
			return m.updateHome(msg)
		case session.Capturing:
			return m.updateCapture(msg)
		case session.Analyzing:
			return m, nil
		case session.RoutineCheck:
			return m.updateRoutines(msg)
		case session.Summary:
			return m.updateSummary(msg)
		}

	case analyzedMsg:
		m.err = m.machine.Complete(m.ctx, msg.result, msg.err)
		m.cursor = 0
		if m.machine.State().Phase == session.Capturing {
			return m, m.input.Focus()
		}
		return m, nil

	case spinner.TickMsg:
		if m.machine.State().Phase != session.Analyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.confirmReset {
		m.confirmReset = false
		m.err = m.machine.ResetAll(m.ctx, key == "y" || key == "Y")
		return m, nil
	}
	switch key {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter", "s":
		m.err = m.machine.Start(m.ctx)
		m.showShare = false
		if m.machine.State().Phase == session.Capturing {
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	case "r":
		m.err = m.machine.ResetToday(m.ctx)
	case "X":
		m.confirmReset = true
	}
	return m, nil
}

func (m Model) updateCapture(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.err = m.machine.ReturnHome(m.ctx)
		return m, nil
	case "ctrl+x":
		m.input.SetValue("")
		m.err = m.machine.ClearImage(m.ctx)
		return m, nil
	case "enter":
		if path := strings.TrimSpace(m.input.Value()); path != "" {
			image, err := client.EncodeFile(expandHome(path))
			if err != nil {
				m.err = err
				return m, nil
			}
			if err := m.machine.SelectImage(m.ctx, image); err != nil {
				m.err = err
				return m, nil
			}
		}
		image, err := m.machine.Submit(m.ctx)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.input.Blur()
		return m, tea.Batch(m.spinner.Tick, m.analyze(image))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) analyze(image string) tea.Cmd {
	ctx, analyzer := m.ctx, m.analyzer
	return func() tea.Msg {
		result := analyzer.Analyze(ctx, image)
		return analyzedMsg{result: result, err: ctx.Err()}
	}
}

func (m Model) updateRoutines(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.machine.Catalog().Items()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case " ", "x":
		if m.cursor < len(items) {
			m.err = m.machine.Toggle(m.ctx, items[m.cursor].ID)
		}
	case "enter":
		m.err = m.machine.Finish(m.ctx)
	case "esc":
		m.err = m.machine.ReturnHome(m.ctx)
	}
	return m, nil
}

func (m Model) updateSummary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c":
		m.showShare = !m.showShare
	case "enter", "esc", "h":
		m.showShare = false
		m.err = m.machine.ReturnHome(m.ctx)
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	s := m.machine.State()
	switch s.Phase {
	case session.Home:
		body = m.viewHome(s)
	case session.Capturing:
		body = m.viewCapture(s)
	case session.Analyzing:
		body = m.spinner.View() + " AI가 침대 상태를 분석하고 있어요..."
	case session.RoutineCheck:
		body = m.viewRoutines(s)
	case session.Summary:
		body = m.viewSummary(s)
	}

	if s.Notice != "" {
		body += "\n\n" + noticeStyle.Render("⚠ "+s.Notice)
	}
	if m.err != nil && !errors.Is(m.err, session.ErrNotConfirmed) {
		body += "\n\n" + noticeStyle.Render("⚠ "+m.err.Error())
	}

	header := titleStyle.Render("☀ Morning Glow")
	return containerStyle.Render(header+"\n"+body) + "\n"
}

func (m Model) viewHome(s session.State) string {
	var b strings.Builder
	today := m.machine.Today()
	_, done := s.History.Find(today)

	b.WriteString(fmt.Sprintf("🔥 %s\n\n", valueStyle.Render(fmt.Sprintf("%d일 연속", s.Streak))))
	b.WriteString(calendar.Render(calendar.Current(s.History, m.machine.Now()), today))
	b.WriteString("\n")
	if done {
		b.WriteString(doneStyle.Render("오늘 완료! 내일도 함께해요") + "\n")
	} else {
		b.WriteString(sectionStyle.Render("오늘의 시작") + " " + dimStyle.Render("침대 정리부터 시작해봐요") + "\n")
	}

	if m.confirmReset {
		b.WriteString("\n" + noticeStyle.Render("모든 기록을 삭제할까요? (y/N)"))
		return b.String()
	}

	start := "오늘 루틴 시작하기"
	if done {
		start = "오늘 결과 다시보기"
	}
	b.WriteString("\n" + footer([][2]string{{"enter", start}, {"r", "오늘 다시 시작하기"}, {"X", "전체 초기화"}, {"q", "종료"}}))
	return b.String()
}

func (m Model) viewCapture(s session.State) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("침대 정리 인증") + "\n\n")
	b.WriteString("사진 경로: " + m.input.View() + "\n")
	if s.Image != "" {
		b.WriteString(doneStyle.Render("✓ 사진이 준비되었습니다") + " " + dimStyle.Render("(경로를 비워두고 enter로 다시 분석)") + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("안심하세요! 사진은 AI 분석에만 사용되며, 서버에 저장되거나 외부에 공유되지 않습니다.") + "\n")
	b.WriteString("\n" + footer([][2]string{{"enter", "분석하기"}, {"ctrl+x", "사진 지우기"}, {"esc", "처음으로"}}))
	return b.String()
}

func (m Model) viewRoutines(s session.State) string {
	var b strings.Builder
	if s.Result != nil {
		base := s.Result.Base()
		b.WriteString(fmt.Sprintf("침대 점수 %s\n", valueStyle.Render(fmt.Sprintf("%d점", base.Score))))
		b.WriteString(m.breakdown(s.Result))
	}

	b.WriteString(sectionStyle.Render("모닝 루틴 체크") + "\n")
	for i, it := range m.machine.Catalog().Items() {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		check := "[ ]"
		if s.IsCompleted(it.ID) {
			check = doneStyle.Render("[x]")
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", cursor, check, record.Icon(it.Icon), it.Label))
	}
	b.WriteString("\n" + footer([][2]string{{"space", "체크"}, {"enter", "완료"}, {"esc", "처음으로"}}))
	return b.String()
}

func (m Model) viewSummary(s session.State) string {
	var b strings.Builder
	total := m.machine.Catalog().Len()
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(len(s.Completed)) / float64(total) * 100))
	}

	score := 0
	feedback := ""
	if s.Result != nil {
		score = s.Result.Base().Score
		feedback = s.Result.Base().Feedback
	}
	b.WriteString(sectionStyle.Render("오늘의 아침 리포트") + "\n")
	b.WriteString(fmt.Sprintf("침대 점수 %s   루틴 %s %s\n",
		valueStyle.Render(fmt.Sprintf("%d점", score)),
		valueStyle.Render(fmt.Sprintf("%d%%", pct)),
		dimStyle.Render(fmt.Sprintf("(%d / %d)", len(s.Completed), total))))
	b.WriteString(fmt.Sprintf("🔥 %d일 연속\n", s.Streak))
	if s.Result != nil {
		b.WriteString(m.breakdown(s.Result))
	}
	if feedback != "" {
		b.WriteString(feedbackStyle.Render(fmt.Sprintf("%q", feedback)) + "\n")
	}

	if m.showShare {
		card := m.machine.ShareCard(m.nickname)
		data, err := json.MarshalIndent(card, "", "  ")
		if err == nil {
			b.WriteString(sectionStyle.Render("커뮤니티 공유") + "\n" + string(data) + "\n")
		}
	}
	b.WriteString("\n" + footer([][2]string{{"c", "공유 카드"}, {"enter", "홈으로"}, {"q", "종료"}}))
	return b.String()
}

func (m Model) breakdown(r analysis.Result) string {
	d, ok := analysis.AsDetailed(r)
	if !ok {
		return dimStyle.Render("세부 분석 정보가 없습니다") + "\n"
	}
	var b strings.Builder
	rows := []struct {
		label string
		value int
	}{
		{"정돈 상태", d.Neatness},
		{"모서리 정리", d.Corners},
		{"베개 정리", d.Pillows},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%-8s %s %3d%%\n", row.label, m.bar.ViewAs(float64(row.value)/100), row.value))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("AI 신뢰도 %d%%", int(math.Round(d.Confidence*100)))) + "\n")
	return b.String()
}

func footer(keys [][2]string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render("["+k[0]+"]")+" "+dimStyle.Render(k[1]))
	}
	return strings.Join(parts, "  ")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, machine *session.Machine, analyzer session.Analyzer, nickname string) error {
	_, err := tea.NewProgram(New(ctx, machine, analyzer, nickname), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
