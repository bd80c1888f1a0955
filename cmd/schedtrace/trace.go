package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wippyai/wit-async/loopback"
	"github.com/wippyai/wit-async/resource"
	"github.com/wippyai/wit-async/task"
)

// traceLine is one step of a scenario, from the host or the scheduler's
// task table.
type traceLine struct {
	source string
	op     string
	detail string
	handle uint32
	aux    uint32
	seq    int
}

type recorder struct {
	lines []traceLine
}

func (r *recorder) add(l traceLine) {
	l.seq = len(r.lines) + 1
	r.lines = append(r.lines, l)
}

func (r *recorder) hostEvent(ev loopback.TraceEvent) {
	r.add(traceLine{source: "host", op: ev.Op, detail: ev.Detail, handle: ev.Handle, aux: ev.Aux})
}

func (r *recorder) OnResourceEvent(ev resource.Event) {
	r.add(traceLine{source: "task", op: ev.Type.String(), handle: uint32(ev.Handle)})
}

// result is everything one scenario run produced.
type result struct {
	err       error
	name      string
	output    string
	lines     []traceLine
	hostStats loopback.Stats
	taskStats task.Stats
}

var (
	hostStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	taskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	seqStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

func (l traceLine) format(color bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s", l.op)
	if l.handle != 0 {
		fmt.Fprintf(&b, " h=%-3d", l.handle)
	}
	if l.aux != 0 {
		fmt.Fprintf(&b, " aux=%d", l.aux)
	}
	if l.detail != "" {
		b.WriteString(" ")
		b.WriteString(l.detail)
	}
	seq := fmt.Sprintf("%4d", l.seq)
	src := fmt.Sprintf("%-4s", l.source)
	if !color {
		return seq + " " + src + " " + b.String()
	}
	style := hostStyle
	if l.source == "task" {
		style = taskStyle
	}
	return seqStyle.Render(seq) + " " + style.Render(src) + " " + b.String()
}

func (r result) header(color bool) string {
	title := "scenario " + r.name
	if color {
		return headerStyle.Render(title)
	}
	return "== " + title + " =="
}

func (r result) summary(color bool) string {
	var b strings.Builder
	if r.err != nil {
		msg := "error: " + r.err.Error()
		if color {
			msg = errorStyle.Render(msg)
		}
		b.WriteString(msg)
	} else {
		msg := "result: " + r.output
		if color {
			msg = okStyle.Render(msg)
		}
		b.WriteString(msg)
	}
	fmt.Fprintf(&b, "\nhost: exports=%d callbacks=%d waits=%d yields=%d jobs=%d drops=%d live=%d",
		r.hostStats.Exports, r.hostStats.Callbacks, r.hostStats.Waits, r.hostStats.Yields,
		r.hostStats.Jobs, r.hostStats.SubtaskDrops, r.hostStats.Live)
	fmt.Fprintf(&b, "\nscheduler: polls=%d callbacks=%d yields=%d waits=%d tasks=%d",
		r.taskStats.Polls, r.taskStats.Callbacks, r.taskStats.Yields, r.taskStats.Waits, r.taskStats.Tasks)
	return b.String()
}

func (r result) render(color bool) string {
	var b strings.Builder
	b.WriteString(r.header(color))
	b.WriteString("\n")
	for _, l := range r.lines {
		b.WriteString(l.format(color))
		b.WriteString("\n")
	}
	b.WriteString(r.summary(color))
	b.WriteString("\n")
	return b.String()
}
