package ui

import (
	"fmt"
	"strings"

	"hostmon/internal/metrics"
	"hostmon/internal/snapshot"
	"hostmon/pkg/utils"
)

// Section builds one framed block of lines
type Section struct {
	Title string
	Width int
	lines []string
}

// NewSection starts a frame of SectionWidth
func NewSection(title string) *Section {
	return &Section{Title: title, Width: SectionWidth}
}

// KV appends a key/value line
func (s *Section) KV(key, value string) *Section {
	s.lines = append(s.lines, RenderKeyValue(key, value))
	return s
}

// Status appends a status line
func (s *Section) Status(kind, message string) *Section {
	s.lines = append(s.lines, RenderStatus(kind, message))
	return s
}

// Line appends a preformatted line
func (s *Section) Line(line string) *Section {
	s.lines = append(s.lines, line)
	return s
}

// String renders the frame
func (s *Section) String() string {
	var b strings.Builder
	b.WriteString(RenderSectionStart(s.Title, s.Width))
	b.WriteByte('\n')
	for _, l := range s.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(RenderSectionEnd(s.Width))
	b.WriteByte('\n')
	return b.String()
}

// SystemSection lists the static host facts
func SystemSection(snap *snapshot.Snapshot) *Section {
	return NewSection("System").
		KV("Hostname", snap.Hostname).
		KV("OS", snap.OSRelease).
		KV("Kernel", snap.KernelVersion).
		KV("CPU", snap.CPUInfo).
		KV("Frequency", snap.CPUFrequency).
		KV("Logged-in users", fmt.Sprintf("%d", snap.LoggedInUsers)).
		KV("Uptime", snap.UptimeOutput).
		KV("Time", snap.CurrentTime)
}

// ResourceSection shows utilization bars and memory sizes
func ResourceSection(snap *snapshot.Snapshot) *Section {
	bar := func(label string, pct float64) string {
		return fmt.Sprintf("  %-7s %s %s", label, RenderProgressBar(pct, 30), LevelStyle(pct).Render(utils.FormatPercentage(pct)))
	}
	return NewSection("Resources").
		Line(bar("CPU", snap.CPUUtilization)).
		Line(bar("Memory", snap.MemoryUtilization)).
		Line(bar("Swap", snap.SwapUtilization)).
		Line(bar("Disk", snap.DiskUtilization)).
		KV("Memory", fmt.Sprintf("%s used / %s total (%s available)",
			utils.FormatGB(snap.MemoryUsedGB), utils.FormatGB(snap.MemoryTotalGB), utils.FormatGB(snap.MemoryAvailableGB))).
		KV("Load", snap.LoadAvg).
		KV("Disk read", snap.DiskRead).
		KV("Disk write", snap.DiskWrite)
}

// NetworkSection shows throughput and the established connection count
func NetworkSection(snap *snapshot.Snapshot) *Section {
	return NewSection("Network").
		KV("Upload", utils.FormatKBps(snap.NetworkUtilization.Upload)).
		KV("Download", utils.FormatKBps(snap.NetworkUtilization.Download)).
		KV("Traffic", snap.NetworkInfo).
		KV("Established", fmt.Sprintf("%d", len(snap.NetworkConnectionsList)))
}

// ServiceSection renders a name → running map, sorted by name
func ServiceSection(title string, status map[string]bool) *Section {
	s := NewSection(title)
	if len(status) == 0 {
		return s.Status("warning", "No services reported")
	}
	for _, name := range utils.SortedKeys(status) {
		if status[name] {
			s.Line("  " + SuccessStyle.Render(IconUp) + " " + WhiteStyle.Render(name))
		} else {
			s.Line("  " + ErrorStyle.Render(IconDown) + " " + MutedStyle.Render(name))
		}
	}
	return s
}

// ProcessTable renders the process list as aligned columns
func ProcessTable(procs []metrics.ProcessInfo) string {
	if len(procs) == 0 {
		return RenderStatus("warning", "No process information available") + "\n"
	}
	var b strings.Builder
	b.WriteString("  " + BoldStyle.Render(fmt.Sprintf("%-8s %-28s %8s %8s", "PID", "NAME", "CPU%", "MEM%")) + "\n")
	b.WriteString("  " + BorderStyle.Render(strings.Repeat(boxHorizontal, 55)) + "\n")
	for _, p := range procs {
		b.WriteString(fmt.Sprintf("  %-8d %-28s %8.1f %8.1f\n",
			p.PID, utils.TruncateString(p.Name, 28), p.CPUPercent, p.MemoryPercent))
	}
	return b.String()
}

// ProcessSection frames ProcessTable
func ProcessSection(procs []metrics.ProcessInfo) *Section {
	s := NewSection(fmt.Sprintf("Top %d Processes", len(procs)))
	s.Width = TableWidth
	return s.Line(strings.TrimRight(ProcessTable(procs), "\n"))
}

// PackageSection lists each package's latest operation
func PackageSection(timelines []metrics.PackageTimeline) *Section {
	s := NewSection("Package History")
	s.Width = TableWidth
	if len(timelines) == 0 {
		return s.Status("info", "No package transactions recorded")
	}
	for _, tl := range timelines {
		s.KV(tl.Package, fmt.Sprintf("%s %s (%d events)", tl.LastEvent.Operation, utils.Ago(tl.LastEvent.Timestamp), tl.TotalEvents))
	}
	return s
}

// ExchangeSections renders the mail-server block, or nothing when absent
func ExchangeSections(snap *snapshot.Snapshot) []*Section {
	if snap.Extension == nil {
		return nil
	}
	logs := NewSection("Transport Logs").
		KV("Send lines", fmt.Sprintf("%d", len(snap.ExchangeLogs.SendLog))).
		KV("Receive lines", fmt.Sprintf("%d", len(snap.ExchangeLogs.ReceiveLog)))
	events := NewSection("Events").
		KV("Application errors/warnings", fmt.Sprintf("%d", len(snap.EventLogs))).
		KV("Successful logons", fmt.Sprintf("%d", len(snap.SecurityLogins)))
	for _, e := range snap.EventLogs {
		events.Line("  " + MutedStyle.Render(e.TimeGenerated) + " " + WhiteStyle.Render(e.SourceName) +
			GrayStyle.Render(fmt.Sprintf(" (%d)", e.EventID)))
	}
	return []*Section{ServiceSection("Exchange Services", snap.ExchangeServicesStatus), logs, events}
}

// RenderSnapshot renders every section of a snapshot
func RenderSnapshot(snap *snapshot.Snapshot) string {
	sections := []*Section{
		SystemSection(snap),
		ResourceSection(snap),
		NetworkSection(snap),
		ServiceSection("Services", snap.ServiceStatus),
		ProcessSection(snap.ProcessList),
	}
	sections = append(sections, ExchangeSections(snap)...)

	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.String())
	}
	return b.String()
}
