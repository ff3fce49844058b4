package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/pagemap"
	"smartcheck/internal/core/progress"
	"smartcheck/internal/core/service"
	"smartcheck/internal/core/splitting"
)

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func when(t models.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t.Time)
}

func (s Styles) batchStatus(st models.BatchStatus) string {
	switch st {
	case models.BatchProcessed:
		return s.Success.Render(string(st))
	case models.BatchError:
		return s.Error.Render(string(st))
	default:
		return s.Info.Render(string(st))
	}
}

// Batches lists document batches.
func Batches(batches []models.DocumentBatch) func(Styles) string {
	return func(s Styles) string {
		t := NewTable("Document batches", "ID", "NAME", "UPLOADED", "BY", "PAGES", "DEALS", "STATUS", "PROGRESS")
		for _, b := range batches {
			t.AddRow(id(b.ID), b.Name, when(b.UploadTime), b.UploadedBy,
				strconv.Itoa(b.TotalPages), strconv.Itoa(b.DealsDetected),
				s.batchStatus(b.Status), fmt.Sprintf("%d%%", b.ProcessProgress))
		}
		return t.View(s)
	}
}

// Batch shows one batch with its page map.
func Batch(b models.DocumentBatch) func(Styles) string {
	return func(s Styles) string {
		var sb strings.Builder
		sb.WriteString(s.Title.Render(b.Name))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "ID:        %d\n", b.ID)
		fmt.Fprintf(&sb, "Status:    %s (%d%%)\n", s.batchStatus(b.Status), b.ProcessProgress)
		fmt.Fprintf(&sb, "Uploaded:  %s by %s\n", when(b.UploadTime), b.UploadedBy)
		fmt.Fprintf(&sb, "Pages:     %d\n", b.TotalPages)
		fmt.Fprintf(&sb, "Deals:     %d\n", b.DealsDetected)
		if b.FileSize > 0 {
			fmt.Fprintf(&sb, "Size:      %s\n", humanize.Bytes(uint64(b.FileSize)))
		}
		if len(b.PageMap) > 0 {
			sb.WriteString("\n")
			t := NewTable("Page map", "PAGES", "DEAL", "TYPE", "STATUS")
			for _, item := range b.PageMap {
				t.AddRow(item.Range, item.DealID, item.Type, s.validity(item.Status))
			}
			sb.WriteString(t.View(s))
		}
		return sb.String()
	}
}

func (s Styles) validity(v models.Validity) string {
	switch v {
	case models.ValidityValid:
		return s.Success.Render(string(v))
	case models.ValidityError:
		return s.Error.Render(string(v))
	default:
		return s.Muted.Render(string(v))
	}
}

func amount(v float64, currency string) string {
	return strings.TrimSpace(humanize.CommafWithDigits(v, 2) + " " + currency)
}

// Deals lists the deals of a batch.
func Deals(deals []models.Deal) func(Styles) string {
	return func(s Styles) string {
		t := NewTable("Deals", "ID", "DEAL", "PAGES", "CUSTOMER", "SYSTEM", "EXTRACTED", "SCORE", "STATUS")
		for _, d := range deals {
			pages := d.Pages
			if pages == "" && d.StartPage > 0 {
				pages = pagemap.FormatSpan(d.StartPage, d.EndPage)
			}
			customer := d.CustomerName
			if customer == "" {
				customer = d.Customer
			}
			status := string(d.Status)
			switch d.Status {
			case models.DealMismatch:
				status = s.Error.Render(status)
			case models.DealReview:
				status = s.Warning.Render(status)
			case models.DealMatched, models.DealProcessed:
				status = s.Success.Render(status)
			}
			t.AddRow(id(d.ID), d.DealID, pages, customer,
				amount(d.AmountSystem, d.Currency), amount(d.AmountExtract, d.Currency),
				fmt.Sprintf("%.0f%%", d.Score), status)
		}
		return t.View(s)
	}
}

// Users lists operator accounts.
func Users(users []models.User) func(Styles) string {
	return func(s Styles) string {
		t := NewTable("Users", "ID", "USERNAME", "EMAIL", "NAME", "ROLE", "STATUS")
		for _, u := range users {
			name := u.FullName
			if name == "" {
				name = strings.TrimSpace(u.FirstName + " " + u.LastName)
			}
			status := string(u.Status)
			if u.Status == models.UserInactive {
				status = s.Muted.Render(status)
			}
			t.AddRow(id(u.ID), u.Username, u.Email, name, string(u.Role), status)
		}
		return t.View(s)
	}
}

// UploadResults summarizes an upload run.
func UploadResults(results []service.UploadResult) func(Styles) string {
	return func(s Styles) string {
		t := NewTable("Uploads", "FILE", "SIZE", "BATCH", "RESULT")
		for _, r := range results {
			size := "-"
			if r.File.Size > 0 {
				size = humanize.Bytes(uint64(r.File.Size))
			}
			switch {
			case r.Err != nil:
				t.AddRow(r.File.Name, size, "-", s.Error.Render(r.Err.Error()))
			case r.Skipped:
				t.AddRow(r.File.Name, size, id(r.Previous.BatchID), s.Muted.Render("already uploaded"))
			default:
				t.AddRow(r.File.Name, size, id(r.Batch.ID), s.Success.Render("uploaded"))
			}
		}
		return t.View(s)
	}
}

// Checklist renders the stage list of a job: finished stages are ticked, the
// current one is highlighted.
func Checklist(stages progress.Stages, job progress.Job, s Styles) string {
	current := stages.Index(job.Progress)
	parts := make([]string, 0, len(stages))
	for i, st := range stages {
		switch {
		case job.Status == models.BatchProcessed || i < current:
			parts = append(parts, s.Success.Render("✓ "+st.Name))
		case i == current && job.Status == models.BatchError:
			parts = append(parts, s.Error.Render("✗ "+st.Name))
		case i == current:
			parts = append(parts, s.Info.Render("› "+st.Name))
		default:
			parts = append(parts, s.Muted.Render("· "+st.Name))
		}
	}
	return strings.Join(parts, "  ")
}

// Board renders every job with a progress bar and its stage checklist.
type Board struct {
	stages progress.Stages
	bar    bar.Model
}

func NewBoard(stages progress.Stages, width int) *Board {
	if width <= 0 {
		width = 30
	}
	return &Board{
		stages: stages,
		bar:    bar.New(bar.WithDefaultGradient(), bar.WithWidth(width)),
	}
}

func (b *Board) View(jobs []progress.Job, s Styles) string {
	if len(jobs) == 0 {
		return s.Muted.Render("no batches") + "\n"
	}
	var sb strings.Builder
	for _, job := range jobs {
		label := fmt.Sprintf("#%d %s", job.ID, job.Name)
		state := s.batchStatus(job.Status)
		if !job.Confirmed && job.Status == models.BatchProcessing {
			state = s.Muted.Render("waiting for server")
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, s.Bold.Render(label), "  ", state))
		sb.WriteString("\n")
		sb.WriteString(b.bar.ViewAs(float64(job.Progress) / 100))
		sb.WriteString("\n")
		sb.WriteString(Checklist(b.stages, job, s))
		sb.WriteString("\n")
		if job.Reason != "" {
			sb.WriteString(s.Error.Render(job.Reason))
			sb.WriteString("\n")
		}
		if !job.StartedAt.IsZero() {
			sb.WriteString(s.Muted.Render("started " + humanize.RelTime(job.StartedAt, time.Now(), "ago", "from now")))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Review lists the exceptions of a batch after its deals.
func Review(r service.Review) func(Styles) string {
	return func(s Styles) string {
		var sb strings.Builder
		sb.WriteString(Deals(r.Deals)(s))
		sb.WriteString("\n")
		t := NewTable(fmt.Sprintf("%d exceptions need manual handling", len(r.Exceptions)), "SEVERITY", "TYPE", "DESCRIPTION", "SOURCE")
		for _, e := range r.Exceptions {
			sev := string(e.Severity)
			switch e.Severity {
			case service.SeverityHigh:
				sev = s.Error.Render(sev)
			case service.SeverityMedium:
				sev = s.Warning.Render(sev)
			default:
				sev = s.Muted.Render(sev)
			}
			t.AddRow(sev, e.Kind, e.Description, e.Source)
		}
		sb.WriteString(t.View(s))
		return sb.String()
	}
}

func Summary(sum service.Summary) func(Styles) string {
	return func(s Styles) string {
		t := NewTable("Overview", "METRIC", "VALUE")
		t.AddRow("Batches", humanize.Comma(int64(sum.Batches)))
		t.AddRow("Processing", humanize.Comma(int64(sum.Processing)))
		t.AddRow("Processed", humanize.Comma(int64(sum.Processed)))
		t.AddRow("Failed", humanize.Comma(int64(sum.Failed)))
		t.AddRow("Pages", humanize.Comma(int64(sum.TotalPages)))
		t.AddRow("Deals detected", humanize.Comma(int64(sum.DealsDetected)))
		t.AddRow("Orphan pages", humanize.Comma(int64(sum.OrphanPages)))
		return t.View(s)
	}
}

// Editor shows the visible pages of a grouping draft, the selection and the
// groups with their sizes.
func Editor(ed *splitting.Editor) func(Styles) string {
	return func(s Styles) string {
		var sb strings.Builder
		title := "Pages"
		if f := ed.Filter(); f != "" {
			title = fmt.Sprintf("Pages of %s", f)
		}
		t := NewTable(title, "", "PAGE", "DEAL", "TYPE", "STATUS")
		for _, u := range ed.Visible() {
			mark := ""
			if ed.IsSelected(u.Index) {
				mark = s.Info.Render("*")
			}
			t.AddRow(mark, strconv.Itoa(u.Index), u.GroupID, u.Category, s.validity(u.Validity))
		}
		sb.WriteString(t.View(s))

		groups := ed.Groups()
		sb.WriteString("\n")
		g := NewTable("Deals", "DEAL", "PAGES")
		for _, gid := range groups {
			g.AddRow(gid, strconv.Itoa(ed.GroupSize(gid)))
		}
		if n := ed.GroupSize(models.Unassigned); n > 0 {
			g.AddRow(s.Muted.Render(models.Unassigned), strconv.Itoa(n))
		}
		sb.WriteString(g.View(s))

		if sel := ed.Selection(); len(sel) > 0 {
			sb.WriteString("\n")
			sb.WriteString(s.Info.Render(fmt.Sprintf("%d selected: %s", len(sel), spans(sel))))
			sb.WriteString("\n")
		}
		return sb.String()
	}
}

// spans renders sorted page numbers compactly, e.g. "1-3, 7".
func spans(pages []int) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		parts = append(parts, pagemap.FormatSpan(pages[i], pages[j]))
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
