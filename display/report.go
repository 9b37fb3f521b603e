package display

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/hollandm/slurmherd/batch"
	"github.com/hollandm/slurmherd/scheduler"
)

// RenderReport prints a completed run report as a table with a summary line
func RenderReport(report *batch.RunReport) {
	pterm.DefaultHeader.WithFullWidth().Printf("Run %s", report.RunID)
	pterm.Println()
	pterm.Info.Printf("Spec directory: %s", report.SpecDir)
	pterm.Println()

	if len(report.Results) == 0 {
		pterm.Info.Println("No job specs found")
	} else {
		table := pterm.TableData{{"#", "Spec", "Status", "Job ID", "Detail"}}
		for _, res := range report.Results {
			table = append(table, []string{
				fmt.Sprintf("%d", res.Seq+1),
				res.SpecName,
				colorStatus(res.Status),
				res.JobID,
				res.Error,
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	}

	if len(report.ParseSkips) > 0 {
		pterm.Println()
		pterm.Warning.Printf("Skipped %d unparseable file(s):", len(report.ParseSkips))
		pterm.Println()
		for _, skip := range report.ParseSkips {
			pterm.Printf("  %s: %s\n", skip.Path, skip.Reason)
		}
	}

	pterm.Println()
	renderCounts(report.Counts(), report.StartedAt, report.CompletedAt)
}

// RenderRunSummary prints a stored run summary
func RenderRunSummary(run *batch.RunSummary, results []batch.SubmissionResult) {
	pterm.DefaultHeader.WithFullWidth().Printf("Run %s", run.RunID)
	pterm.Println()
	pterm.Info.Printf("Spec directory: %s", run.SpecDir)
	pterm.Println()
	pterm.Info.Printf("State: %s", run.State)
	pterm.Println()

	if len(results) > 0 {
		table := pterm.TableData{{"#", "Spec", "Status", "Job ID", "Detail"}}
		for _, res := range results {
			table = append(table, []string{
				fmt.Sprintf("%d", res.Seq+1),
				res.SpecName,
				colorStatus(res.Status),
				res.JobID,
				res.Error,
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	}

	pterm.Println()
	counts := batch.Counts{
		Total:     run.SpecsTotal,
		Submitted: run.Submitted,
		Failed:    run.Failed,
		Skipped:   run.Skipped,
	}
	renderCounts(counts, orZero(run.StartedAt), run.CompletedAt)
}

// RenderRunList prints stored runs newest first
func RenderRunList(runs []*batch.RunSummary) {
	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded")
		return
	}

	table := pterm.TableData{{"Run", "Created", "State", "Total", "Submitted", "Failed", "Skipped"}}
	for _, run := range runs {
		table = append(table, []string{
			shortID(run.RunID),
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			string(run.State),
			fmt.Sprintf("%d", run.SpecsTotal),
			fmt.Sprintf("%d", run.Submitted),
			fmt.Sprintf("%d", run.Failed),
			fmt.Sprintf("%d", run.Skipped),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

// JobStatusRow pairs a submission with its live scheduler state
type JobStatusRow struct {
	Result batch.SubmissionResult `json:"result"`
	State  scheduler.JobState     `json:"state"`
}

// RenderJobStatus prints live scheduler states for a run's jobs
func RenderJobStatus(rows []JobStatusRow) {
	if len(rows) == 0 {
		pterm.Info.Println("No submitted jobs to query")
		return
	}

	table := pterm.TableData{{"Spec", "Job ID", "State"}}
	for _, row := range rows {
		table = append(table, []string{
			row.Result.SpecName,
			row.Result.JobID,
			colorJobState(row.State),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

// Progress prints a one-line progress update during a run
func Progress(p batch.Progress) {
	switch p.Result.Status {
	case batch.StatusSubmitted:
		pterm.Success.Printf("[%d/%d] %s submitted as job %s\n",
			p.Done, p.Total, p.Result.SpecName, p.Result.JobID)
	case batch.StatusFailed:
		pterm.Error.Printf("[%d/%d] %s failed: %s\n",
			p.Done, p.Total, p.Result.SpecName, p.Result.Error)
	case batch.StatusSkipped:
		pterm.Warning.Printf("[%d/%d] %s skipped\n",
			p.Done, p.Total, p.Result.SpecName)
	}
}

func renderCounts(counts batch.Counts, startedAt time.Time, completedAt *time.Time) {
	line := fmt.Sprintf("%d specs: %s submitted, %s failed, %s skipped",
		counts.Total,
		pterm.Green(fmt.Sprintf("%d", counts.Submitted)),
		pterm.Red(fmt.Sprintf("%d", counts.Failed)),
		pterm.Yellow(fmt.Sprintf("%d", counts.Skipped)))

	if completedAt != nil && !startedAt.IsZero() {
		line += fmt.Sprintf(" in %s", completedAt.Sub(startedAt).Round(time.Millisecond))
	}

	if counts.Failed > 0 {
		pterm.Warning.Println(line)
	} else {
		pterm.Success.Println(line)
	}
}

func colorStatus(status batch.SubmissionStatus) string {
	switch status {
	case batch.StatusSubmitted:
		return pterm.Green(string(status))
	case batch.StatusFailed:
		return pterm.Red(string(status))
	case batch.StatusSkipped:
		return pterm.Yellow(string(status))
	}
	return string(status)
}

func colorJobState(state scheduler.JobState) string {
	switch state {
	case scheduler.StateRunning:
		return pterm.Green(string(state))
	case scheduler.StatePending:
		return pterm.Yellow(string(state))
	case scheduler.StateFailed, scheduler.StateCancelled:
		return pterm.Red(string(state))
	}
	return string(state)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
