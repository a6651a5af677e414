package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/isdelr/datathon-cli/internal/api"
	"github.com/isdelr/datathon-cli/internal/history"
	"github.com/isdelr/datathon-cli/internal/models"
	"github.com/isdelr/datathon-cli/internal/validate"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
)

const resetTimeFormat = "Jan 2, 2006 at 3:04 PM"

// Renderer writes the human-readable views. Color is applied only when the
// destination is a terminal and NO_COLOR is unset.
type Renderer struct {
	w     io.Writer
	color bool
}

// New creates a Renderer for w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, color: isTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

// Percent formats a 0..1 fraction the way the dashboard does: two decimal
// places, e.g. 0.87 renders as "87.00%".
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// RateLimitMessage renders a 429 into the retry notice shown to the user,
// with the reset time in the local timezone.
func RateLimitMessage(e *api.RateLimitError) string {
	if e.NextReset.IsZero() {
		return e.Error()
	}
	return fmt.Sprintf("Daily submission limit reached. You can submit again at %s.",
		e.NextReset.Local().Format(resetTimeFormat))
}

// Leaderboard prints the ranked entries in server order, marking the
// current user's row.
func (r *Renderer) Leaderboard(entries []models.LeaderboardEntry, currentUserID string) {
	if len(entries) == 0 {
		fmt.Fprintln(r.w, "The leaderboard is empty.")
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tITEM ACCURACY\tSUBMITTED")
	for i, e := range entries {
		user := e.UserID
		if currentUserID != "" && e.UserID == currentUserID {
			user += " (you)"
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%s", i+1, user, Percent(e.ItemAccuracy),
			e.Timestamp.Local().Format("2006-01-02 15:04"))
		if currentUserID != "" && e.UserID == currentUserID {
			line = r.paint(ansiBold+ansiCyan, line)
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

// Scores prints the user's stats block followed by the per-submission
// score history.
func (r *Renderer) Scores(resp *models.ScoresResponse) {
	r.Stats(resp.Stats)
	if len(resp.Scores) == 0 {
		fmt.Fprintln(r.w, "\nNo scored submissions yet.")
		return
	}
	fmt.Fprintln(r.w)
	tw := tabwriter.NewWriter(r.w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tITEM\tBRAND\tL0\tL1\tL2\tL3\tL4")
	for _, s := range resp.Scores {
		acc := s.Accuracy()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Timestamp.Local().Format("2006-01-02 15:04"),
			Percent(acc),
			optPercent(s.BrandAccuracy),
			optPercent(s.L0Accuracy),
			optPercent(s.L1Accuracy),
			optPercent(s.L2Accuracy),
			optPercent(s.L3Accuracy),
			optPercent(s.L4Accuracy))
	}
	tw.Flush()
}

// Dashboard renders whichever score panels arrived. When both are present
// the dedicated quota endpoint's numbers win for the remaining-submissions
// lines; when the score history is missing only the quota snapshot shows.
func (r *Renderer) Dashboard(scores *models.ScoresResponse, quota *models.RemainingSubmissions) {
	if scores == nil {
		if quota != nil {
			r.Quota(quota)
		}
		return
	}
	resp := *scores
	if quota != nil {
		resp.Stats.SubmissionsRemaining = quota.SubmissionsRemaining
		resp.Stats.MaxDailySubmissions = quota.MaxDailySubmissions
		resp.Stats.NextReset = quota.NextReset
	}
	r.Scores(&resp)
}

// Stats prints the submission-activity summary.
func (r *Renderer) Stats(stats models.UserStats) {
	fmt.Fprintf(r.w, "Best accuracy:       %s\n", Percent(stats.BestF1))
	fmt.Fprintf(r.w, "Total submissions:   %d\n", stats.TotalSubmissions)
	fmt.Fprintf(r.w, "Uploads today:       %d\n", stats.UploadsToday)
	fmt.Fprintf(r.w, "Remaining today:     %d of %d\n", stats.SubmissionsRemaining, stats.MaxDailySubmissions)
	if !stats.NextReset.IsZero() {
		fmt.Fprintf(r.w, "Quota resets:        %s\n", stats.NextReset.Local().Format(resetTimeFormat))
	}
}

// UploadResult prints the scored-submission summary.
func (r *Renderer) UploadResult(res *models.UploadResult) {
	fmt.Fprintln(r.w, r.paint(ansiBold, "Submission scored"))
	fmt.Fprintf(r.w, "  Item accuracy:  %s\n", Percent(res.ItemAccuracy))
	if res.BrandAccuracy != nil {
		fmt.Fprintf(r.w, "  Brand accuracy: %s\n", Percent(*res.BrandAccuracy))
	}
	for i, p := range []*float64{res.L0Accuracy, res.L1Accuracy, res.L2Accuracy, res.L3Accuracy, res.L4Accuracy} {
		if p != nil {
			fmt.Fprintf(r.w, "  L%d accuracy:    %s\n", i, Percent(*p))
		}
	}
	if !res.Timestamp.IsZero() {
		fmt.Fprintf(r.w, "  Scored at:      %s\n", res.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(r.w, "  Submissions remaining today: %d\n", res.SubmissionsRemaining)
}

// Quota prints the quota snapshot.
func (r *Renderer) Quota(q *models.RemainingSubmissions) {
	fmt.Fprintf(r.w, "Submissions remaining: %d of %d\n", q.SubmissionsRemaining, q.MaxDailySubmissions)
	if !q.NextReset.IsZero() {
		fmt.Fprintf(r.w, "Quota resets:          %s\n", q.NextReset.Local().Format(resetTimeFormat))
	}
}

// Preview prints the first lines of a file about to be submitted, with any
// validation warnings.
func (r *Renderer) Preview(rep *validate.Report) {
	fmt.Fprintf(r.w, "%s (%s)\n", rep.Name, humanize.IBytes(uint64(rep.Size)))
	for _, line := range rep.Preview {
		fmt.Fprintln(r.w, "  "+line)
	}
	for _, warning := range rep.Warnings {
		fmt.Fprintln(r.w, r.paint(ansiYellow, "warning: "+warning))
	}
}

// History prints the locally recorded submissions, newest first.
func (r *Renderer) History(recs []history.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(r.w, "No submissions recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tFILE\tSIZE\tITEM ACCURACY\tLEFT")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.FileName,
			humanize.IBytes(uint64(rec.FileSize)),
			Percent(rec.ItemAccuracy),
			strconv.Itoa(rec.SubmissionsRemaining))
	}
	tw.Flush()
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func optPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return Percent(*p)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
