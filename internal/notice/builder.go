// Package notice composes and manages DMCA takedown notices built from
// scoring results and user-submitted reports.
package notice

import (
	"fmt"
	"strings"
	"time"

	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/timecode"
)

const (
	goodFaithDeclaration = "I have a good faith belief that use of the material in the manner " +
		"complained of is not authorized by the copyright owner, its agent, or the law."

	accuracyDeclaration = "The information in this notification is accurate, and under penalty " +
		"of perjury, I am authorized to act on behalf of the owner of an exclusive right that " +
		"is allegedly infringed."
)

// BuildBody renders the notice letter for a report, folding in the matched
// intervals and aggregate percentage when a completed scoring result for
// the reported video exists.
func BuildBody(report *models.NoticeReport, result *models.Result, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DMCA TAKEDOWN NOTICE\n")
	fmt.Fprintf(&b, "Date: %s\n\n", now.UTC().Format("2006-01-02"))

	fmt.Fprintf(&b, "To whom it may concern:\n\n")
	fmt.Fprintf(&b, "This is a notification of copyright infringement. The video identified "+
		"below reproduces copyrighted material without authorization.\n\n")

	fmt.Fprintf(&b, "Infringing video: %s\n", report.VideoID)
	fmt.Fprintf(&b, "Location: %s\n\n", report.VideoURL)

	fmt.Fprintf(&b, "Description of the infringing material:\n%s\n\n", report.InfringingContent)

	if result != nil && result.Status == models.ResultStatusCompleted {
		fmt.Fprintf(&b, "Automated similarity analysis matched %.2f%% of the video against "+
			"the protected work. Matched segments:\n", result.Percentage)
		if len(result.Intervals) == 0 {
			fmt.Fprintf(&b, "  (no individual segments recorded)\n")
		}
		for _, iv := range result.Intervals {
			fmt.Fprintf(&b, "  %s\n", timecode.FormatInterval(iv))
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "Description of the original copyrighted work:\n%s\n\n", report.OriginalContent)

	if len(report.ProofReferences) > 0 {
		fmt.Fprintf(&b, "Supporting documentation: %s\n\n", strings.Join(report.ProofReferences, ", "))
	}

	fmt.Fprintf(&b, "%s\n\n", goodFaithDeclaration)
	fmt.Fprintf(&b, "%s\n\n", accuracyDeclaration)

	fmt.Fprintf(&b, "Signed,\n[submitter: %s]\n", report.UserID)

	return b.String()
}
