package due

import (
	"strings"

	"cloud.google.com/go/civil"

	"github.com/teranos/batchwatch/calendar"
)

// Context is what an exception rule may look at.
type Context struct {
	Today    civil.Date
	Calendar calendar.Calendar
}

// Rule gates one job by name. A due entry for Job is kept only when Include
// returns true.
type Rule struct {
	Job     string
	Reason  string
	Include func(Context) bool
}

// Job names with calendar exceptions.
const (
	JobEnrollmentCSP   = "enrollment_csp"
	JobIPSTransactions = "ips_transactions"
	JobCMSCompReport   = "cms_comprpt_processing"
	JobACRADebtLoader  = "acra_debtloader"
	JobPayoutAllF      = "united_payout_all_f"
	JobPayoutAllR      = "united_payout_all_r"
)

// DefaultRules returns the exception table of the ICM batch.
func DefaultRules() Rules {
	return Rules{
		{
			Job:     JobEnrollmentCSP,
			Reason:  "holiday",
			Include: func(c Context) bool { return !c.Calendar.IsHoliday(c.Today) },
		},
		{
			Job:     JobIPSTransactions,
			Reason:  "runs only on the Monday after the 3rd Sunday",
			Include: func(c Context) bool { return c.Today == calendar.MondayAfterThirdSunday(c.Today) },
		},
		{
			Job:     JobCMSCompReport,
			Reason:  "runs only on the Wednesday after the 1st Saturday",
			Include: func(c Context) bool { return c.Today == calendar.WednesdayAfterFirstSaturday(c.Today) },
		},
		{
			Job:     JobACRADebtLoader,
			Reason:  "runs only on the Thursday before the 3rd Saturday",
			Include: func(c Context) bool { return c.Today == calendar.ThursdayBeforeThirdSaturday(c.Today) },
		},
		{
			Job:     JobPayoutAllF,
			Reason:  "not a pay-all-F date",
			Include: func(c Context) bool { return c.Calendar.IsPayAllF(c.Today) },
		},
		{
			Job:     JobPayoutAllR,
			Reason:  "pay-all-F date",
			Include: func(c Context) bool { return !c.Calendar.IsPayAllF(c.Today) },
		},
	}
}

// Rules is an exception table. Job names are matched case-insensitively.
type Rules []Rule

// Lookup returns the rule for a job name.
func (rs Rules) Lookup(jobName string) (Rule, bool) {
	for _, r := range rs {
		if strings.EqualFold(r.Job, jobName) {
			return r, true
		}
	}
	return Rule{}, false
}

// Include reports whether a job is kept on c.Today. When it is not, the
// returned rule says why.
func (rs Rules) Include(jobName string, c Context) (bool, Rule) {
	r, ok := rs.Lookup(jobName)
	if !ok || r.Include == nil {
		return true, Rule{}
	}
	return r.Include(c), r
}
