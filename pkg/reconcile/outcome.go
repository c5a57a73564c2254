package reconcile

import (
	"errors"
	"fmt"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
)

// Action names a per-client decision as reported to callers
type Action string

const (
	ActionSkippedNoEmail Action = "skipped_no_email"
	ActionConflict       Action = "conflict"
	ActionError          Action = "error"
	ActionWouldLink      Action = "would_link"
	ActionLinked         Action = "linked"
	ActionWouldCreate    Action = "would_create"
	ActionCreated        Action = "created"
)

// Detail is the rendered form of one Outcome
type Detail struct {
	ClientID int64  `json:"clientId"`
	Action   Action `json:"action"`
	Reason   string `json:"reason"`
	UserID   string `json:"userId,omitempty"`
}

// Outcome is the decision taken for one orphan. The set of implementations is closed.
type Outcome interface {
	Client() int64
	Detail() Detail
	outcome()
}

// Skipped: the client has no usable email address
type Skipped struct {
	ClientID int64
	Email    string
}

// Linked: an unlinked account with the client's email exists
type Linked struct {
	ClientID  int64
	AccountID string
	DryRun    bool
}

// Created: no account matched, a new one is (or would be) provisioned.
// EmailErr is set when a requested notification failed.
type Created struct {
	ClientID       int64
	AccountID      string
	DryRun         bool
	EmailRequested bool
	EmailSent      bool
	EmailErr       error
}

// Conflicted: the matching account cannot be linked to this client
type Conflicted struct {
	ClientID  int64
	AccountID string
	// LinkedClientID is the client the account already belongs to; nil for an admin profile
	LinkedClientID *int64
	// Candidates is set when more than one account carries the email
	Candidates int
	// Claimed: an earlier client of the same run already took the email
	Claimed bool
}

// Failed: a mutation for this client returned an error
type Failed struct {
	ClientID  int64
	AccountID string
	Err       error
}

func (Skipped) outcome()    {}
func (Linked) outcome()     {}
func (Created) outcome()    {}
func (Conflicted) outcome() {}
func (Failed) outcome()     {}

func (o Skipped) Client() int64    { return o.ClientID }
func (o Linked) Client() int64     { return o.ClientID }
func (o Created) Client() int64    { return o.ClientID }
func (o Conflicted) Client() int64 { return o.ClientID }
func (o Failed) Client() int64     { return o.ClientID }

func (o Skipped) Detail() Detail {
	reason := "client has no email"
	if o.Email != "" {
		reason = fmt.Sprintf("invalid email %q", o.Email)
	}
	return Detail{ClientID: o.ClientID, Action: ActionSkippedNoEmail, Reason: reason}
}

func (o Linked) Detail() Detail {
	d := Detail{ClientID: o.ClientID, UserID: o.AccountID}
	if o.DryRun {
		d.Action = ActionWouldLink
		d.Reason = "existing account found, would link profile"
	} else {
		d.Action = ActionLinked
		d.Reason = "linked existing account"
	}
	return d
}

func (o Created) Detail() Detail {
	d := Detail{ClientID: o.ClientID, UserID: o.AccountID}
	if o.DryRun {
		d.Action = ActionWouldCreate
		d.Reason = "no account found, would create account and profile"
		if o.EmailRequested {
			d.Reason += "; would send credentials email"
		}
		return d
	}
	d.Action = ActionCreated
	d.Reason = "created account and profile"
	switch {
	case !o.EmailRequested:
	case o.EmailSent:
		d.Reason += "; credentials email sent"
	case o.EmailErr != nil:
		d.Reason += "; email failed: " + o.EmailErr.Error()
	}
	return d
}

func (o Conflicted) Detail() Detail {
	d := Detail{ClientID: o.ClientID, Action: ActionConflict, UserID: o.AccountID}
	switch {
	case o.Candidates > 1:
		d.Reason = fmt.Sprintf("email matches %d accounts", o.Candidates)
	case o.Claimed && o.AccountID == "":
		d.Reason = fmt.Sprintf("email already claimed by client %d in this run", *o.LinkedClientID)
	case o.LinkedClientID == nil:
		d.Reason = fmt.Sprintf("account %s already has a profile without a client", o.AccountID)
	default:
		d.Reason = fmt.Sprintf("account %s already linked to client %d", o.AccountID, *o.LinkedClientID)
	}
	return d
}

func (o Failed) Detail() Detail {
	d := Detail{ClientID: o.ClientID, Action: ActionError, Reason: o.Err.Error()}
	// an account whose rollback failed still exists and is reported
	var perr *access.ProvisionError
	if errors.As(o.Err, &perr) && perr.RollbackErr != nil {
		d.UserID = perr.AccountID
	} else if o.AccountID != "" {
		d.UserID = o.AccountID
	}
	return d
}

// Summary holds the aggregate counters of a run. Dry runs count what would happen.
type Summary struct {
	TotalOrphansFound int `json:"totalOrphansFound"`
	Processed         int `json:"processed"`
	CreatedProfiles   int `json:"createdProfiles"`
	LinkedProfiles    int `json:"linkedProfiles"`
	SkippedNoEmail    int `json:"skippedNoEmail"`
	Conflicts         int `json:"conflicts"`
	Errors            int `json:"errors"`
	EmailsSent        int `json:"emailsSent"`
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o := o.(type) {
	case Skipped:
		s.SkippedNoEmail++
	case Linked:
		s.LinkedProfiles++
	case Created:
		s.CreatedProfiles++
		if o.EmailSent {
			s.EmailsSent++
		}
	case Conflicted:
		s.Conflicts++
	case Failed:
		s.Errors++
	}
}

// Report is the result of one run
type Report struct {
	DryRun   bool
	Summary  Summary
	Outcomes []Outcome
}

// Details renders the outcomes in processing order
func (r *Report) Details() []Detail {
	details := make([]Detail, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		details = append(details, o.Detail())
	}
	return details
}

// Response is the JSON body returned to callers
type Response struct {
	Summary Summary  `json:"summary"`
	Details []Detail `json:"details"`
}

// Response renders the report for the wire
func (r *Report) Response() Response {
	return Response{Summary: r.Summary, Details: r.Details()}
}
