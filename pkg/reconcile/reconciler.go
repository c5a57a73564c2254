package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/identity"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// DefaultLimit is the batch size used when Options.Limit is not positive
const DefaultLimit = 20

// Directory lists identity-provider accounts
type Directory interface {
	ListAllAccounts(ctx context.Context) ([]identity.Account, error)
}

// Store reads clients and access profiles
type Store interface {
	ListClients(ctx context.Context) ([]*models.Client, error)
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
}

// Provisioner applies link and create decisions
type Provisioner interface {
	Link(ctx context.Context, clientID int64, accountID string) error
	Create(ctx context.Context, client *models.Client, sendEmail bool) (*access.Result, error)
}

// Recorder observes runs
type Recorder interface {
	RecordReconcileRun(dryRun bool, d time.Duration, err error)
	RecordReconcileOutcome(action string)
}

// Options of a single run
type Options struct {
	DryRun     bool
	Limit      int
	SendEmails bool
}

// DefaultOptions is a dry run over the default batch size without emails
func DefaultOptions() Options {
	return Options{DryRun: true, Limit: DefaultLimit}
}

// SetupError reports that the input sets could not be loaded; no client was processed
type SetupError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Reconciler finds clients without an access profile and resolves them
type Reconciler struct {
	directory   Directory
	store       Store
	provisioner Provisioner
	recorder    Recorder
	logger      *observability.Logger
}

// NewReconciler creates a reconciler. recorder may be nil.
func NewReconciler(directory Directory, store Store, provisioner Provisioner, recorder Recorder, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		directory:   directory,
		store:       store,
		provisioner: provisioner,
		recorder:    recorder,
		logger:      logger.WithComponent("reconcile"),
	}
}

// snapshot is the immutable view a pass works on
type snapshot struct {
	orphans []*models.Client
	// accounts by normalized email; more than one entry means the email is ambiguous
	byEmail map[string][]identity.Account
	// profile by account id
	profiles map[string]*models.Profile
}

// Run processes up to opts.Limit orphans in (created_at, id) order. Only a failure to
// load the input sets is returned as an error; per-client failures are Failed outcomes.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	start := time.Now()
	log := r.logger.WithFields(map[string]interface{}{
		"dry_run":     opts.DryRun,
		"limit":       opts.Limit,
		"send_emails": opts.SendEmails,
	})
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		log = log.WithField("request_id", requestID)
	}

	snap, err := r.load(ctx)
	if err != nil {
		log.WithError(err).Error("Reconciliation setup failed")
		r.recordRun(opts.DryRun, time.Since(start), err)
		return nil, err
	}

	report := &Report{
		DryRun:   opts.DryRun,
		Summary:  Summary{TotalOrphansFound: len(snap.orphans)},
		Outcomes: make([]Outcome, 0, min(opts.Limit, len(snap.orphans))),
	}

	batch := snap.orphans
	if len(batch) > opts.Limit {
		batch = batch[:opts.Limit]
	}

	claims := make(map[string]claim, len(batch))
	for _, client := range batch {
		outcome := r.resolve(ctx, snap, claims, client, opts)
		report.Outcomes = append(report.Outcomes, outcome)
		report.Summary.add(outcome)

		detail := outcome.Detail()
		if r.recorder != nil {
			r.recorder.RecordReconcileOutcome(string(detail.Action))
		}
		entry := log.WithFields(map[string]interface{}{
			"client_id": detail.ClientID,
			"action":    detail.Action,
		})
		if detail.Action == ActionError {
			entry.Warn(detail.Reason)
		} else {
			entry.Debug(detail.Reason)
		}
	}

	r.recordRun(opts.DryRun, time.Since(start), nil)
	s := report.Summary
	log.WithFields(map[string]interface{}{
		"orphans":   s.TotalOrphansFound,
		"processed": s.Processed,
		"created":   s.CreatedProfiles,
		"linked":    s.LinkedProfiles,
		"skipped":   s.SkippedNoEmail,
		"conflicts": s.Conflicts,
		"errors":    s.Errors,
		"emails":    s.EmailsSent,
	}).Info("Reconciliation finished")

	return report, nil
}

func (r *Reconciler) recordRun(dryRun bool, d time.Duration, err error) {
	if r.recorder != nil {
		r.recorder.RecordReconcileRun(dryRun, d, err)
	}
}

// load fetches the three input sets concurrently and indexes them
func (r *Reconciler) load(ctx context.Context) (*snapshot, error) {
	var (
		clients  []*models.Client
		profiles []*models.Profile
		accounts []identity.Account
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if clients, err = r.store.ListClients(gctx); err != nil {
			return &SetupError{Source: "clients", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if profiles, err = r.store.ListProfiles(gctx); err != nil {
			return &SetupError{Source: "profiles", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if accounts, err = r.directory.ListAllAccounts(gctx); err != nil {
			return &SetupError{Source: "accounts", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildSnapshot(clients, profiles, accounts), nil
}

func buildSnapshot(clients []*models.Client, profiles []*models.Profile, accounts []identity.Account) *snapshot {
	snap := &snapshot{
		byEmail:  make(map[string][]identity.Account, len(accounts)),
		profiles: make(map[string]*models.Profile, len(profiles)),
	}

	linkedClients := make(map[int64]struct{}, len(profiles))
	for _, p := range profiles {
		snap.profiles[p.ID] = p
		if p.ClientID != nil {
			linkedClients[*p.ClientID] = struct{}{}
		}
	}

	for _, a := range accounts {
		email := models.NormalizeEmail(a.Email)
		if email == "" {
			continue
		}
		snap.byEmail[email] = append(snap.byEmail[email], a)
	}

	for _, c := range clients {
		if _, ok := linkedClients[c.ID]; !ok {
			snap.orphans = append(snap.orphans, c)
		}
	}
	sort.SliceStable(snap.orphans, func(i, j int) bool {
		a, b := snap.orphans[i], snap.orphans[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return snap
}

// claim records that an earlier orphan of the same pass took an email
type claim struct {
	clientID  int64
	accountID string
}

// resolve decides and, outside dry runs, applies the outcome for one orphan.
// Linked and Created outcomes claim the email so later orphans of the pass
// with the same address conflict in both modes.
func (r *Reconciler) resolve(ctx context.Context, snap *snapshot, claims map[string]claim, client *models.Client, opts Options) Outcome {
	if !client.HasEligibleEmail() {
		return Skipped{ClientID: client.ID, Email: client.Email}
	}

	email := models.NormalizeEmail(client.Email)
	if c, ok := claims[email]; ok {
		owner := c.clientID
		return Conflicted{ClientID: client.ID, AccountID: c.accountID, LinkedClientID: &owner, Claimed: true}
	}

	outcome := r.decide(ctx, snap, client, email, opts)
	switch o := outcome.(type) {
	case Linked:
		claims[email] = claim{clientID: o.ClientID, accountID: o.AccountID}
	case Created:
		claims[email] = claim{clientID: o.ClientID, accountID: o.AccountID}
	}
	return outcome
}

func (r *Reconciler) decide(ctx context.Context, snap *snapshot, client *models.Client, email string, opts Options) Outcome {
	matches := snap.byEmail[email]
	switch {
	case len(matches) > 1:
		return Conflicted{ClientID: client.ID, Candidates: len(matches)}

	case len(matches) == 1:
		account := matches[0]
		if p, linked := snap.profiles[account.ID]; linked {
			return Conflicted{ClientID: client.ID, AccountID: account.ID, LinkedClientID: p.ClientID}
		}
		if opts.DryRun {
			return Linked{ClientID: client.ID, AccountID: account.ID, DryRun: true}
		}
		if err := r.provisioner.Link(ctx, client.ID, account.ID); err != nil {
			return Failed{ClientID: client.ID, AccountID: account.ID, Err: err}
		}
		return Linked{ClientID: client.ID, AccountID: account.ID}
	}

	if opts.DryRun {
		return Created{ClientID: client.ID, DryRun: true, EmailRequested: opts.SendEmails}
	}
	result, err := r.provisioner.Create(ctx, client, opts.SendEmails)
	if err != nil {
		return Failed{ClientID: client.ID, Err: err}
	}
	return Created{
		ClientID:       client.ID,
		AccountID:      result.AccountID,
		EmailRequested: opts.SendEmails,
		EmailSent:      result.EmailSent,
		EmailErr:       result.EmailErr,
	}
}
