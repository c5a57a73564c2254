package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/identity"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// ErrNotifierUnavailable is reported when an email was requested but no notifier is configured
var ErrNotifierUnavailable = errors.New("access: no notifier configured")

// AccountAdmin creates and deletes identity-provider accounts
type AccountAdmin interface {
	CreateAccount(ctx context.Context, req identity.CreateAccountRequest) (*identity.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// ProfileWriter persists access profiles
type ProfileWriter interface {
	InsertProfile(ctx context.Context, profile *models.Profile) error
}

// Notifier delivers temporary credentials
type Notifier interface {
	SendCredentials(ctx context.Context, to, name, temporaryPassword string) error
}

// Recorder observes credential emails
type Recorder interface {
	RecordEmail(err error)
}

// Result describes a successful Create
type Result struct {
	AccountID string
	EmailSent bool
	// EmailErr is set when a requested notification failed. The account stays provisioned.
	EmailErr error
}

// Stage of Create that failed
type Stage string

const (
	StagePassword Stage = "generate password"
	StageAccount  Stage = "create account"
	StageProfile  Stage = "insert profile"
)

// ProvisionError reports a failed Create. Err is the original failure; when the account
// had already been created, RollbackErr carries the outcome of deleting it again.
type ProvisionError struct {
	Stage       Stage
	AccountID   string
	Err         error
	RollbackErr error
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Err)
	if e.AccountID == "" {
		return msg
	}
	if e.RollbackErr != nil {
		return fmt.Sprintf("%s (rollback of account %s failed: %v)", msg, e.AccountID, e.RollbackErr)
	}
	return fmt.Sprintf("%s (account %s rolled back)", msg, e.AccountID)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner grants portal access to clients
type Provisioner struct {
	accounts AccountAdmin
	profiles ProfileWriter
	notifier Notifier
	recorder Recorder
	generate func() (string, error)
	logger   *observability.Logger
}

// Option configures a Provisioner
type Option func(*Provisioner)

// WithNotifier enables credential emails
func WithNotifier(n Notifier) Option {
	return func(p *Provisioner) { p.notifier = n }
}

// WithRecorder reports notification attempts
func WithRecorder(r Recorder) Option {
	return func(p *Provisioner) { p.recorder = r }
}

// WithPasswordGenerator replaces GenerateTemporaryPassword
func WithPasswordGenerator(gen func() (string, error)) Option {
	return func(p *Provisioner) { p.generate = gen }
}

// NewProvisioner creates a provisioner
func NewProvisioner(accounts AccountAdmin, profiles ProfileWriter, logger *observability.Logger, opts ...Option) *Provisioner {
	p := &Provisioner{
		accounts: accounts,
		profiles: profiles,
		generate: GenerateTemporaryPassword,
		logger:   logger.WithComponent("access"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Link attaches an existing account to a client. No credential is issued.
func (p *Provisioner) Link(ctx context.Context, clientID int64, accountID string) error {
	if err := p.profiles.InsertProfile(ctx, models.NewClientProfile(accountID, clientID)); err != nil {
		return fmt.Errorf("failed to link account %s to client %d: %w", accountID, clientID, err)
	}
	p.logger.WithFields(map[string]interface{}{
		"client_id":  clientID,
		"account_id": accountID,
	}).Info("Linked existing account")
	return nil
}

// Create provisions a new account for client and links it. If the profile cannot be
// written the account is deleted again; the returned *ProvisionError keeps the original
// error either way. With sendEmail set the temporary password is emailed afterwards, and
// a delivery failure is reported in Result.EmailErr without undoing anything.
func (p *Provisioner) Create(ctx context.Context, client *models.Client, sendEmail bool) (*Result, error) {
	email := models.NormalizeEmail(client.Email)
	log := p.logger.WithField("client_id", client.ID)

	password, err := p.generate()
	if err != nil {
		return nil, &ProvisionError{Stage: StagePassword, Err: err}
	}

	account, err := p.accounts.CreateAccount(ctx, identity.CreateAccountRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{
			"client_id": strconv.FormatInt(client.ID, 10),
			"name":      client.Name,
		},
	})
	if err != nil {
		return nil, &ProvisionError{Stage: StageAccount, Err: err}
	}

	if err := p.profiles.InsertProfile(ctx, models.NewClientProfile(account.ID, client.ID)); err != nil {
		perr := &ProvisionError{Stage: StageProfile, AccountID: account.ID, Err: err}
		// rollback runs even when ctx is already cancelled
		rollbackCtx := context.WithoutCancel(ctx)
		if rbErr := p.accounts.DeleteAccount(rollbackCtx, account.ID); rbErr != nil {
			perr.RollbackErr = rbErr
			log.WithError(rbErr).WithField("account_id", account.ID).Error("Rollback of created account failed")
		} else {
			log.WithField("account_id", account.ID).Warn("Rolled back created account")
		}
		return nil, perr
	}

	result := &Result{AccountID: account.ID}
	log = log.WithField("account_id", account.ID)
	log.Info("Provisioned new account")

	if !sendEmail {
		return result, nil
	}

	if p.notifier == nil {
		result.EmailErr = ErrNotifierUnavailable
	} else {
		result.EmailErr = p.notifier.SendCredentials(ctx, email, client.Name, password)
	}
	if p.recorder != nil {
		p.recorder.RecordEmail(result.EmailErr)
	}

	if result.EmailErr != nil {
		log.WithError(result.EmailErr).Warn("Credential email failed")
	} else {
		result.EmailSent = true
	}
	return result, nil
}
