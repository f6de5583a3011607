// Package provisioning creates accounts for invited people.
//
// Two flows share the same rules:
//
//   - CreateInvitedUser: an inviter creates the account directly. The
//     identity gets a random temporary password, the profile is written
//     and an invite is recorded already accepted.
//   - CreateInviteLink / AcceptInvite: the inviter sends a link; the
//     invitee sets a password and the invite is accepted then.
//
// Writes run in order identity, profile, invite. When a later step fails,
// earlier steps are undone. An identity left behind by a crash between
// steps is picked up again by the next attempt for the same email.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/notify"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/secrets"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultInviteTTL is how long an invite link stays valid.
const DefaultInviteTTL = 7 * 24 * time.Hour

var (
	ErrInvalidEmail      = errors.New("a valid email is required")
	ErrDomainNotAllowed  = errors.New("email domain is not allowed")
	ErrNotAllowed        = errors.New("inviter may not grant these roles")
	ErrAlreadyRegistered = errors.New("a user with this email already exists")
	ErrInviteNotFound    = errors.New("invite not found")
	ErrInviteUsed        = errors.New("invite already accepted")
	ErrInviteExpired     = errors.New("invite expired")
)

// IdentityProvider issues and removes sign-in identities.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string, temporary bool) (string, error)
	FindIdentity(ctx context.Context, email string) (string, bool, error)
	SetPassword(ctx context.Context, id, password string, temporary bool) error
	DeleteIdentity(ctx context.Context, id string) error
}

// Profiles stores user profiles.
type Profiles interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Invites stores invite records.
type Invites interface {
	Create(ctx context.Context, inv models.Invite) (models.Invite, error)
	// GetByToken returns invitestore.ErrNotFound for an unknown token.
	GetByToken(ctx context.Context, token string) (models.Invite, error)
	MarkAccepted(ctx context.Context, id primitive.ObjectID, uid string, at time.Time) error
}

// Options configures a Service.
type Options struct {
	// AllowedDomains restricts invitee emails. Empty allows any domain.
	AllowedDomains []string
	InviteTTL      time.Duration
	// AcceptURL builds the link sent to the invitee from the token.
	AcceptURL func(token string) string
	Notifier  notify.Notifier
}

// Service runs the provisioning flows.
type Service struct {
	ids      IdentityProvider
	profiles Profiles
	invites  Invites
	opt      Options
	now      func() time.Time
	password func() (string, error)
	token    func() (string, error)
}

// New builds a Service.
func New(ids IdentityProvider, profiles Profiles, invites Invites, opt Options) *Service {
	if opt.InviteTTL <= 0 {
		opt.InviteTTL = DefaultInviteTTL
	}
	if opt.AcceptURL == nil {
		opt.AcceptURL = func(token string) string { return "/invites/accept/" + token }
	}
	if opt.Notifier == nil {
		opt.Notifier = notify.Discard{}
	}
	for i, d := range opt.AllowedDomains {
		opt.AllowedDomains[i] = normalize.Email(d)
	}
	return &Service{
		ids:      ids,
		profiles: profiles,
		invites:  invites,
		opt:      opt,
		now:      func() time.Time { return time.Now().UTC() },
		password: secrets.TempPassword,
		token:    secrets.Token,
	}
}

// Request describes who to provision and who is asking.
type Request struct {
	Email     string
	Roles     []string
	RegionID  *primitive.ObjectID
	ChurchID  *primitive.ObjectID
	Phone     string
	Inviter   roles.Subject
	InviterID string
}

// Result is the outcome of a successful provisioning.
type Result struct {
	UID          string             `json:"uid"`
	Email        string             `json:"email"`
	TempPassword string             `json:"temp_password,omitempty"`
	InviteID     primitive.ObjectID `json:"invite_id"`
}

// validate checks the request and returns the normalized email and roles.
func (s *Service) validate(ctx context.Context, req Request) (string, []roles.Role, error) {
	email := normalize.Email(req.Email)
	if !inputval.IsValidEmail(email) {
		return "", nil, ErrInvalidEmail
	}
	if !s.DomainAllowed(email) {
		return "", nil, ErrDomainNotAllowed
	}
	rs, err := roles.Normalize(req.Roles)
	if err != nil {
		return "", nil, err
	}
	if !roles.CanInvite(req.Inviter, rs...) {
		return "", nil, ErrNotAllowed
	}
	exists, err := s.profiles.EmailExists(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return "", nil, ErrAlreadyRegistered
	}
	return email, rs, nil
}

// DomainAllowed reports whether email passes the domain allow-list.
func (s *Service) DomainAllowed(email string) bool {
	if len(s.opt.AllowedDomains) == 0 {
		return true
	}
	return slices.Contains(s.opt.AllowedDomains, normalize.EmailDomain(email))
}

// identityFor creates an identity for email, or takes over one left
// without a profile by an earlier attempt. The returned bool reports
// whether the identity was created here (and so may be deleted on failure).
func (s *Service) identityFor(ctx context.Context, email, password string, temporary bool) (string, bool, error) {
	if id, found, err := s.ids.FindIdentity(ctx, email); err != nil {
		return "", false, fmt.Errorf("find identity: %w", err)
	} else if found {
		if err := s.ids.SetPassword(ctx, id, password, temporary); err != nil {
			return "", false, fmt.Errorf("reset identity: %w", err)
		}
		return id, false, nil
	}
	id, err := s.ids.CreateIdentity(ctx, email, password, temporary)
	if err != nil {
		return "", false, fmt.Errorf("create identity: %w", err)
	}
	return id, true, nil
}

// undoIdentity removes an identity this attempt created. A reused one is
// kept so the next attempt can resume from it.
func (s *Service) undoIdentity(ctx context.Context, id string, created bool, cause error) error {
	if !created {
		return cause
	}
	if err := s.ids.DeleteIdentity(ctx, id); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback identity %s: %w", id, err))
	}
	return cause
}

// CreateInvitedUser provisions an account directly: identity with a
// temporary password, profile, and an invite recorded as accepted at its
// creation time.
func (s *Service) CreateInvitedUser(ctx context.Context, req Request) (Result, error) {
	email, rs, err := s.validate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	tmp, err := s.password()
	if err != nil {
		return Result{}, err
	}
	uid, created, err := s.identityFor(ctx, email, tmp, true)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.profiles.Create(ctx, models.User{
		ID:       uid,
		Email:    email,
		Roles:    roles.Strings(rs),
		RegionID: req.RegionID,
		Phone:    req.Phone,
		Status:   status.Active,
	}); err != nil {
		return Result{}, s.undoIdentity(ctx, uid, created, fmt.Errorf("create profile: %w", err))
	}

	now := s.now()
	inv, err := s.invites.Create(ctx, models.Invite{
		Email:         email,
		Roles:         roles.Strings(rs),
		RegionID:      req.RegionID,
		ChurchID:      req.ChurchID,
		Phone:         req.Phone,
		CreatedBy:     req.InviterID,
		CreatedAt:     now,
		AcceptedAt:    &now,
		AcceptedByUID: uid,
	})
	if err != nil {
		cause := fmt.Errorf("create invite: %w", err)
		if _, derr := s.profiles.Delete(ctx, uid); derr != nil {
			cause = errors.Join(cause, fmt.Errorf("rollback profile %s: %w", uid, derr))
		}
		return Result{}, s.undoIdentity(ctx, uid, created, cause)
	}

	return Result{UID: uid, Email: email, TempPassword: tmp, InviteID: inv.ID}, nil
}

// CreateInviteLink records a pending invite with a fresh token.
func (s *Service) CreateInviteLink(ctx context.Context, req Request) (models.Invite, error) {
	email, rs, err := s.validate(ctx, req)
	if err != nil {
		return models.Invite{}, err
	}
	tok, err := s.token()
	if err != nil {
		return models.Invite{}, err
	}
	now := s.now()
	exp := now.Add(s.opt.InviteTTL)
	return s.invites.Create(ctx, models.Invite{
		Email:     email,
		Roles:     roles.Strings(rs),
		RegionID:  req.RegionID,
		ChurchID:  req.ChurchID,
		Phone:     req.Phone,
		CreatedBy: req.InviterID,
		CreatedAt: now,
		Token:     tok,
		ExpiresAt: &exp,
	})
}

// VerifyInvite returns the pending, unexpired invite for token.
func (s *Service) VerifyInvite(ctx context.Context, token string) (models.Invite, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if errors.Is(err, invitestore.ErrNotFound) {
		return models.Invite{}, ErrInviteNotFound
	}
	if err != nil {
		return models.Invite{}, fmt.Errorf("load invite: %w", err)
	}
	if !inv.Pending() {
		return models.Invite{}, ErrInviteUsed
	}
	if inv.Expired(s.now()) {
		return models.Invite{}, ErrInviteExpired
	}
	return inv, nil
}

// AcceptRequest is what the invitee submits.
type AcceptRequest struct {
	Password    string
	DisplayName string
	Phone       string
}

// AcceptInvite redeems a link invite: identity with the chosen password,
// profile with the invite's roles and region, then the invite is marked
// accepted. Losing a race to accept the same invite undoes the account.
func (s *Service) AcceptInvite(ctx context.Context, token string, req AcceptRequest) (Result, error) {
	inv, err := s.VerifyInvite(ctx, token)
	if err != nil {
		return Result{}, err
	}
	exists, err := s.profiles.EmailExists(ctx, inv.Email)
	if err != nil {
		return Result{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return Result{}, ErrAlreadyRegistered
	}

	uid, created, err := s.identityFor(ctx, inv.Email, req.Password, false)
	if err != nil {
		return Result{}, err
	}

	phone := req.Phone
	if phone == "" {
		phone = inv.Phone
	}
	rs := inv.Roles
	if len(rs) == 0 && inv.Role != "" {
		rs = []string{inv.Role}
	}
	if _, err := s.profiles.Create(ctx, models.User{
		ID:          uid,
		Email:       inv.Email,
		DisplayName: req.DisplayName,
		Phone:       phone,
		Roles:       rs,
		RegionID:    inv.RegionID,
		ChurchID:    inv.ChurchID,
		Status:      status.Active,
	}); err != nil {
		return Result{}, s.undoIdentity(ctx, uid, created, fmt.Errorf("create profile: %w", err))
	}

	if err := s.invites.MarkAccepted(ctx, inv.ID, uid, s.now()); err != nil {
		cause := fmt.Errorf("accept invite: %w", err)
		if _, derr := s.profiles.Delete(ctx, uid); derr != nil {
			cause = errors.Join(cause, fmt.Errorf("rollback profile %s: %w", uid, derr))
		}
		return Result{}, s.undoIdentity(ctx, uid, created, cause)
	}
	return Result{UID: uid, Email: inv.Email, InviteID: inv.ID}, nil
}

// NotifyInvite hands the invite to the notifier. Delivery happens later;
// only a failure to enqueue is reported.
func (s *Service) NotifyInvite(ctx context.Context, inv models.Invite, inviterName string, sendEmail, sendWhatsApp bool) error {
	rs, _ := roles.Normalize(inv.Roles)
	n := notify.InviteNotice{
		InviteID:     inv.ID.Hex(),
		Email:        inv.Email,
		Phone:        inv.Phone,
		InviterName:  inviterName,
		RoleName:     roles.FormatDisplay(rs),
		SendEmail:    sendEmail,
		SendWhatsApp: sendWhatsApp,
	}
	if inv.Token != "" {
		n.Link = s.opt.AcceptURL(inv.Token)
		n.ExpiresIn = humanDays(s.opt.InviteTTL)
	}
	return s.opt.Notifier.NotifyInvite(ctx, n)
}

// NewToken issues a fresh token and expiry for resending a pending invite.
func (s *Service) NewToken() (token string, expiresAt time.Time, err error) {
	token, err = s.token()
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().Add(s.opt.InviteTTL), nil
}

// Link returns the accept URL for a pending invite's token.
func (s *Service) Link(token string) string { return s.opt.AcceptURL(token) }

func humanDays(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 dia"
	}
	if days < 1 {
		return fmt.Sprintf("%d horas", int(d.Hours()))
	}
	return fmt.Sprintf("%d dias", days)
}

// Outcome classifies err for metrics: "ok", "rejected" for a rule the
// request broke, or "failed".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrDomainNotAllowed),
		errors.Is(err, ErrNotAllowed), errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrInviteNotFound), errors.Is(err, ErrInviteUsed),
		errors.Is(err, ErrInviteExpired),
		errors.Is(err, roles.ErrNoRoles), errors.Is(err, roles.ErrUnknownRole):
		return "rejected"
	}
	return "failed"
}
