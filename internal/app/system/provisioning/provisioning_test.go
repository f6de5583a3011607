package provisioning_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	"github.com/dalemusser/churchhub/internal/app/system/notify"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeIdentities is an in-memory identity provider.
type fakeIdentities struct {
	byEmail   map[string]string
	passwords map[string]string
	temporary map[string]bool
	next      int
	createErr error
	deleted   []string
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byEmail: map[string]string{}, passwords: map[string]string{}, temporary: map[string]bool{}}
}

func (f *fakeIdentities) CreateIdentity(_ context.Context, email, pw string, tmp bool) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	id := fmt.Sprintf("uid-%d", f.next)
	f.byEmail[email] = id
	f.passwords[id] = pw
	f.temporary[id] = tmp
	return id, nil
}

func (f *fakeIdentities) FindIdentity(_ context.Context, email string) (string, bool, error) {
	id, ok := f.byEmail[email]
	return id, ok, nil
}

func (f *fakeIdentities) SetPassword(_ context.Context, id, pw string, tmp bool) error {
	f.passwords[id] = pw
	f.temporary[id] = tmp
	return nil
}

func (f *fakeIdentities) DeleteIdentity(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	for e, v := range f.byEmail {
		if v == id {
			delete(f.byEmail, e)
		}
	}
	return nil
}

type fakeProfiles struct {
	users     map[string]models.User
	createErr error
}

func newFakeProfiles() *fakeProfiles { return &fakeProfiles{users: map[string]models.User{}} }

func (f *fakeProfiles) EmailExists(_ context.Context, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProfiles) Create(_ context.Context, u models.User) (models.User, error) {
	if f.createErr != nil {
		return models.User{}, f.createErr
	}
	rs, err := roles.Normalize(u.Roles)
	if err != nil {
		return models.User{}, err
	}
	u.Roles = roles.Strings(rs)
	u.Role = roles.Mirror(rs)
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

type fakeInvites struct {
	mu        sync.Mutex
	invites   map[primitive.ObjectID]models.Invite
	createErr error
	getErr    error
}

func newFakeInvites() *fakeInvites {
	return &fakeInvites{invites: map[primitive.ObjectID]models.Invite{}}
}

func (f *fakeInvites) Create(_ context.Context, inv models.Invite) (models.Invite, error) {
	if f.createErr != nil {
		return models.Invite{}, f.createErr
	}
	inv.ID = primitive.NewObjectID()
	if len(inv.Roles) > 0 {
		inv.Role = inv.Roles[0]
	}
	f.invites[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvites) GetByToken(_ context.Context, token string) (models.Invite, error) {
	if f.getErr != nil {
		return models.Invite{}, f.getErr
	}
	for _, inv := range f.invites {
		if inv.Token == token {
			return inv, nil
		}
	}
	return models.Invite{}, invitestore.ErrNotFound
}

func (f *fakeInvites) MarkAccepted(_ context.Context, id primitive.ObjectID, uid string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := f.invites[id]
	if inv.AcceptedAt != nil {
		return errors.New("already accepted")
	}
	inv.AcceptedAt = &at
	inv.AcceptedByUID = uid
	f.invites[id] = inv
	return nil
}

func (f *fakeInvites) only(t *testing.T) models.Invite {
	t.Helper()
	if len(f.invites) != 1 {
		t.Fatalf("expected 1 invite, got %d", len(f.invites))
	}
	for _, inv := range f.invites {
		return inv
	}
	return models.Invite{}
}

type fakeNotifier struct{ got []notify.InviteNotice }

func (f *fakeNotifier) NotifyInvite(_ context.Context, n notify.InviteNotice) error {
	f.got = append(f.got, n)
	return nil
}

type env struct {
	ids      *fakeIdentities
	profiles *fakeProfiles
	invites  *fakeInvites
	notifier *fakeNotifier
	svc      *provisioning.Service
}

func newEnv(domains ...string) *env {
	e := &env{
		ids:      newFakeIdentities(),
		profiles: newFakeProfiles(),
		invites:  newFakeInvites(),
		notifier: &fakeNotifier{},
	}
	e.svc = provisioning.New(e.ids, e.profiles, e.invites, provisioning.Options{
		AllowedDomains: domains,
		AcceptURL:      func(tok string) string { return "https://app/invites/accept/" + tok },
		Notifier:       e.notifier,
	})
	return e
}

var admin = roles.Subject{Roles: []string{"admin"}}

func TestCreateInvitedUser_PreAcceptedInvite(t *testing.T) {
	e := newEnv()
	region := primitive.NewObjectID()

	res, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{
		Email:     "p@x.com",
		Roles:     []string{"pastor_local"},
		RegionID:  &region,
		Inviter:   admin,
		InviterID: "admin-uid",
	})
	if err != nil {
		t.Fatalf("CreateInvitedUser: %v", err)
	}
	if res.UID == "" || res.Email != "p@x.com" {
		t.Errorf("result = %+v", res)
	}
	if res.TempPassword == "" || e.ids.passwords[res.UID] != res.TempPassword || !e.ids.temporary[res.UID] {
		t.Error("identity should carry the returned temporary password, flagged temporary")
	}

	u := e.profiles.users[res.UID]
	if len(u.Roles) != 1 || u.Roles[0] != "pastor_local" || u.Role != "pastor_local" {
		t.Errorf("profile roles = %v / %q", u.Roles, u.Role)
	}
	if u.RegionID == nil || *u.RegionID != region {
		t.Errorf("profile region = %v", u.RegionID)
	}
	if u.DisplayName != "" || u.ChurchID != nil {
		t.Errorf("profile should have no display name and no church, got %+v", u)
	}

	inv := e.invites.only(t)
	if inv.AcceptedAt == nil || !inv.AcceptedAt.Equal(inv.CreatedAt) {
		t.Errorf("accepted_at = %v, created_at = %v", inv.AcceptedAt, inv.CreatedAt)
	}
	if inv.AcceptedByUID != res.UID || inv.CreatedBy != "admin-uid" || inv.ID != res.InviteID {
		t.Errorf("invite = %+v", inv)
	}
}

func TestCreateInvitedUser_TempPasswordsDiffer(t *testing.T) {
	e := newEnv()
	a, _ := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "a@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	b, _ := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "b@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	if a.TempPassword == "" || a.TempPassword == b.TempPassword {
		t.Error("each account should get its own random temporary password")
	}
}

func TestCreateInvitedUser_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  provisioning.Request
		want error
	}{
		{"missing email", provisioning.Request{Roles: []string{"secretaria"}, Inviter: admin}, provisioning.ErrInvalidEmail},
		{"bad email", provisioning.Request{Email: "nope", Roles: []string{"secretaria"}, Inviter: admin}, provisioning.ErrInvalidEmail},
		{"no roles", provisioning.Request{Email: "a@x.com", Inviter: admin}, roles.ErrNoRoles},
		{"unknown role", provisioning.Request{Email: "a@x.com", Roles: []string{"bishop"}, Inviter: admin}, roles.ErrUnknownRole},
		{"not invitable", provisioning.Request{Email: "a@x.com", Roles: []string{"admin"}, Inviter: roles.Subject{Roles: []string{"pastor_regional"}}}, provisioning.ErrNotAllowed},
		{"signed out inviter", provisioning.Request{Email: "a@x.com", Roles: []string{"secretaria"}}, provisioning.ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			_, err := e.svc.CreateInvitedUser(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(e.ids.byEmail) != 0 || len(e.profiles.users) != 0 || len(e.invites.invites) != 0 {
				t.Error("validation failures must not write anything")
			}
		})
	}
}

func TestCreateInvitedUser_SecretaryKeepsCouncilPower(t *testing.T) {
	e := newEnv()
	_, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{
		Email:   "c@x.com",
		Roles:   []string{"pastor_conselho"},
		Inviter: roles.Subject{Roles: []string{"secretaria"}},
	})
	if err != nil {
		t.Errorf("secretaria should be able to invite pastor_conselho: %v", err)
	}
}

func TestCreateInvitedUser_DomainGate(t *testing.T) {
	e := newEnv("BolaDeNeve.com")
	req := provisioning.Request{Email: "a@gmail.com", Roles: []string{"secretaria"}, Inviter: admin}
	if _, err := e.svc.CreateInvitedUser(context.Background(), req); !errors.Is(err, provisioning.ErrDomainNotAllowed) {
		t.Errorf("err = %v, want ErrDomainNotAllowed", err)
	}
	req.Email = "a@boladeneve.com"
	if _, err := e.svc.CreateInvitedUser(context.Background(), req); err != nil {
		t.Errorf("allowed domain rejected: %v", err)
	}
}

func TestCreateInvitedUser_AlreadyRegistered(t *testing.T) {
	e := newEnv()
	e.profiles.users["existing"] = models.User{ID: "existing", Email: "p@x.com"}
	_, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: " P@X.com ", Roles: []string{"secretaria"}, Inviter: admin})
	if !errors.Is(err, provisioning.ErrAlreadyRegistered) {
		t.Errorf("err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestCreateInvitedUser_IdentityFailureAborts(t *testing.T) {
	e := newEnv()
	e.ids.createErr = errors.New("provider down")
	_, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "p@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	if err == nil || !errors.Is(err, e.ids.createErr) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if len(e.profiles.users) != 0 || len(e.invites.invites) != 0 {
		t.Error("nothing should be written after the identity step fails")
	}
}

func TestCreateInvitedUser_ProfileFailureRemovesIdentity(t *testing.T) {
	e := newEnv()
	e.profiles.createErr = errors.New("store down")
	_, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "p@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	if !errors.Is(err, e.profiles.createErr) {
		t.Fatalf("err = %v", err)
	}
	if len(e.ids.byEmail) != 0 || len(e.ids.deleted) != 1 {
		t.Errorf("identity should be rolled back, remaining %v", e.ids.byEmail)
	}
}

func TestCreateInvitedUser_InviteFailureRemovesProfileAndIdentity(t *testing.T) {
	e := newEnv()
	e.invites.createErr = errors.New("invites down")
	_, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "p@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	if !errors.Is(err, e.invites.createErr) {
		t.Fatalf("err = %v", err)
	}
	if len(e.profiles.users) != 0 || len(e.ids.byEmail) != 0 {
		t.Error("profile and identity should both be rolled back")
	}
}

func TestCreateInvitedUser_ResumesOrphanIdentity(t *testing.T) {
	e := newEnv()
	// a previous attempt crashed after the identity step
	orphan, _ := e.ids.CreateIdentity(context.Background(), "p@x.com", "old-password", true)

	res, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "p@x.com", Roles: []string{"secretaria"}, Inviter: admin})
	if err != nil {
		t.Fatalf("CreateInvitedUser: %v", err)
	}
	if res.UID != orphan {
		t.Errorf("uid = %q, want reused %q", res.UID, orphan)
	}
	if e.ids.passwords[orphan] != res.TempPassword {
		t.Error("reused identity should get the new temporary password")
	}
}

func TestCreateInvitedUser_ReusedIdentityKeptOnFailure(t *testing.T) {
	e := newEnv()
	orphan, _ := e.ids.CreateIdentity(context.Background(), "p@x.com", "old-password", true)
	e.profiles.createErr = errors.New("store down")

	if _, err := e.svc.CreateInvitedUser(context.Background(), provisioning.Request{Email: "p@x.com", Roles: []string{"secretaria"}, Inviter: admin}); err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := e.ids.byEmail["p@x.com"]; !ok || len(e.ids.deleted) != 0 {
		t.Errorf("identity %s from an earlier attempt should be kept for the next retry", orphan)
	}
}

func TestInviteLink_CreateVerifyAccept(t *testing.T) {
	e := newEnv()
	region := primitive.NewObjectID()
	inv, err := e.svc.CreateInviteLink(context.Background(), provisioning.Request{
		Email:     "novo@x.com",
		Roles:     []string{"pastor_local", "secretaria"},
		RegionID:  &region,
		Phone:     "11999990000",
		Inviter:   admin,
		InviterID: "admin-uid",
	})
	if err != nil {
		t.Fatalf("CreateInviteLink: %v", err)
	}
	if len(inv.Token) != 64 || inv.ExpiresAt == nil || !inv.Pending() {
		t.Fatalf("invite = %+v", inv)
	}
	if d := inv.ExpiresAt.Sub(inv.CreatedAt); d != provisioning.DefaultInviteTTL {
		t.Errorf("ttl = %v", d)
	}

	if _, err := e.svc.VerifyInvite(context.Background(), inv.Token); err != nil {
		t.Fatalf("VerifyInvite: %v", err)
	}

	res, err := e.svc.AcceptInvite(context.Background(), inv.Token, provisioning.AcceptRequest{Password: "s3nha-forte", DisplayName: "Novo"})
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	u := e.profiles.users[res.UID]
	if u.DisplayName != "Novo" || u.Phone != "11999990000" || u.Role != "pastor_local" || len(u.Roles) != 2 {
		t.Errorf("profile = %+v", u)
	}
	if e.ids.temporary[res.UID] {
		t.Error("a password chosen by the invitee is not temporary")
	}
	if got := e.invites.invites[inv.ID]; got.AcceptedAt == nil || got.AcceptedByUID != res.UID {
		t.Errorf("invite not accepted: %+v", got)
	}

	if _, err := e.svc.AcceptInvite(context.Background(), inv.Token, provisioning.AcceptRequest{Password: "another-one"}); !errors.Is(err, provisioning.ErrInviteUsed) {
		t.Errorf("second accept err = %v, want ErrInviteUsed", err)
	}
}

func TestVerifyInvite_Errors(t *testing.T) {
	e := newEnv()
	if _, err := e.svc.VerifyInvite(context.Background(), "missing"); !errors.Is(err, provisioning.ErrInviteNotFound) {
		t.Errorf("err = %v, want ErrInviteNotFound", err)
	}

	past := time.Now().Add(-time.Hour)
	inv, _ := e.invites.Create(context.Background(), models.Invite{Email: "o@x.com", Roles: []string{"secretaria"}, Token: "old", ExpiresAt: &past})
	if _, err := e.svc.VerifyInvite(context.Background(), inv.Token); !errors.Is(err, provisioning.ErrInviteExpired) {
		t.Errorf("err = %v, want ErrInviteExpired", err)
	}
}

func TestVerifyInvite_StoreFailureIsNotNotFound(t *testing.T) {
	e := newEnv()
	outage := errors.New("server selection timeout")
	e.invites.getErr = outage

	_, err := e.svc.VerifyInvite(context.Background(), "any")
	if errors.Is(err, provisioning.ErrInviteNotFound) {
		t.Fatal("a store outage must not read as a missing invite")
	}
	if !errors.Is(err, outage) {
		t.Errorf("err = %v, want the store error", err)
	}
}

func TestAcceptInvite_LegacySingleRole(t *testing.T) {
	e := newEnv()
	future := time.Now().Add(time.Hour)
	inv, _ := e.invites.Create(context.Background(), models.Invite{Email: "l@x.com", Token: "tok", ExpiresAt: &future})
	inv.Role = "secretaria"
	e.invites.invites[inv.ID] = inv

	res, err := e.svc.AcceptInvite(context.Background(), "tok", provisioning.AcceptRequest{Password: "s3nha-forte"})
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if got := e.profiles.users[res.UID].Roles; len(got) != 1 || got[0] != "secretaria" {
		t.Errorf("roles = %v", got)
	}
}

func TestNotifyInvite(t *testing.T) {
	e := newEnv()
	inv, _ := e.svc.CreateInviteLink(context.Background(), provisioning.Request{
		Email: "n@x.com", Roles: []string{"pastor_conselho", "pastor_local"}, Phone: "11988887777", Inviter: admin,
	})
	if err := e.svc.NotifyInvite(context.Background(), inv, "Pr. Ana", true, true); err != nil {
		t.Fatalf("NotifyInvite: %v", err)
	}
	if len(e.notifier.got) != 1 {
		t.Fatalf("expected one notice, got %d", len(e.notifier.got))
	}
	n := e.notifier.got[0]
	if n.Link != "https://app/invites/accept/"+inv.Token || n.ExpiresIn != "7 dias" {
		t.Errorf("notice link/expiry = %q / %q", n.Link, n.ExpiresIn)
	}
	if n.RoleName != "Pastor do Conselho e Pastor Local" || n.InviterName != "Pr. Ana" {
		t.Errorf("notice = %+v", n)
	}
}
