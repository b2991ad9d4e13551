package service

import (
	"context"
	"sort"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/utils"
)

var fixedNow = time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)

const testSigningSecret = "service-test-secret-0123456789abcdef"

func newTestJWTManager() *utils.JWTManager {
	return utils.NewJWTManager(testSigningSecret, 15*time.Minute, 7*24*time.Hour)
}

// fakeStore is the shared in-memory backing for the fake repositories. Loads
// return clones so optimistic-concurrency checks against the stored
// ModifiedAt behave like the SQL implementations.
type fakeStore struct {
	emailLogins    map[string]*domain.EmailLogin
	externalLogins map[string]*domain.ExternalLogin
	sessions       map[string]*domain.Session
	users          []*domain.User
	tenants        []*domain.Tenant
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		emailLogins:    make(map[string]*domain.EmailLogin),
		externalLogins: make(map[string]*domain.ExternalLogin),
		sessions:       make(map[string]*domain.Session),
	}
}

func (s *fakeStore) userByID(id string) *domain.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type fakeUnitOfWork struct {
	store *fakeStore
}

func newFakeUnitOfWork(store *fakeStore) *fakeUnitOfWork {
	return &fakeUnitOfWork{store: store}
}

func (u *fakeUnitOfWork) Execute(_ context.Context, fn func(repos *repository.Repositories) error) error {
	return fn(&repository.Repositories{
		EmailLogin:    &fakeEmailLoginRepo{store: u.store},
		ExternalLogin: &fakeExternalLoginRepo{store: u.store},
		Session:       &fakeSessionRepo{store: u.store},
		User:          &fakeUserRepo{store: u.store},
		Tenant:        &fakeTenantRepo{store: u.store},
	})
}

func cloneEmailLogin(l *domain.EmailLogin) *domain.EmailLogin {
	c := *l
	c.DrainEvents()
	return &c
}

func cloneExternalLogin(l *domain.ExternalLogin) *domain.ExternalLogin {
	c := *l
	c.DrainEvents()
	return &c
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.DrainEvents()
	return &c
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Identities = append([]domain.ExternalIdentity(nil), u.Identities...)
	c.DrainEvents()
	return &c
}

type fakeEmailLoginRepo struct {
	store *fakeStore
}

func (r *fakeEmailLoginRepo) Create(_ context.Context, login *domain.EmailLogin) error {
	r.store.emailLogins[login.ID] = cloneEmailLogin(login)
	return nil
}

func (r *fakeEmailLoginRepo) GetByID(_ context.Context, id string) (*domain.EmailLogin, error) {
	stored, ok := r.store.emailLogins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEmailLogin(stored), nil
}

func (r *fakeEmailLoginRepo) Update(_ context.Context, login *domain.EmailLogin, expectedModifiedAt time.Time) error {
	stored, ok := r.store.emailLogins[login.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !stored.ModifiedAt.Equal(expectedModifiedAt) {
		return repository.ErrConcurrentUpdate
	}
	r.store.emailLogins[login.ID] = cloneEmailLogin(login)
	return nil
}

type fakeExternalLoginRepo struct {
	store *fakeStore
}

func (r *fakeExternalLoginRepo) Create(_ context.Context, login *domain.ExternalLogin) error {
	r.store.externalLogins[login.ID] = cloneExternalLogin(login)
	return nil
}

func (r *fakeExternalLoginRepo) GetByID(_ context.Context, id string) (*domain.ExternalLogin, error) {
	stored, ok := r.store.externalLogins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneExternalLogin(stored), nil
}

func (r *fakeExternalLoginRepo) Update(_ context.Context, login *domain.ExternalLogin, expectedModifiedAt time.Time) error {
	stored, ok := r.store.externalLogins[login.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !stored.ModifiedAt.Equal(expectedModifiedAt) {
		return repository.ErrConcurrentUpdate
	}
	r.store.externalLogins[login.ID] = cloneExternalLogin(login)
	return nil
}

type fakeSessionRepo struct {
	store *fakeStore
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.store.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	stored, ok := r.store.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(stored), nil
}

func (r *fakeSessionRepo) Update(_ context.Context, session *domain.Session, expectedModifiedAt time.Time) error {
	stored, ok := r.store.sessions[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !stored.ModifiedAt.Equal(expectedModifiedAt) {
		return repository.ErrConcurrentUpdate
	}
	r.store.sessions[session.ID] = cloneSession(session)
	return nil
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.store.users = append(r.store.users, cloneUser(user))
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u := r.store.userByID(id); u != nil {
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetAllByEmail(_ context.Context, email string) ([]*domain.User, error) {
	var matched []*domain.User
	for _, u := range r.store.users {
		if u.Email == email {
			matched = append(matched, cloneUser(u))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	for i, u := range r.store.users {
		if u.ID == user.ID {
			r.store.users[i] = cloneUser(user)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeUserRepo) LinkIdentity(_ context.Context, userID string, identity domain.ExternalIdentity) error {
	u := r.store.userByID(userID)
	if u == nil {
		return repository.ErrNotFound
	}
	u.Identities = append(u.Identities, identity)
	return nil
}

type fakeTenantRepo struct {
	store *fakeStore
}

func (r *fakeTenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = domain.NewTenantID()
	}
	r.store.tenants = append(r.store.tenants, tenant)
	return nil
}

type capturingPublisher struct {
	events []domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, events ...domain.Event) {
	p.events = append(p.events, events...)
}

func (p *capturingPublisher) names() []string {
	var names []string
	for _, e := range p.events {
		names = append(names, e.EventName())
	}
	return names
}

type sentCode struct {
	recipient string
	code      string
}

type recordingEmailSender struct {
	sent []sentCode
}

func (s *recordingEmailSender) SendOneTimePassword(_ context.Context, recipient, code string, _ time.Duration) error {
	s.sent = append(s.sent, sentCode{recipient: recipient, code: code})
	return nil
}

func (s *recordingEmailSender) lastCode() string {
	return s.sent[len(s.sent)-1].code
}
