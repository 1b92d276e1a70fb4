package tenant

import (
	"context"
	"sync"

	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, org *Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Organization, error) {
	args := m.Called(ctx, id)
	org, _ := args.Get(0).(*Organization)
	return org, args.Error(1)
}

func (m *mockRepo) GetByName(ctx context.Context, name string) (*Organization, error) {
	args := m.Called(ctx, name)
	org, _ := args.Get(0).(*Organization)
	return org, args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, org *Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) List(ctx context.Context) ([]*Organization, error) {
	args := m.Called(ctx)
	orgs, _ := args.Get(0).([]*Organization)
	return orgs, args.Error(1)
}

type mockAdmins struct {
	mock.Mock
}

func (m *mockAdmins) Create(ctx context.Context, admin *identity.Admin) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

func (m *mockAdmins) GetByOrg(ctx context.Context, orgID string) (*identity.Admin, error) {
	args := m.Called(ctx, orgID)
	a, _ := args.Get(0).(*identity.Admin)
	return a, args.Error(1)
}

func (m *mockAdmins) ListByEmail(ctx context.Context, email string) ([]*identity.Admin, error) {
	args := m.Called(ctx, email)
	list, _ := args.Get(0).([]*identity.Admin)
	return list, args.Error(1)
}

func (m *mockAdmins) UpdateCredentials(ctx context.Context, orgID string, update identity.CredentialUpdate) error {
	args := m.Called(ctx, orgID, update)
	return args.Error(0)
}

func (m *mockAdmins) RenameOrg(ctx context.Context, orgID, newName string) error {
	args := m.Called(ctx, orgID, newName)
	return args.Error(0)
}

func (m *mockAdmins) DeleteByOrg(ctx context.Context, orgID string) (int64, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAdmins) List(ctx context.Context) ([]*identity.Admin, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*identity.Admin)
	return list, args.Error(1)
}

type mockNamespaces struct {
	mock.Mock
}

func (m *mockNamespaces) Create(ctx context.Context, namespace string, marker Marker) error {
	args := m.Called(ctx, namespace, marker)
	return args.Error(0)
}

func (m *mockNamespaces) Rename(ctx context.Context, oldNamespace, newNamespace string) error {
	args := m.Called(ctx, oldNamespace, newNamespace)
	return args.Error(0)
}

func (m *mockNamespaces) Drop(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}

func (m *mockNamespaces) Exists(ctx context.Context, namespace string) (bool, error) {
	args := m.Called(ctx, namespace)
	return args.Bool(0), args.Error(1)
}

func (m *mockNamespaces) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// recordingAudit keeps every event it receives.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(ctx context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	orgs       *mockRepo
	admins     *mockAdmins
	namespaces *mockNamespaces
	audit      *recordingAudit
	svc        *Service
}

func newFixture() *fixture {
	f := &fixture{
		orgs:       &mockRepo{},
		admins:     &mockAdmins{},
		namespaces: &mockNamespaces{},
		audit:      &recordingAudit{},
	}
	f.svc = NewService(f.orgs, f.admins, f.namespaces, identity.NewPasswordHasher(1024, 1, 1, 16, 32), f.audit)
	return f
}

// namespaceFree makes the namespace derived from name report as unused.
func (f *fixture) namespaceFree(name string) {
	f.namespaces.On("Exists", mock.Anything, NamespaceFor(name)).Return(false, nil)
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.orgs.AssertExpectations(t)
	f.admins.AssertExpectations(t)
	f.namespaces.AssertExpectations(t)
}
