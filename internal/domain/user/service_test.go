package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (m *mockRepo) GetByUserName(ctx context.Context, userName string) (*User, error) {
	for _, u := range m.users {
		if u.UserName == userName {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockRepo) Update(ctx context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("user not found")
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.users, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func TestCreateUser(t *testing.T) {
	svc := NewService(newMockRepo())

	u := &User{UserName: "s.officer", Level: LevelDistrict}
	if err := svc.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
}

func TestCreateUser_RequiresUserName(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.CreateUser(context.Background(), &User{}); err == nil {
		t.Fatal("expected error for missing user_name")
	}
}

func TestCreateUser_InvalidLevel(t *testing.T) {
	svc := NewService(newMockRepo())
	u := &User{UserName: "x", Level: "PLANET"}
	if err := svc.CreateUser(context.Background(), u); err == nil {
		t.Fatal("expected error for invalid jurisdiction level")
	}
}

func TestCreateUser_DefaultsLevelToNone(t *testing.T) {
	svc := NewService(newMockRepo())
	u := &User{UserName: "x"}
	if err := svc.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Level != LevelNone {
		t.Errorf("expected level NONE, got %s", u.Level)
	}
}

func TestCreateUser_BindingBelowLevel(t *testing.T) {
	svc := NewService(newMockRepo())
	fid := uuid.New()

	u := &User{UserName: "x", Level: LevelRegion, FacilityID: &fid}
	if err := svc.CreateUser(context.Background(), u); err == nil {
		t.Fatal("expected error for facility binding on region user")
	}

	rid := uuid.New()
	u = &User{UserName: "y", Level: LevelNation, RegionID: &rid}
	if err := svc.CreateUser(context.Background(), u); err == nil {
		t.Fatal("expected error for region binding on nation user")
	}
}

func TestCreateUser_MissingBindingAllowed(t *testing.T) {
	// A district user without a district binding is allowed. The visibility
	// filter simply grants them no district clause.
	svc := NewService(newMockRepo())
	u := &User{UserName: "x", Level: LevelDistrict}
	if err := svc.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHasRole(t *testing.T) {
	u := &User{Roles: []Role{RoleSurveillanceOfficer, RoleLabUser}}
	if !u.HasRole(RoleLabUser) {
		t.Error("expected HasRole to find lab_user")
	}
	if u.HasRole(RoleAdmin) {
		t.Error("did not expect admin role")
	}
}

func TestUpdateUser_InvalidLevel(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	u := &User{UserName: "x", Level: LevelRegion}
	if err := svc.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}

	u.Level = "INVALID"
	if err := svc.UpdateUser(context.Background(), u); err == nil {
		t.Fatal("expected error for invalid level on update")
	}
}
