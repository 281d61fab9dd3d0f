package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

const testPassword = "correct-horse"

// testClients bundles clients for every service on one test server.
type testClients struct {
	auth    *api.AuthServiceClient
	group   *api.GroupServiceClient
	expense *api.ExpenseServiceClient
}

// testUser is a registered account with its bearer token.
type testUser struct {
	ID    string
	Token string
}

// setupTestServer starts all services on a fresh database, wired with the
// same interceptors as the real server.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	requireAuth := connect.WithInterceptors(middleware.RequireAuth(jwtManager))
	optionalAuth := connect.WithInterceptors(middleware.OptionalAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, logger), optionalAuth))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(store), requireAuth))
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(store), requireAuth))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testClients{
		auth:    api.NewAuthServiceClient(server.Client(), server.URL),
		group:   api.NewGroupServiceClient(server.Client(), server.URL),
		expense: api.NewExpenseServiceClient(server.Client(), server.URL),
	}
}

// register creates an account and returns it with a valid token.
func (c *testClients) register(t *testing.T, email string) testUser {
	t.Helper()

	resp, err := c.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return testUser{ID: resp.Msg.User.ID, Token: resp.Msg.Token}
}

// as builds a request carrying u's bearer token.
func as[T any](u testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.Token)
	return req
}

// createGroup creates a USD group owned by owner with the given members.
func (c *testClients) createGroup(t *testing.T, owner testUser, members ...testUser) api.Group {
	t.Helper()

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	resp, err := c.group.CreateGroup(context.Background(), as(owner, &api.CreateGroupRequest{
		Name:      "Trip",
		Currency:  "usd",
		MemberIDs: ids,
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group
}

// equalSplit splits evenly among users.
func equalSplit(users ...testUser) api.Split {
	split := api.Split{Policy: "equal"}
	for _, u := range users {
		split.Participants = append(split.Participants, api.Participant{UserID: u.ID})
	}
	return split
}

func ptr[T any](v T) *T { return &v }

// wantCode fails the test unless err carries code.
func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != code {
		t.Errorf("expected code %v, got %v (%v)", code, connectErr.Code(), err)
	}
}
