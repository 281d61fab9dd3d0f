package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/api"
)

func TestRegisterAndMe(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()

	resp, err := clients.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Password:    testPassword,
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.Msg.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.Msg.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", resp.Msg.User.Email)
	}

	user := testUser{ID: resp.Msg.User.ID, Token: resp.Msg.Token}
	me, err := clients.auth.Me(ctx, as(user, &emptypb.Empty{}))
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.Msg.User.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, me.Msg.User.ID)
	}
	if me.Msg.User.DisplayName != "Alice" {
		t.Errorf("expected display name Alice, got %q", me.Msg.User.DisplayName)
	}
}

func TestRegister_Errors(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	clients.register(t, "taken@example.com")

	tests := []struct {
		name string
		req  *api.RegisterRequest
		want connect.Code
	}{
		{"duplicate email", &api.RegisterRequest{Email: "TAKEN@example.com", Password: testPassword}, connect.CodeAlreadyExists},
		{"weak password", &api.RegisterRequest{Email: "new@example.com", Password: "short"}, connect.CodeInvalidArgument},
		{"invalid email", &api.RegisterRequest{Email: "not-an-email", Password: testPassword}, connect.CodeInvalidArgument},
		{"missing email", &api.RegisterRequest{Password: testPassword}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clients.auth.Register(ctx, connect.NewRequest(tt.req))
			wantCode(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	user := clients.register(t, "bob@example.com")

	resp, err := clients.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "bob@example.com",
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Msg.User.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, resp.Msg.User.ID)
	}
	if resp.Msg.Token == "" {
		t.Error("expected a token")
	}

	_, err = clients.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "bob@example.com",
		Password: "wrong-password",
	}))
	wantCode(t, err, connect.CodeUnauthenticated)

	_, err = clients.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "nobody@example.com",
		Password: testPassword,
	}))
	wantCode(t, err, connect.CodeUnauthenticated)
}

func TestMe_Unauthenticated(t *testing.T) {
	clients := setupTestServer(t)

	_, err := clients.auth.Me(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	wantCode(t, err, connect.CodeUnauthenticated)

	_, err = clients.auth.Me(context.Background(), as(testUser{Token: "garbage"}, &emptypb.Empty{}))
	wantCode(t, err, connect.CodeUnauthenticated)
}
