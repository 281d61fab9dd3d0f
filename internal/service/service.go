// Package service implements the splitledger.v1 connect services on top of
// storage.Store and the calculator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/text/language"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	// errCallerNotMember means the caller may not see or change the group.
	errCallerNotMember = errors.New("you are not a member of this group")
	// errNotGroupMember means a referenced user does not belong to the group.
	errNotGroupMember = errors.New("user is not a member of this group")
	// errForbidden means the caller is a member but may not perform the action.
	errForbidden = errors.New("not allowed")
)

// Option configures the group and expense services.
type Option func(*options)

type options struct {
	defaultCurrency string
	locale          language.Tag
	metrics         *metrics.Collectors
}

func newOptions(opts []Option) options {
	o := options{defaultCurrency: "USD", locale: language.AmericanEnglish}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDefaultCurrency sets the currency used when a request does not name one.
func WithDefaultCurrency(code string) Option {
	return func(o *options) { o.defaultCurrency = strings.ToUpper(code) }
}

// WithLocale sets the language used to format display amounts.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

// WithMetrics records split and settlement activity in m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *options) { o.metrics = m }
}

// display formats c for humans, falling back to "12.34 XXX" when the
// currency is unknown to the formatter.
func (o options) display(c money.Cents, currency string) string {
	s, err := money.Format(c, currency, o.locale)
	if err != nil {
		return c.String() + " " + currency
	}
	return s
}

// currencyOrDefault normalizes code, substituting the default when empty.
func (o options) currencyOrDefault(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = o.defaultCurrency
	}
	if !money.ValidCurrency(code) {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown currency %q", code))
	}
	return code, nil
}

// callerID returns the authenticated user ID set by the auth interceptor.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// memberGroup loads a group and checks that userID belongs to it.
func memberGroup(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id is required"))
	}
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, fmt.Errorf("group %s: %w", groupID, errCallerNotMember)
	}
	return group, nil
}

// toConnectError maps domain and storage errors to connect codes.
// Errors that already carry a code are returned unchanged.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	var splitErr calculator.SplitError
	switch {
	case errors.As(err, &splitErr), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, errNotGroupMember):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, errCallerNotMember), errors.Is(err, errForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// fail logs err at a level matching its code and returns it as a connect error.
func fail(msg string, err error, attrs ...any) error {
	err = toConnectError(err)
	attrs = append(attrs, "error", err)
	switch connect.CodeOf(err) {
	case connect.CodeInternal, connect.CodeUnknown:
		slog.Error(msg, attrs...)
	default:
		slog.Warn(msg, attrs...)
	}
	return err
}
