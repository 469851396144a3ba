package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tablescout/tablescout/internal/client/client"
	"github.com/tablescout/tablescout/internal/client/models"
	"github.com/tablescout/tablescout/internal/common"
)

func (a *App) credentials() (string, string, error) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", "", err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// report prints err in user terms and returns it.
func (a *App) report(err error) error {
	switch {
	case errors.Is(err, common.ErrSessionExpired):
		fmt.Fprintln(a.out, "Session expired, please log in again")
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Fprintln(a.out, "Invalid email or password")
	case errors.Is(err, common.ErrTooManyAttempts):
		fmt.Fprintln(a.out, "Too many failed attempts, try again later")
	case errors.Is(err, common.ErrForbidden):
		fmt.Fprintln(a.out, "Not allowed for your role")
	case errors.Is(err, common.ErrorUnauthorized):
		fmt.Fprintln(a.out, "Please log in first")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}

func (a *App) Register(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return a.report(err)
	}

	u, err := a.api.Register(ctx, email, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Registered %s\n", u.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return a.report(err)
	}

	if err := a.api.Login(ctx, email, password); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	n, err := a.api.LogoutAll(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Logged out of %d session(s)\n", n)
	return nil
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "%s (%s), role %s\n", u.Email, u.ID, u.Role)
	return nil
}

// AddVenue registers an establishment. The first one turns the account into
// a partner account; the client picks up the new tokens automatically.
func (a *App) AddVenue(ctx context.Context) error {
	var e models.Establishment
	var err error
	if e.Name, err = GetSimpleText(a.reader, "Venue name", a.out); err != nil {
		return a.report(err)
	}
	if e.Address, err = GetSimpleText(a.reader, "Address", a.out); err != nil {
		return a.report(err)
	}
	if e.Cuisine, err = GetSimpleText(a.reader, "Cuisine (optional)", a.out); err != nil {
		return a.report(err)
	}

	created, err := a.api.CreateEstablishment(ctx, e)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Added %s (%s)\n", created.Name, created.ID)
	return nil
}

func (a *App) ListVenues(ctx context.Context) error {
	list, err := a.api.ListMyEstablishments(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No venues yet")
		return nil
	}
	for _, e := range list {
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", e.ID, e.Name, e.Address)
	}
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	if err := a.api.Ping(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}
