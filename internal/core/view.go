package core

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid view transition")

type ViewState string

const (
	ViewLoggedOut          ViewState = "logged_out"
	ViewAdminChoicePending ViewState = "admin_choice_pending"
	ViewAdmin              ViewState = "admin"
	ViewUser               ViewState = "user"
)

type ViewEvent string

const (
	ViewEventLogin        ViewEvent = "login"
	ViewEventChooseAdmin  ViewEvent = "choose_admin"
	ViewEventChooseUser   ViewEvent = "choose_user"
	ViewEventSwitchToUser ViewEvent = "switch_to_user"
	ViewEventLogout       ViewEvent = "logout"
)

// Stored admin choices, keyed per client.
const (
	choiceAdmin = "admin"
	choiceUser  = "user"
)

// NextView applies ev to the current view. Only admins may reach the admin view.
func NextView(current ViewState, ev ViewEvent, isAdmin bool) (ViewState, error) {
	switch {
	case ev == ViewEventLogout && current != ViewLoggedOut:
		return ViewLoggedOut, nil
	case ev == ViewEventLogin && current == ViewLoggedOut:
		if isAdmin {
			return ViewAdminChoicePending, nil
		}
		return ViewUser, nil
	case ev == ViewEventChooseAdmin && isAdmin && (current == ViewAdminChoicePending || current == ViewUser):
		return ViewAdmin, nil
	case ev == ViewEventChooseUser && isAdmin && current == ViewAdminChoicePending:
		return ViewUser, nil
	case ev == ViewEventSwitchToUser && isAdmin && current == ViewAdmin:
		return ViewUser, nil
	}
	return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, current)
}

// restoredView maps a persisted admin choice back to a view.
func restoredView(isAdmin bool, choice string) ViewState {
	if !isAdmin {
		return ViewUser
	}
	switch choice {
	case choiceAdmin:
		return ViewAdmin
	case choiceUser:
		return ViewUser
	default:
		return ViewAdminChoicePending
	}
}
