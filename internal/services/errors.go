// Package services defines the business logic for accounts, proximity search,
// chats, invitations, blocking and polling. This file centralizes the
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping
// them to error codes and HTTP status codes is done by the handlers, since
// the same condition carries a different code on different endpoints.
package services

import "errors"

// Identity errors.
var (
	// ErrInvalidCredentials is returned by Login for an unknown e-mail or a
	// wrong password. The two cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when an e-mail already belongs to another
	// account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUnauthenticated means a session token did not resolve to a user.
	ErrUnauthenticated = errors.New("session token invalid or expired")

	// ErrUserNotFound means the token resolved but the account is gone.
	ErrUserNotFound = errors.New("user not found")

	// ErrTargetTokenInvalid means the token naming another user did not
	// resolve.
	ErrTargetTokenInvalid = errors.New("target token invalid")

	// ErrTargetNotFound means the other user's token resolved to an account
	// that no longer exists.
	ErrTargetNotFound = errors.New("target user not found")

	// ErrSelfTarget is returned when a user chats with, invites or blocks
	// themselves.
	ErrSelfTarget = errors.New("operation targets the caller")

	// ErrForbidden is returned when the caller is neither the owner nor an
	// admin.
	ErrForbidden = errors.New("not allowed")

	// ErrAdminProtected is returned when deleting an admin account.
	ErrAdminProtected = errors.New("admin accounts cannot be deleted")

	// ErrNoLocation is returned by Nearby when no center point is known.
	ErrNoLocation = errors.New("coordinates required")
)

// Chat errors.
var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrNotGeneralChat   = errors.New("chat token is not the general chat")
	ErrNotPrivateChat   = errors.New("chat is not private")
	ErrNotEphemeralChat = errors.New("only ephemeral chats can be deleted")
	ErrNotMember        = errors.New("caller is not a member of the chat")
	ErrNotChatCreator   = errors.New("only the creator or an admin can delete the chat")

	// ErrEmptyMessage is returned when a message body is blank after
	// trimming.
	ErrEmptyMessage = errors.New("message is empty")
)

// Invitation errors.
var (
	ErrAlreadyMember      = errors.New("user already in chat")
	ErrInvitationPending  = errors.New("invitation already pending")
	ErrInvitationNotFound = errors.New("invitation not found or expired")
	ErrInvitationInvalid  = errors.New("invitation data invalid")
	ErrNotInvitee         = errors.New("caller is not the invitee")
	ErrNotInviter         = errors.New("caller is not the inviter")
)

// Block errors.
var (
	ErrAlreadyBlocked = errors.New("user already blocked")
	ErrNotBlocked     = errors.New("no active block")
)
