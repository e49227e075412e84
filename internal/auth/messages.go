package auth

import "fmt"

// User-facing notification texts.
const (
	MsgLoggedIn          = "Logged in successfully!"
	MsgLoginFailed       = "Login failed"
	MsgVerifyEmail       = "Please verify your email to activate your account."
	MsgRegistered        = "Registration successful! Please check your email to verify your account."
	MsgRegisterFailed    = "Registration failed"
	MsgLoggedOut         = "Logged out successfully!"
	MsgLogoutExpired     = "Session expired. Logged out."
	MsgLogoutServerError = "Server error during logout. Clearing session."
	MsgLogoutFailed      = "Logout failed, session cleared."
	MsgSessionExpired    = "Session expired. Please log in again."
	MsgAccountInactive   = "Account not activated. Please verify your email."
	MsgVerifyFailed      = "Your session could not be verified. Please log in again."
	MsgSessionRevoked    = "Session revoked"
	MsgRevokeExpired     = "Session expired. Logging out."
	MsgServerError       = "Server error. Please try again later."
	MsgRevokeFailed      = "Failed to revoke session."
	MsgServerUnreachable = "Unable to reach the server. Check your connection."
	MsgRefreshFailed     = "Failed to refresh session."
)

// RevokedOthers formats the confirmation for revoking every other session.
func RevokedOthers(n int) string {
	if n == 1 {
		return "Revoked 1 other session"
	}
	return fmt.Sprintf("Revoked %d other sessions", n)
}
