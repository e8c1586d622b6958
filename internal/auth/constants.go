// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Input Constraints

const (
	// PasswordMinLength applies to both signup and login.
	PasswordMinLength = 6

	// PasswordMaxLength caps signup passwords.
	PasswordMaxLength = 100

	// NameMinLength and NameMaxLength bound first and last names, counted in
	// Unicode characters after trimming.
	NameMinLength = 1
	NameMaxLength = 50
)

// # Operation Labels

// Operation names used in structured logs and attempt metrics.
const (
	OperationSignup     = "signup"
	OperationLogin      = "login"
	OperationOAuth      = "google"
	OperationLogout     = "logout"
	OperationDeactivate = "deactivate"
)

// # Response Messages

const (
	msgSignupSucceeded     = "Account created successfully"
	msgLoginSucceeded      = "Login successful"
	msgOAuthSucceeded      = "Google authentication successful"
	msgLogoutSucceeded     = "Logout successful"
	msgDeactivateSucceeded = "Account deactivated"
)
