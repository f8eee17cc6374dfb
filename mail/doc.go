// Package mail renders and delivers the account emails (verification and
// password reset). Templates are embedded; delivery goes through gomail.
package mail
