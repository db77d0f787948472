package auth

// LoginStatus tags the outcome of a login attempt. The handshake has several
// legitimate non-success endings that are not errors in the Go sense: the
// caller inspects the status and decides what to surface.
type LoginStatus string

const (
	// LoginSuccess means a bearer token was obtained and the admin role
	// verified.
	LoginSuccess LoginStatus = "success"

	// LoginTwoFactorRequired means credentials were accepted but a
	// verification code must be supplied on a follow-up attempt.
	LoginTwoFactorRequired LoginStatus = "two_factor_required"

	// LoginCaptchaRequired means the identity provider demanded a captcha;
	// the programmatic path cannot proceed and the caller must hand off to
	// manual token entry.
	LoginCaptchaRequired LoginStatus = "captcha_required"

	// LoginSsoOnly means the account has no password path (Google/Microsoft
	// SSO); manual token entry is the only option.
	LoginSsoOnly LoginStatus = "sso_only"

	// LoginAccountUnactivated means the account exists but was never
	// activated.
	LoginAccountUnactivated LoginStatus = "account_unactivated"

	// LoginInvalidCredentials means the email/password pair was rejected.
	LoginInvalidCredentials LoginStatus = "invalid_credentials"
)

// LoginResult is the tagged outcome of Broker.Login.
type LoginResult struct {
	Status LoginStatus

	// BearerToken and SessionCookie are set only on LoginSuccess. The
	// session cookie (a "session=..." pair) is retained for silent token
	// refresh.
	BearerToken   string
	SessionCookie string

	// EmailDelivery marks two-factor flows where the code is delivered by
	// email; those cannot be completed programmatically.
	EmailDelivery bool

	// Detail carries the identity provider's human-readable explanation for
	// non-success outcomes.
	Detail string
}

// Credentials is the input to a programmatic login.
type Credentials struct {
	Subdomain     string
	Email         string
	Password      string
	TwoFactorCode string
}
