package auth

// Login error codes travel as /login?error=<code>. The login page only ever
// shows the message catalogued for a code, so nothing typed into a URL ends
// up on the page.
const (
	LoginLinkInvalid   = "link_invalid"
	LoginLinkUsed      = "link_used"
	LoginOtherBrowser  = "other_browser"
	LoginMissingParams = "missing_params"
	LoginCancelled     = "cancelled"
	LoginUnavailable   = "unavailable"
	LoginFailed        = "failed"
)

var loginMessages = map[string]string{
	LoginLinkInvalid:   "this sign-in link is invalid or has expired",
	LoginLinkUsed:      "this sign-in link has already been used",
	LoginOtherBrowser:  "open the sign-in link in the same browser you requested it from",
	LoginMissingParams: "missing auth parameters",
	LoginCancelled:     "sign-in was cancelled",
	LoginUnavailable:   "the sign-in service is unavailable, please try the link again",
	LoginFailed:        "sign-in failed, please request a new link",
}

// LoginMessage returns the message for code. Unknown codes get the generic
// failure message and an empty code gets none.
func LoginMessage(code string) string {
	if code == "" {
		return ""
	}
	if msg, ok := loginMessages[code]; ok {
		return msg
	}
	return loginMessages[LoginFailed]
}
