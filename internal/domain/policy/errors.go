package policy

import "errors"

// ErrPolicyTooLong marks custom policy text over the character budget. It is
// a configuration failure, fatal to the whole run: truncating guild policy
// could change its meaning, so it is rejected instead.
var ErrPolicyTooLong = errors.New("custom policy text exceeds budget")
