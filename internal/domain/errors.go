package domain

import "errors"

// ErrNarration marks a failed language-model call. It is the only
// failure in a chat turn that surfaces to the caller: a degraded
// "analysis" reply would be misleading, so there is no canned
// fallback for it.
var ErrNarration = errors.New("narration service failed")
