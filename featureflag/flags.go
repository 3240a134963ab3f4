package featureflag

type Flag string

const (
	// FlagScheduledTraversal selects the scheduled traversal policy.
	FlagScheduledTraversal Flag = "SCHEDULED_TRAVERSAL"

	FlagDeferOutsideFrustum Flag = "DEFER_OUTSIDE_FRUSTUM"
	FlagFoveatedSSE         Flag = "FOVEATED_SSE"
	FlagLoadSiblings        Flag = "LOAD_SIBLINGS"
	FlagDisplayActiveTiles  Flag = "DISPLAY_ACTIVE_TILES"
)
