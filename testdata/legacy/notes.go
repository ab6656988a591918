package legacy

// :ga:tldr legacy entry point
// :ga: todo port to the new grammar
// :ga:[fix,perf] tighten allocation
func Notes() {}
