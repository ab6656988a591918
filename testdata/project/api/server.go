package api

// tldr ::: HTTP entry point for the annotation service
// todo, owner(@alice) ::: add request tracing
func Serve() {}

// deprecated({"since":"2020-01-15"}) ::: use ServeContext instead
func ServeLegacy() {}

// temp ::: remove before release
