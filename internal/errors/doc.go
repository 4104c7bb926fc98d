// Package errors provides the coded, categorized errors used across vps.
//
// Every failure the pipeline can diagnose without running user code is a
// usage error with a stable code (E2xx). Non-fatal anomalies are warnings
// (W3xx) and failures raised by user hooks are hook errors (E4xx):
//
//	err := errors.New("E211").
//	    WithDetail(`URL "/bogus" does not match any page`).
//	    WithFile("/pages/movie/index.page.server.go").
//	    WithSuggestion("Check the URLs returned by your prerender hook")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E211: Prerender URL does not match any page
//	//
//	//   /pages/movie/index.page.server.go
//	//
//	//   URL "/bogus" does not match any page
//	//
//	//   Hint: Check the URLs returned by your prerender hook
//
// Several usage errors found during one validation pass are reported
// together with Join.
package errors
