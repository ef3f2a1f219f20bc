package script

import (
	"golang.org/x/net/http/httpguts"
	"golang.org/x/text/cases"
)

// headerFolder performs Unicode case folding for header-name comparison.
// A plain ASCII EqualFold would work for the overwhelming majority of
// header names, but folding through golang.org/x/text/cases keeps
// comparison consistent with how the rest of the bridge treats header
// text, and costs nothing extra on the header-count scales this gateway
// deals with.
var headerFolder = cases.Fold()

func headerEqualFold(a []byte, b string) bool {
	return headerFolder.String(string(a)) == headerFolder.String(b)
}

// validHeaderName reports whether name is a legal HTTP header field
// name, used to reject a script's attempted ctx.headers[name] = value
// write before it reaches the response.
func validHeaderName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// validHeaderValue reports whether value is legal as an HTTP header
// field value (no embedded CR/LF, no invalid control bytes).
func validHeaderValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}
