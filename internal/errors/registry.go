package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E149)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"E141": {
		Category:   CategoryConfig,
		Message:    "Project root not found",
		Suggestion: "Create a vps.json (or vps.yaml) file at the project root",
	},

	// ============================================
	// Usage Errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryUsage,
		Message:  "Invalid page file",
	},
	"E202": {
		Category:   CategoryUsage,
		Message:    "Page has no view file",
		Suggestion: "Add a .page file next to the page's other files",
	},
	"E203": {
		Category:   CategoryUsage,
		Message:    "View file does not export a page",
		Suggestion: `Export the view value as "Page" (or "default")`,
	},
	"E204": {
		Category: CategoryUsage,
		Message:  "Export has an unexpected type",
	},
	"E205": {
		Category:   CategoryUsage,
		Message:    "Ambiguous route",
		Suggestion: "Give one of the route functions a higher numeric match value",
	},
	"E206": {
		Category:   CategoryUsage,
		Message:    "Unsupported passToClient entry",
		Suggestion: `Only plain keys ("user") and one-level paths ("user.id") are supported`,
	},
	"E207": {
		Category:   CategoryUsage,
		Message:    "No render hook",
		Suggestion: "Export render from the page's .page.server file or from a _default.page.server file",
	},
	"E208": {
		Category: CategoryUsage,
		Message:  "Prerender URL must start with /",
	},
	"E209": {
		Category: CategoryUsage,
		Message:  "Unknown key in hook result",
	},
	"E210": {
		Category: CategoryUsage,
		Message:  "Invalid hook result",
	},
	"E211": {
		Category:   CategoryUsage,
		Message:    "Prerender URL does not match any page",
		Suggestion: "Check the URLs returned by your prerender hook",
	},
	"E212": {
		Category:   CategoryUsage,
		Message:    "Prerendered page did not produce an HTML document",
		Suggestion: "The render hook must return HTML when the page is prerendered",
	},
	"E213": {
		Category: CategoryUsage,
		Message:  "Invalid route string",
	},
	"E214": {
		Category: CategoryUsage,
		Message:  "Duplicate page id",
	},

	// ============================================
	// Warnings (W300-W399)
	// ============================================

	"W301": {
		Category: CategoryWarning,
		Message:  "Several pages match the same URL with the same priority",
	},
	"W302": {
		Category:   CategoryWarning,
		Message:    "Page not prerendered",
		Suggestion: "Add a prerender hook returning the page's URLs, or run with --partial",
	},

	// ============================================
	// Hook Errors (E400-E499)
	// ============================================

	"E401": {
		Category: CategoryHook,
		Message:  "Hook failed",
	},
	"E402": {
		Category: CategoryHook,
		Message:  "Hook panicked",
	},
	"E403": {
		Category: CategoryHook,
		Message:  "Page file import failed",
	},
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
