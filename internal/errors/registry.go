package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No stratum.json was found in the directory or any parent directory.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Configuration file invalid",
		Detail:   "stratum.json exists but could not be parsed.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Configuration value invalid",
		Detail:   "A configuration field has a value outside its allowed range.",
	},

	// ============================================
	// Journal Errors (E120-E139)
	// ============================================

	"E121": {
		Category: CategoryJournal,
		Message:  "Journal open failed",
		Detail:   "The journal store could not be opened.",
	},
	"E122": {
		Category: CategoryJournal,
		Message:  "Journal replay failed",
		Detail:   "A stored transaction could not be read back or decoded.",
	},
	"E123": {
		Category: CategoryJournal,
		Message:  "Journal backend unknown",
		Detail:   "The configured journal backend is not one of: none, bolt, s3.",
	},

	// ============================================
	// Scene Errors (E140-E159)
	// ============================================

	"E141": {
		Category: CategoryScene,
		Message:  "Scene file not found",
		Detail:   "The scene file does not exist.",
	},
	"E142": {
		Category: CategoryScene,
		Message:  "Scene file invalid",
		Detail:   "The scene file exists but could not be parsed or validated.",
	},
	"E143": {
		Category: CategoryScene,
		Message:  "Scene step failed",
		Detail:   "A scene step could not be applied to the tree.",
	},

	// ============================================
	// CLI Errors (E160-E179)
	// ============================================

	"E161": {
		Category: CategoryCLI,
		Message:  "Replay verification failed",
		Detail:   "Applying the journal to a fresh tree did not reproduce a consistent hierarchy.",
	},
}
