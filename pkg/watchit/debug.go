package watchit

import (
	"os"
)

// DebugEnvironmentVariable is the environment variable that forces debug-level
// logging regardless of command line flags.
const DebugEnvironmentVariable = "WATCHIT_DEBUG"

// DebugEnabled controls whether or not debugging is enabled for watchit. It is
// set automatically based on the WATCHIT_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv(DebugEnvironmentVariable) == "1"
}
