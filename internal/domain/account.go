package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// numericAccountPattern matches ledger-native account identifiers such as
// "0.0.777".
var numericAccountPattern = regexp.MustCompile(`^0\.0\.\d+$`)

// IsNumericAccountID reports whether id looks like a ledger-native account
// identifier. The development-mode admin shortcut keys off this pattern and
// it must not be widened.
func IsNumericAccountID(id string) bool {
	return numericAccountPattern.MatchString(id)
}

// AccountFromNamespace extracts the account segment from a namespaced
// address of the form "chain:network:account", as delivered in relay
// pairing approvals. Only the account segment is returned; the chain and
// network discriminators are dropped.
func AccountFromNamespace(ns string) (string, error) {
	parts := strings.Split(ns, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("malformed namespaced address: %q", ns)
	}
	return parts[2], nil
}
