package provision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newtron-network/racctl/pkg/util"
)

// privileges maps a role name to the cfgUserAdminPrivilege bit mask.
var privileges = map[string]string{
	"Administrator": "0x00000fff",
	"PowerUser":     "0x00000ed9",
	"GuestUser":     "0x00000001",
	"None":          "0x00000000",
}

// Privilege returns the privilege bit mask for role. Role names are case-sensitive.
func Privilege(role string) (string, error) {
	mask, ok := privileges[role]
	if !ok {
		return "", fmt.Errorf("%w %q (known: %s)", util.ErrUnknownRole, role, strings.Join(Roles(), ", "))
	}
	return mask, nil
}

// Roles lists the known role names, sorted.
func Roles() []string {
	names := make([]string, 0, len(privileges))
	for name := range privileges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledBit renders an enabled flag as the console expects it.
func EnabledBit(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}

// ParseEnabled interprets the enabled values found in plan files: a boolean,
// or the strings "true" and "Enabled". Anything else is disabled.
func ParseEnabled(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "Enabled" || strings.EqualFold(x, "true")
	default:
		return false
	}
}
