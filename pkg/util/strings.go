package util

// ModuleName joins a module type and slot the way the console addresses them ("server-3").
func ModuleName(moduleType, slot string) string {
	return moduleType + "-" + slot
}
