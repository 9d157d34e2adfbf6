package registry

import "strconv"

// ValidDeviceID reports whether id has the fixed device ID length.
func ValidDeviceID(id string) bool {
	return len(id) == DeviceIDSize
}

// ValidModuleID reports whether id is a well-formed hex module ID whose
// decoded type lies inside the module type table.
func ValidModuleID(id string) bool {
	if len(id) != ModuleIDSize {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isHex(id[i]) {
			return false
		}
	}
	_, ok := ModuleTypeOf(id)
	return ok
}

// ModuleTypeOf decodes the type from the first two hex digits of a module ID.
func ModuleTypeOf(id string) (ModuleType, bool) {
	if len(id) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(id[:2], 16, 8)
	if err != nil || int(v) >= ModuleTypeCount {
		return 0, false
	}
	return ModuleType(v), true
}

// ValidTopic reports whether topic is within the module topic length bounds.
func ValidTopic(topic string) bool {
	return len(topic) >= MinTopicLen && len(topic) <= MaxTopicLen
}

// ValidSpecs reports whether specs is within the module specs length bounds.
func ValidSpecs(specs string) bool {
	return len(specs) >= MinSpecsLen && len(specs) <= MaxSpecsLen
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
