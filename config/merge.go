package config

// MergeOverride deep-merges overrider into original: for every key in
// overrider, if both original and overrider hold a nested table at that
// key, the merge recurses; otherwise overrider's value replaces whatever
// original held (or is inserted if original had nothing there). original
// is mutated in place.
func MergeOverride(original map[string]interface{}, overrider map[string]interface{}) {
	for key, value := range overrider {
		existing, present := original[key]
		if !present {
			original[key] = value
			continue
		}

		existingTable, existingIsTable := existing.(map[string]interface{})
		valueTable, valueIsTable := value.(map[string]interface{})
		if existingIsTable && valueIsTable {
			MergeOverride(existingTable, valueTable)
		} else {
			original[key] = value
		}
	}
}
