package parser

// categoriesByPreset defines the closed finding-category set for each
// built-in analysis preset (spec §4.9 "verify category against
// preset-specific closed set"). Presets with no entry here (custom,
// user-created analysis presets) are not category-checked.
var categoriesByPreset = map[string]map[string]bool{
	"Security Review": setOf(
		"injection", "authentication", "authorization", "cryptography",
		"secrets", "dependency", "configuration", "other",
	),
	"Performance Review": setOf(
		"algorithmic", "memory", "io", "concurrency", "database", "caching", "other",
	),
}

// CategoriesForPreset returns the closed category set for a built-in
// preset name, or nil if the preset has no defined set.
func CategoriesForPreset(presetName string) map[string]bool {
	return categoriesByPreset[presetName]
}

func setOf(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
