package utils

// MatchAction reports whether an action name matches pattern. '*' matches
// any run of characters, including none; every other byte is literal.
// Patterns are used for allowed exceptions such as "media_*".
func MatchAction(action, pattern string) bool {
	if pattern == "*" || pattern == action {
		return true
	}
	aIdx, pIdx := 0, 0
	star, mark := -1, 0
	for aIdx < len(action) {
		switch {
		case pIdx < len(pattern) && pattern[pIdx] == '*':
			star = pIdx
			mark = aIdx
			pIdx++
		case pIdx < len(pattern) && pattern[pIdx] == action[aIdx]:
			aIdx++
			pIdx++
		case star >= 0:
			// backtrack: let the last '*' swallow one more byte
			pIdx = star + 1
			mark++
			aIdx = mark
		default:
			return false
		}
	}
	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}
	return pIdx == len(pattern)
}

// MatchAnyAction reports whether action matches one of patterns.
func MatchAnyAction(action string, patterns []string) bool {
	for _, p := range patterns {
		if MatchAction(action, p) {
			return true
		}
	}
	return false
}
