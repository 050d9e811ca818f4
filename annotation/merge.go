package annotation

// mergeKey identifies an annotation for deduplication.
type mergeKey struct {
	text         string
	vocabularyID string
}

// Merge flattens per-backend annotation lists into a single deduplicated
// sequence. Lists must be in backend-declared order; within that ordering
// the first occurrence of a (text, vocabulary id) pair wins and every later
// occurrence is dropped, with no field merging or score comparison.
//
// Annotations with an empty vocabulary id bypass the key entirely and are
// kept verbatim. Backends never produce them, so this path is defensive.
func Merge(perBackend [][]Annotation) []Annotation {
	merged := []Annotation{}
	seen := make(map[mergeKey]struct{})

	for _, list := range perBackend {
		for _, ann := range list {
			if ann.VocabularyID == "" {
				merged = append(merged, ann)
				continue
			}
			key := mergeKey{text: ann.Text, vocabularyID: ann.VocabularyID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ann)
		}
	}
	return merged
}
