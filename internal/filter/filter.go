// Package filter selects the folders a sweep visits.
package filter

// Eligible returns the folders of all that a sweep should visit, in the
// order the server listed them. An empty includes admits every folder;
// otherwise only exact name matches are admitted. Names in excludes are
// always removed. Hierarchy delimiters are not interpreted, so excluding
// "Archive" does not exclude "Archive/2024".
func Eligible(all, includes, excludes []string) []string {
	inc := toSet(includes)
	exc := toSet(excludes)

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, name := range all {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if len(inc) > 0 {
			if _, ok := inc[name]; !ok {
				continue
			}
		}
		if _, ok := exc[name]; ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
