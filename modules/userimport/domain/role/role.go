package role

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Names of the roles that carry an extra profile in the payload.
const (
	Trainer = "TRAINER"
	Trainee = "TRAINEE"
)

// Role is a reference entity fetched from the backend.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// synonyms maps normalized abbreviations to the normalized role name they stand for.
var synonyms = map[string]string{
	"ADMIN":              "ADMINISTRATOR",
	"SUPERADMIN":         "SUPER_ADMIN",
	"INSTRUCTOR":         "TRAINER",
	"TEACHER":            "TRAINER",
	"STUDENT":            "TRAINEE",
	"LEARNER":            "TRAINEE",
	"HOD":                "DEPARTMENT_HEAD",
	"HEAD_OF_DEPARTMENT": "DEPARTMENT_HEAD",
	"DEPT_HEAD":          "DEPARTMENT_HEAD",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize uppercases s and replaces internal whitespace runs with an underscore.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, "_")
}

// Index is an immutable snapshot of the role collection for one import session.
type Index struct {
	roles      []Role
	normalized []string
	exact      map[string]int
}

// NewIndex snapshots roles. Collection order is kept: it breaks ties in the
// substring tier, so a backend that reorders its listing changes results.
func NewIndex(roles []Role) *Index {
	idx := &Index{
		roles:      make([]Role, len(roles)),
		normalized: make([]string, len(roles)),
		exact:      make(map[string]int, len(roles)),
	}
	copy(idx.roles, roles)
	for i, r := range idx.roles {
		n := Normalize(r.Name)
		idx.normalized[i] = n
		if _, ok := idx.exact[n]; !ok {
			idx.exact[n] = i
		}
	}
	return idx
}

// Len returns the number of roles in the snapshot.
func (idx *Index) Len() int {
	return len(idx.roles)
}

// Roles returns a copy of the snapshot in collection order.
func (idx *Index) Roles() []Role {
	out := make([]Role, len(idx.roles))
	copy(out, idx.roles)
	return out
}

// Names returns the role names in collection order.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.roles))
	for i, r := range idx.roles {
		out[i] = r.Name
	}
	return out
}

// Resolve matches free text to a role: exact normalized name, then the
// synonym table, then substring containment in either direction.
// It returns nil when nothing matches.
func (idx *Index) Resolve(input string) *Role {
	if idx == nil {
		return nil
	}
	n := Normalize(input)
	if n == "" {
		return nil
	}
	if r := idx.resolveExact(n); r != nil {
		return r
	}
	if r := idx.resolveSynonym(n); r != nil {
		return r
	}
	return idx.resolveSubstring(n)
}

func (idx *Index) resolveExact(n string) *Role {
	i, ok := idx.exact[n]
	if !ok {
		return nil
	}
	r := idx.roles[i]
	return &r
}

func (idx *Index) resolveSynonym(n string) *Role {
	mapped, ok := synonyms[n]
	if !ok {
		return nil
	}
	return idx.resolveExact(mapped)
}

func (idx *Index) resolveSubstring(n string) *Role {
	for i, rn := range idx.normalized {
		if rn == "" {
			continue
		}
		if strings.Contains(rn, n) || strings.Contains(n, rn) {
			r := idx.roles[i]
			return &r
		}
	}
	return nil
}

// Suggest returns the closest role name by fuzzy rank, or "" when none is close.
func (idx *Index) Suggest(input string) string {
	if idx == nil || len(idx.roles) == 0 {
		return ""
	}
	n := Normalize(input)
	if n == "" {
		return ""
	}
	ranks := fuzzy.RankFindNormalizedFold(n, idx.normalized)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return idx.roles[ranks[0].OriginalIndex].Name
}

// Is reports whether r is the role with the given normalized name.
func (r Role) Is(name string) bool {
	return Normalize(r.Name) == name
}
