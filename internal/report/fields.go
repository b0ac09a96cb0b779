package report

import (
	"sort"
	"strings"

	"github.com/noah-isme/f2freport-api/internal/models"
)

// Logical location fields stored as session metadata.
const (
	FieldCity  = "city"
	FieldVenue = "venue"
	FieldRoom  = "room"
)

// LocationFields lists the logical fields the report projects, in column order.
var LocationFields = []string{FieldCity, FieldVenue, FieldRoom}

// DefaultAliases are used when the configured alias list for a field is empty.
var DefaultAliases = map[string][]string{
	FieldCity:  {"city", "ville", "location"},
	FieldVenue: {"venue", "lieu", "building", "site", "centre", "center", "campus"},
	FieldRoom:  {"room", "salle", "classroom", "roomnumber"},
}

// FieldIDs maps a logical field name to its metadata field id. Unresolved names are absent.
type FieldIDs map[string]int64

// ID returns the resolved id for name.
func (f FieldIDs) ID(name string) (int64, bool) {
	id, ok := f[name]
	return id, ok
}

// Missing returns the names that have no id, sorted.
func (f FieldIDs) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := f[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// ParseAliases splits a comma separated alias list. Tokens are trimmed,
// lower-cased and de-duplicated; an empty list yields fallback.
func ParseAliases(csv string, fallback []string) []string {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return fallback
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, token := range strings.Split(csv, ",") {
		t := strings.ToLower(strings.TrimSpace(token))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Resolve binds every logical name in aliases to a metadata field.
//
// An exact (case-insensitive) match of shortname or name against any alias
// wins over everything else. Only when no field matches exactly does the
// substring fallback run: fields in storage order, aliases in list order,
// first hit wins.
func Resolve(aliases map[string][]string, fields []models.MetadataField) FieldIDs {
	type normalized struct {
		id        int64
		shortName string
		name      string
	}
	candidates := make([]normalized, len(fields))
	for i, f := range fields {
		candidates[i] = normalized{
			id:        f.ID,
			shortName: strings.ToLower(strings.TrimSpace(f.ShortName)),
			name:      strings.ToLower(strings.TrimSpace(f.Name)),
		}
	}

	ids := make(FieldIDs, len(aliases))
	for logical, list := range aliases {
		if len(list) == 0 {
			continue
		}
		needles := make([]string, 0, len(list))
		exact := make(map[string]struct{}, len(list))
		for _, alias := range list {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			needles = append(needles, alias)
			exact[alias] = struct{}{}
		}

		bound := false
		for _, c := range candidates {
			_, snHit := exact[c.shortName]
			_, nmHit := exact[c.name]
			if (c.shortName != "" && snHit) || (c.name != "" && nmHit) {
				ids[logical] = c.id
				bound = true
				break
			}
		}
		if bound {
			continue
		}

	fallback:
		for _, c := range candidates {
			for _, needle := range needles {
				if (c.shortName != "" && strings.Contains(c.shortName, needle)) ||
					(c.name != "" && strings.Contains(c.name, needle)) {
					ids[logical] = c.id
					break fallback
				}
			}
		}
	}
	return ids
}
