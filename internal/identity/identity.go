package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"convoyset/internal/model"
)

// Map associates a user id with every username observed for it. Accounts
// rename, so one id can legitimately carry several usernames. The reverse is
// the integrity problem: two ids claiming one username.
type Map map[string][]string

// Conflict records a username claimed by more than one user id.
type Conflict struct {
	Username string
	IDs      []string
}

// ConflictError is returned by the verifying construction path when the user
// universe contains cross-id username claims.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		names = append(names, c.Username)
	}
	return fmt.Sprintf("%d usernames claimed by multiple user ids: %s", len(e.Conflicts), strings.Join(names, ", "))
}

// Build collects usernames per user id in first-seen order, deduplicated.
func Build(users []model.User) Map {
	m := make(Map)
	for _, u := range users {
		if contains(m[u.ID], u.Username) {
			continue
		}
		m[u.ID] = append(m[u.ID], u.Username)
	}
	return m
}

// BuildVerified builds the map and fails if any username is claimed by more
// than one user id. The persisted map must be conflict-free because the
// spreadsheet adapter treats it as the authoritative identity source.
func BuildVerified(users []model.User) (Map, error) {
	m := Build(users)
	if conflicts := m.DuplicateUsernames(); len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}
	return m, nil
}

// DuplicateUsernames returns every username claimed by two or more distinct
// user ids. Queryable on purpose: reporting pipelines tolerate conflicts that
// the construction path must reject.
func (m Map) DuplicateUsernames() []Conflict {
	claims := make(map[string][]string)
	for id, usernames := range m {
		for _, username := range usernames {
			claims[username] = append(claims[username], id)
		}
	}
	var out []Conflict
	for username, ids := range claims {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		out = append(out, Conflict{Username: username, IDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Invert flips the map to username -> user id for spreadsheet identity
// recovery. Ids are visited in sorted order, so on a collision the
// lexicographically largest id wins deterministically; every colliding
// username is also reported in the conflict list for diagnostics.
func (m Map) Invert() (map[string]string, []Conflict) {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inverted := make(map[string]string)
	claims := make(map[string][]string)
	for _, id := range ids {
		for _, username := range m[id] {
			inverted[username] = id
			claims[username] = append(claims[username], id)
		}
	}

	var conflicts []Conflict
	for username, claimants := range claims {
		if len(claimants) > 1 {
			conflicts = append(conflicts, Conflict{Username: username, IDs: claimants})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Username < conflicts[j].Username })
	return inverted, conflicts
}

// Save writes the map as JSON ({user_id: [usernames...]}), creating
// directories as needed. Usernames are sorted so the file is reproducible.
func Save(path string, m Map) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	stable := make(map[string][]string, len(m))
	for id, usernames := range m {
		cp := append([]string(nil), usernames...)
		sort.Strings(cp)
		stable[id] = cp
	}
	b, err := json.MarshalIndent(stable, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Load reads a map persisted by Save.
func Load(path string) (Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Map
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
