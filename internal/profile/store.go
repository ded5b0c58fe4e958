package profile

import (
	"encoding/json"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("profile")

// ErrNotFound is returned when an operation names an id not in the list.
var ErrNotFound = errors.New("profile not found")

// Persisted keys.
const (
	KeyProfiles = "profiles"
	KeySelected = "selected_profile"
)

// KV is the opaque persistent string store the profiles live in.
// storage.DB satisfies it.
type KV interface {
	GetString(key string) (value string, ok bool, err error)
	SetString(key, value string) error
}

// Store loads, repairs and saves the profile list. Every write is synchronous:
// when Save returns nil the persisted copy equals the list passed in.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted list. Absent, unparsable or empty data is
// replaced by a single default profile, which is persisted before returning.
// Individually broken entries are repaired and the repaired list persisted.
func (s *Store) Load() ([]Profile, error) {
	raw, ok, err := s.kv.GetString(KeyProfiles)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	var list []Profile
	switch {
	case !ok:
		log.Infof("PROFILE: no stored profiles, creating default")
	case json.Unmarshal([]byte(raw), &list) != nil:
		log.Warnf("PROFILE: stored profiles unreadable, replacing with default")
		list = nil
	case len(list) == 0:
		log.Infof("PROFILE: stored profile list empty, creating default")
	}

	if len(list) == 0 {
		list = []Profile{Default()}
		if err := s.Save(list); err != nil {
			return nil, err
		}
		return list, nil
	}

	if n := Normalize(list); n > 0 {
		log.Warnf("PROFILE: repaired %d stored profile(s)", n)
		if err := s.Save(list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Save replaces the persisted list.
func (s *Store) Save(list []Profile) error {
	if list == nil {
		list = []Profile{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := s.kv.SetString(KeyProfiles, string(b)); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	log.Debugf("PROFILE: saved %d profile(s)", len(list))
	return nil
}

// LoadSelection returns the persisted selection, validated against list.
// A stale or missing selection falls back to the first profile.
func (s *Store) LoadSelection(list []Profile) (string, error) {
	prev, _, err := s.kv.GetString(KeySelected)
	if err != nil {
		return "", fmt.Errorf("load selection: %w", err)
	}
	sel := UpsertSelection(list, prev)
	if sel != prev {
		if err := s.SaveSelection(sel); err != nil {
			return "", err
		}
	}
	return sel, nil
}

// SaveSelection persists the selected id ("" for none).
func (s *Store) SaveSelection(id string) error {
	if err := s.kv.SetString(KeySelected, id); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}
