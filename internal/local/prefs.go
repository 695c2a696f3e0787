package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/wire"
)

// Preferences are small synchronous settings (volume, last level, player
// name) kept in {root}/prefs.json as a flat wire object. Only string,
// integer and float values are stored.

func (s *Store) prefsPath() string {
	return filepath.Join(s.root, prefsName+fileExt)
}

// loadPrefs reads the preferences file. Caller holds prefMu.
func (s *Store) loadPrefs() (wire.Object, error) {
	data, err := os.ReadFile(s.prefsPath())
	if errors.Is(err, os.ErrNotExist) {
		return wire.Object{}, nil
	}
	if err != nil {
		return nil, fault.Wrap(fault.CodeIO, "local.prefs", err)
	}
	var obj wire.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fault.Wrap(fault.CodeConversion, "local.prefs", err)
	}
	if obj == nil {
		obj = wire.Object{}
	}
	return obj, nil
}

func (s *Store) savePrefs(obj wire.Object) error {
	data, err := wire.MarshalCanonical(obj)
	if err != nil {
		return fault.Wrap(fault.CodeConversion, "local.prefs", err)
	}
	if err := s.write(s.prefsPath(), data); err != nil {
		return fault.Wrap(fault.CodeIO, "local.prefs", err)
	}
	return nil
}

// SetPref stores a string, integer or float preference.
func (s *Store) SetPref(key string, v any) error {
	if key == "" {
		return fault.New(fault.CodeConversion, "local.SetPref", "empty key")
	}
	wv, err := wire.ToWire(v)
	if err != nil {
		return err
	}
	switch wv.Kind() {
	case wire.KindString, wire.KindInt, wire.KindFloat:
	default:
		return fault.Conversion("pref", key, fmt.Errorf("%s preferences are not supported", wv.Kind()))
	}

	s.prefMu.Lock()
	defer s.prefMu.Unlock()

	obj, err := s.loadPrefs()
	if err != nil {
		return err
	}
	obj[key] = wv
	return s.savePrefs(obj)
}

// DeletePref removes a preference. Removing a missing key is not an error.
func (s *Store) DeletePref(key string) error {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()

	obj, err := s.loadPrefs()
	if err != nil {
		return err
	}
	if _, ok := obj[key]; !ok {
		return nil
	}
	delete(obj, key)
	return s.savePrefs(obj)
}

// Pref reads a preference as T. ok is false when the key is missing or
// the stored value does not convert to T.
func Pref[T wire.Native](s *Store, key string) (v T, ok bool) {
	s.prefMu.Lock()
	obj, err := s.loadPrefs()
	s.prefMu.Unlock()
	if err != nil {
		s.logger.Warn("reading preferences failed", "error", err)
		return v, false
	}

	raw, found := obj[key]
	if !found {
		return v, false
	}
	v, err = wire.FromWire[T](raw)
	if err != nil {
		s.logger.Warn("preference has the wrong type", "key", key, "error", err)
		return v, false
	}
	return v, true
}
