package users

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
)

// DecodeUsers parses a JSON array of user records.
//
// Decoding is lenient about representation and strict about shape: unknown
// keys are ignored, integer ids may be quoted, and string fields accept bare
// numbers or booleans. Every schema field must be present and non-null. Any
// problem fails the whole payload; no partial slice is returned.
func DecodeUsers(data []byte) ([]domain.User, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if elems == nil {
		return nil, errors.New("decode users: expected a JSON array, got null")
	}

	out := make([]domain.User, 0, len(elems))
	for i, elem := range elems {
		u, err := decodeUser(elem, fmt.Sprintf("users[%d]", i))
		if err != nil {
			return nil, fmt.Errorf("decode users: %w", err)
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeUser(raw json.RawMessage, path string) (domain.User, error) {
	d := &fieldDecoder{}
	f := d.object(raw, path)

	u := domain.User{
		ID:       f.integer("id"),
		Name:     f.str("name"),
		Username: f.str("username"),
		Email:    f.str("email"),
		Phone:    f.str("phone"),
		Website:  f.str("website"),
	}

	addr := f.child("address")
	u.Address = domain.Address{
		Street:  addr.str("street"),
		Suite:   addr.str("suite"),
		City:    addr.str("city"),
		Zipcode: addr.str("zipcode"),
	}
	geo := addr.child("geo")
	u.Address.Geo = domain.Geo{
		Lat: geo.str("lat"),
		Lng: geo.str("lng"),
	}

	company := f.child("company")
	u.Company = domain.Company{
		Name:        company.str("name"),
		CatchPhrase: company.str("catchPhrase"),
		BS:          company.str("bs"),
	}

	if d.err != nil {
		return domain.User{}, d.err
	}
	return u, nil
}

// fieldDecoder keeps the first error seen while walking one record.
type fieldDecoder struct {
	err error
}

func (d *fieldDecoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

type fields struct {
	d    *fieldDecoder
	path string
	m    map[string]json.RawMessage
}

func (d *fieldDecoder) object(raw json.RawMessage, path string) *fields {
	f := &fields{d: d, path: path}
	if isNull(raw) {
		d.fail("%s: expected object, got null", path)
		return f
	}
	if err := json.Unmarshal(raw, &f.m); err != nil {
		d.fail("%s: expected object, got %s", path, preview(raw))
	}
	return f
}

func (f *fields) lookup(key string) (json.RawMessage, bool) {
	if f.m == nil {
		// parent already failed
		return nil, false
	}
	raw, ok := f.m[key]
	if !ok || isNull(raw) {
		f.d.fail("%s: missing required field %q", f.path, key)
		return nil, false
	}
	return raw, true
}

func (f *fields) child(key string) *fields {
	raw, ok := f.lookup(key)
	if !ok {
		return &fields{d: f.d, path: f.path + "." + key}
	}
	return f.d.object(raw, f.path+"."+key)
}

func (f *fields) str(key string) string {
	raw, ok := f.lookup(key)
	if !ok {
		return ""
	}
	s, err := lenientString(raw)
	if err != nil {
		f.d.fail("%s.%s: %v", f.path, key, err)
	}
	return s
}

func (f *fields) integer(key string) int {
	raw, ok := f.lookup(key)
	if !ok {
		return 0
	}
	n, err := lenientInt(raw)
	if err != nil {
		f.d.fail("%s.%s: %v", f.path, key, err)
	}
	return n
}

func lenientString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("expected string, got nothing")
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case c == 't' || c == 'f' || c == '-' || (c >= '0' && c <= '9'):
		// bare literal; json.Unmarshal has already validated its syntax
		return string(raw), nil
	default:
		return "", fmt.Errorf("expected string, got %s", preview(raw))
	}
}

func lenientInt(raw json.RawMessage) (int, error) {
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		text = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %s", preview(raw))
	}
	return n, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func preview(raw []byte) string {
	const maxLen = 64
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
