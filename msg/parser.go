// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package msg validates one wire-level JSON record against the tlog
// schema and exposes its timing string as a scanning Cursor.
package msg

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tlogd/tlog/utf8accum"
)

// Msg is one validated, parsed record. The JSON object it was parsed
// from is not retained; InTxt/OutTxt/InBin/OutBin are already
// independent copies, so a Msg outlives the bytes it was parsed from.
type Msg struct {
	Ver     string
	Host    string
	Rec     string
	User    string
	Term    string
	Session uint32
	ID      uint64
	Pos     int64

	Timing string
	InTxt  string
	OutTxt string
	InBin  []byte
	OutBin []byte
}

// Cursor returns a fresh scanning cursor over m's timing string.
func (m *Msg) Cursor() *Cursor { return NewCursor(m.Timing) }

var requiredFields = []string{"ver", "host", "user", "term", "session", "id", "pos", "timing", "in_txt", "out_txt", "in_bin", "out_bin"}

// Parse validates line (one JSON object, without its trailing
// newline) against the schema and returns the parsed Msg.
func Parse(line []byte) (*Msg, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &Error{Kind: FieldInvalidType, Field: "<object>", Err: err}
	}

	for _, f := range requiredFields {
		if _, ok := raw[f]; !ok {
			return nil, fieldErr(FieldMissing, f)
		}
	}

	m := &Msg{}

	ver, err := parseVersion(raw["ver"])
	if err != nil {
		return nil, err
	}
	m.Ver = ver

	if m.Host, err = parseString("host", raw["host"]); err != nil {
		return nil, err
	}
	if m.User, err = parseString("user", raw["user"]); err != nil {
		return nil, err
	}
	if m.Term, err = parseString("term", raw["term"]); err != nil {
		return nil, err
	}
	if recRaw, ok := raw["rec"]; ok {
		if m.Rec, err = parseString("rec", recRaw); err != nil {
			return nil, err
		}
	}

	if m.Session, err = parseSession(raw["session"]); err != nil {
		return nil, err
	}
	if m.ID, err = parseID(raw["id"]); err != nil {
		return nil, err
	}
	if m.Pos, err = parsePos(raw["pos"]); err != nil {
		return nil, err
	}

	if m.Timing, err = parseString("timing", raw["timing"]); err != nil {
		return nil, err
	}
	if err := ValidateTiming(m.Timing); err != nil {
		return nil, &Error{Kind: FieldInvalidValueTiming, Field: "timing", Err: err}
	}

	if m.InTxt, err = parseText("in_txt", raw["in_txt"]); err != nil {
		return nil, err
	}
	if m.OutTxt, err = parseText("out_txt", raw["out_txt"]); err != nil {
		return nil, err
	}
	if err := validateTextRunCounts(m); err != nil {
		return nil, err
	}

	if m.InBin, err = parseBinArray("in_bin", raw["in_bin"]); err != nil {
		return nil, err
	}
	if m.OutBin, err = parseBinArray("out_bin", raw["out_bin"]); err != nil {
		return nil, err
	}

	return m, nil
}

// validateTextRunCounts cross-checks the timing string's declared text
// run lengths (valid runs counted in runes, invalid runs standing in
// for one placeholder rune each) against the actual rune counts of
// InTxt/OutTxt, catching a timing script that is out of sync with the
// payload it describes.
func validateTextRunCounts(m *Msg) error {
	var inRunes, outRunes uint64
	c := m.Cursor()
	for {
		rec, ok, err := c.Next()
		if err != nil {
			return &Error{Kind: FieldInvalidValueTiming, Field: "timing", Err: err}
		}
		if !ok {
			break
		}
		switch rec.Type {
		case RecInputText:
			inRunes += rec.Count
		case RecOutputText:
			outRunes += rec.Count
		case RecInputBinary:
			inRunes += rec.CharCount
		case RecOutputBinary:
			outRunes += rec.CharCount
		}
	}
	if uint64(utf8accum.ValidStringLength([]byte(m.InTxt))) != inRunes {
		return fieldErr(FieldInvalidValueTxt, "in_txt")
	}
	if uint64(utf8accum.ValidStringLength([]byte(m.OutTxt))) != outRunes {
		return fieldErr(FieldInvalidValueTxt, "out_txt")
	}
	return nil
}

func parseString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fieldErr(FieldInvalidType, field)
	}
	return s, nil
}

func parseText(field string, raw json.RawMessage) (string, error) {
	s, err := parseString(field, raw)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(s) {
		return "", fieldErr(FieldInvalidValueTxt, field)
	}
	return s, nil
}

// parseVersion accepts "ver" as a JSON string or number of the form
// <major>[.<minor>], requiring major <= 2.
func parseVersion(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if major, _, ok := splitVersion(s); ok && major <= 2 {
			return s, nil
		}
		return "", fieldErr(FieldInvalidValueVer, "ver")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		s = strconv.FormatFloat(f, 'f', -1, 64)
		if major, _, ok := splitVersion(s); ok && major <= 2 {
			return s, nil
		}
		return "", fieldErr(FieldInvalidValueVer, "ver")
	}
	return "", fieldErr(FieldInvalidType, "ver")
}

func splitVersion(s string) (major, minor int, ok bool) {
	parts := strings.SplitN(s, ".", 2)
	maj, err := strconv.Atoi(parts[0])
	if err != nil || maj < 0 {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return maj, 0, true
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 {
		return 0, 0, false
	}
	return maj, min, true
}

func parseSession(raw json.RawMessage) (uint32, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fieldErr(FieldInvalidType, "session")
	}
	if f != float64(int64(f)) || f < 1 || f > float64(^uint32(0)) {
		return 0, fieldErr(FieldInvalidValueSession, "session")
	}
	return uint32(f), nil
}

func parseID(raw json.RawMessage) (uint64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fieldErr(FieldInvalidType, "id")
	}
	if f != float64(int64(f)) || f < 0 {
		return 0, fieldErr(FieldInvalidValueID, "id")
	}
	return uint64(f), nil
}

func parsePos(raw json.RawMessage) (int64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fieldErr(FieldInvalidType, "pos")
	}
	if f != float64(int64(f)) || f < 0 || f > MaxDelayMillis {
		return 0, fieldErr(FieldInvalidValuePos, "pos")
	}
	return int64(f), nil
}

func parseBinArray(field string, raw json.RawMessage) ([]byte, error) {
	var nums []float64
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, fieldErr(FieldInvalidType, field)
	}
	out := make([]byte, len(nums))
	for i, f := range nums {
		if f != float64(int64(f)) || f < 0 || f > 255 {
			return nil, fieldErr(FieldInvalidValueBin, field)
		}
		out[i] = byte(f)
	}
	return out, nil
}
